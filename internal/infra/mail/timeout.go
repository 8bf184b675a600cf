package mail

import (
	"context"
	"time"

	"github.com/arklim/weather-auth/internal/core/port"
)

type timeoutNotifier struct {
	next    port.Notifier
	timeout time.Duration
}

// WithTimeout bounds every delivery attempt made through next. A non-positive
// timeout returns next unchanged.
func WithTimeout(next port.Notifier, timeout time.Duration) port.Notifier {
	if timeout <= 0 {
		return next
	}
	return &timeoutNotifier{next: next, timeout: timeout}
}

func (n *timeoutNotifier) SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	return n.next.SendVerificationCode(ctx, email, code, expiresAt)
}
