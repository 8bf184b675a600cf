package port

import (
	"context"
	"time"
)

// Notifier delivers verification codes to account owners.
type Notifier interface {
	SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error
}
