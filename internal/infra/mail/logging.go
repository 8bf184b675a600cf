package mail

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/weather-auth/internal/core/port"
	"github.com/arklim/weather-auth/internal/infra/logger"
)

// LoggingNotifier records verification dispatches without delivering them.
// The code itself is only logged when exposeCode is set, which the app does
// outside production.
type LoggingNotifier struct {
	logger     *zap.Logger
	exposeCode bool
}

var _ port.Notifier = (*LoggingNotifier)(nil)

// NewLoggingNotifier returns a notifier that only writes to log.
func NewLoggingNotifier(log *zap.Logger, exposeCode bool) *LoggingNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingNotifier{logger: log, exposeCode: exposeCode}
}

// SendVerificationCode logs the delivery and never fails.
func (n *LoggingNotifier) SendVerificationCode(_ context.Context, email, code string, expiresAt time.Time) error {
	fields := []zap.Field{
		zap.String("delivery", "log"),
		logger.EmailField(email),
		zap.Time("expires_at", expiresAt),
	}
	if n.exposeCode {
		fields = append(fields, zap.String("dev_code", code))
	}

	n.logger.Info("dispatch verification code", fields...)
	return nil
}
