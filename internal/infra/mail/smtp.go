package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/arklim/weather-auth/internal/core/port"
	"github.com/arklim/weather-auth/internal/infra/config"
	"github.com/arklim/weather-auth/internal/infra/logger"
)

// ErrMailNotConfigured is returned by NewSMTPNotifier when host or sender is missing.
var ErrMailNotConfigured = errors.New("mail: smtp host and sender are required")

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// SMTPNotifier mails verification codes through an SMTP relay.
type SMTPNotifier struct {
	client   sender
	from     string
	fromName string
	appName  string
	logger   *zap.Logger
	now      func() time.Time
}

var _ port.Notifier = (*SMTPNotifier)(nil)

// NewSMTPNotifier dials nothing up front; a connection is opened per message.
func NewSMTPNotifier(cfg config.SMTPSettings, log *zap.Logger) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, ErrMailNotConfigured
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	if from == "" {
		return nil, ErrMailNotConfigured
	}

	opts := []gomail.Option{gomail.WithPort(cfg.Port)}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}
	if cfg.SSL {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return newSMTPNotifier(client, from, cfg.FromName, log), nil
}

func newSMTPNotifier(client sender, from, fromName string, log *zap.Logger) *SMTPNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	if fromName == "" {
		fromName = "Weather App"
	}
	return &SMTPNotifier{
		client:   client,
		from:     from,
		fromName: fromName,
		appName:  fromName,
		logger:   log,
		now:      time.Now,
	}
}

// SendVerificationCode renders the verification mail and sends it over a fresh connection.
// Transport failures are returned wrapped; the caller decides how to surface them.
func (n *SMTPNotifier) SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	msg, err := n.buildMessage(email, code, expiresAt)
	if err != nil {
		return err
	}

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		n.logger.Warn("verification email not delivered", logger.EmailField(email), zap.Error(err))
		return fmt.Errorf("send verification email: %w", err)
	}

	n.logger.Debug("verification email sent", logger.EmailField(email))
	return nil
}

func (n *SMTPNotifier) buildMessage(email, code string, expiresAt time.Time) (*gomail.Msg, error) {
	ttl := expiresAt.Sub(n.now())
	if ttl < 0 {
		ttl = 0
	}

	text, html, err := renderVerification(VerificationData{
		Email:     email,
		Code:      code,
		ExpiresIn: ttl,
		AppName:   n.appName,
	})
	if err != nil {
		return nil, err
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(n.fromName, n.from); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(email); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(verificationSubject)
	msg.SetBodyString(gomail.TypeTextPlain, text)
	msg.AddAlternativeString(gomail.TypeTextHTML, html)
	return msg, nil
}
