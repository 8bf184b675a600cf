package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/weather-auth/internal/core/domain"
	"github.com/arklim/weather-auth/internal/core/port"
	"github.com/arklim/weather-auth/internal/infra/logger"
	"github.com/arklim/weather-auth/internal/infra/security"
	"github.com/arklim/weather-auth/internal/infra/telemetry"
	"github.com/arklim/weather-auth/internal/repository"
)

const tracerName = "github.com/arklim/weather-auth/internal/usecase"

const (
	operationRegister  = "register"
	operationVerifyOTP = "verify_otp"
	operationLogin     = "login"
	operationLogout    = "logout"

	outcomeVerificationRequired = "verification_required"

	otpReasonRegistration = "registration"
	otpReasonLogin        = "login"

	maxOTPDraws = 5
)

var errOTPIssue = errors.New("issue otp")

// RegisterResult describes a registration that is awaiting verification.
type RegisterResult struct {
	AccountID    string
	Email        string
	Reregistered bool
	ExpiresAt    time.Time
}

// LoginResult is either an established session or a request to verify the email first.
type LoginResult struct {
	Session              *domain.Session
	Email                string
	VerificationRequired bool
}

// AccountService drives the account lifecycle: registration, OTP verification and login.
type AccountService struct {
	accounts port.AccountRepository
	hasher   port.PasswordHasher
	policy   port.PasswordPolicy
	otp      *security.OTPIssuer
	notifier port.Notifier
	sessions *SessionService
	events   port.EventPublisher
	logger   *zap.Logger
	metrics  *telemetry.AuthMetrics
	tracer   trace.Tracer
	now      func() time.Time

	placeholderOnce sync.Once
	placeholder     string
}

// NewAccountService constructs an AccountService.
func NewAccountService(
	accounts port.AccountRepository,
	hasher port.PasswordHasher,
	policy port.PasswordPolicy,
	otp *security.OTPIssuer,
	notifier port.Notifier,
	sessions *SessionService,
	events port.EventPublisher,
	logger *zap.Logger,
) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = security.NewPasswordPolicy(0)
	}
	if otp == nil {
		otp = security.NewOTPIssuer(security.DefaultOTPTTL)
	}
	return &AccountService{
		accounts: accounts,
		hasher:   hasher,
		policy:   policy,
		otp:      otp,
		notifier: notifier,
		sessions: sessions,
		events:   events,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock used for OTP expiry checks.
func (s *AccountService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithMetrics attaches auth metrics.
func (s *AccountService) WithMetrics(metrics *telemetry.AuthMetrics) *AccountService {
	s.metrics = metrics
	return s
}

// Register creates a pending account or restarts verification for an unverified one, then sends
// the new code. A delivery failure leaves the stored pending state in place; logging in with the
// same password issues a fresh code.
func (s *AccountService) Register(ctx context.Context, email, password string) (result *RegisterResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AccountService.Register")
	defer func() { s.observe(span, operationRegister, "", err) }()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, validationError("Email and password required")
	}
	if err := s.policy.Validate(password, email); err != nil {
		return nil, validationError(policyMessage(err))
	}

	// Hashing does not depend on the stored record, so it stays outside the critical section.
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var (
		account      domain.Account
		otp          domain.OTP
		reregistered bool
	)
	err = s.accounts.WithEmailLock(ctx, email, func(ctx context.Context, accounts port.AccountRepository) error {
		existing, err := accounts.FindByEmail(ctx, email)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			if otp, err = s.issueReplacing(domain.Account{}); err != nil {
				return err
			}
			stored, err := accounts.Insert(ctx, domain.Account{
				Email:        email,
				PasswordHash: hash,
				State:        domain.PendingVerification{OTP: otp},
			})
			if err != nil {
				return storeError("insert account", err)
			}
			account = *stored
			return nil
		case err != nil:
			return storeError("find account", err)
		case existing.IsVerified():
			return ErrAlreadyExists
		}

		// Re-registration of an unverified email replaces its password and code in place.
		if otp, err = s.issueReplacing(*existing); err != nil {
			return err
		}
		update := domain.AccountUpdate{PasswordHash: &hash, State: domain.PendingVerification{OTP: otp}}
		if err := accounts.Update(ctx, email, update); err != nil {
			return storeError("update account", err)
		}
		account = update.Apply(*existing)
		reregistered = true
		return nil
	})
	if err != nil {
		return nil, s.lockError(err)
	}

	span.SetAttributes(attribute.String("account.id", account.ID), attribute.Bool("account.reregistered", reregistered))
	s.logger.Info("Account registered",
		zap.String("account_id", account.ID),
		logger.EmailField(email),
		zap.Bool("reregistered", reregistered),
	)
	s.publishRegistered(ctx, account, reregistered)
	s.metrics.ObserveOTPIssued(otpReasonRegistration)

	if err := s.deliver(ctx, account, otp, otpReasonRegistration); err != nil {
		return nil, err
	}

	return &RegisterResult{
		AccountID:    account.ID,
		Email:        email,
		Reregistered: reregistered,
		ExpiresAt:    otp.ExpiresAt,
	}, nil
}

// VerifyOTP consumes the pending code for email, marks the account verified and opens a session.
// A wrong code never changes the record.
func (s *AccountService) VerifyOTP(ctx context.Context, email, code string) (session *domain.Session, err error) {
	ctx, span := s.tracer.Start(ctx, "AccountService.VerifyOTP")
	defer func() { s.observe(span, operationVerifyOTP, "", err) }()

	// An empty email or code needs no special case: no record exists for "" and no stored code
	// matches "".
	email = normalizeEmail(email)

	var account domain.Account
	err = s.accounts.WithEmailLock(ctx, email, func(ctx context.Context, accounts port.AccountRepository) error {
		existing, err := accounts.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return storeError("find account", err)
		}

		pending, ok := existing.PendingOTP()
		if !ok {
			return ErrInvalidOTP
		}
		switch s.otp.Validate(code, pending, s.now()) {
		case security.OTPInvalid:
			return ErrInvalidOTP
		case security.OTPExpired:
			return ErrOTPExpired
		}

		update := domain.AccountUpdate{State: domain.Verified{}}
		if err := accounts.Update(ctx, email, update); err != nil {
			return storeError("mark account verified", err)
		}
		account = update.Apply(*existing)
		return nil
	})
	if err != nil {
		return nil, s.lockError(err)
	}

	span.SetAttributes(attribute.String("account.id", account.ID))
	s.logger.Info("Account verified", zap.String("account_id", account.ID), logger.EmailField(email))
	s.publishVerified(ctx, account)

	return s.sessions.start(ctx, account.ID, account.Email, sessionReasonVerification)
}

// Login checks the password and opens a session for verified accounts. Unverified accounts get a
// fresh code instead of a session. Unknown emails and wrong passwords are indistinguishable.
func (s *AccountService) Login(ctx context.Context, email, password string) (result *LoginResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AccountService.Login")
	outcome := ""
	defer func() { s.observe(span, operationLogin, outcome, err) }()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, validationError("Email and password required")
	}

	var (
		account domain.Account
		otp     domain.OTP
		renewed bool
	)
	err = s.accounts.WithEmailLock(ctx, email, func(ctx context.Context, accounts port.AccountRepository) error {
		existing, err := accounts.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// Unknown emails pay for a compare too, so timing matches a wrong password.
				s.hasher.Verify(password, s.placeholderDigest())
				return ErrInvalidCredentials
			}
			return storeError("find account", err)
		}
		if !s.hasher.Verify(password, existing.PasswordHash) {
			return ErrInvalidCredentials
		}

		account = *existing
		if account.IsVerified() {
			return nil
		}

		if otp, err = s.issueReplacing(account); err != nil {
			return err
		}
		update := domain.AccountUpdate{State: domain.PendingVerification{OTP: otp}}
		if err := accounts.Update(ctx, email, update); err != nil {
			return storeError("renew account otp", err)
		}
		account = update.Apply(account)
		renewed = true
		return nil
	})
	if err != nil {
		return nil, s.lockError(err)
	}

	span.SetAttributes(attribute.String("account.id", account.ID))

	if renewed {
		outcome = outcomeVerificationRequired
		s.metrics.ObserveOTPIssued(otpReasonLogin)
		if err := s.deliver(ctx, account, otp, otpReasonLogin); err != nil {
			return nil, err
		}
		return &LoginResult{Email: account.Email, VerificationRequired: true}, nil
	}

	session, err := s.sessions.start(ctx, account.ID, account.Email, sessionReasonLogin)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: session, Email: account.Email}, nil
}

// Logout destroys the session identified by token.
func (s *AccountService) Logout(ctx context.Context, token string) (err error) {
	ctx, span := s.tracer.Start(ctx, "AccountService.Logout")
	defer func() { s.observe(span, operationLogout, "", err) }()

	return s.sessions.Destroy(ctx, token)
}

func (s *AccountService) deliver(ctx context.Context, account domain.Account, otp domain.OTP, reason string) error {
	err := s.notifier.SendVerificationCode(ctx, account.Email, otp.Code, otp.ExpiresAt)
	s.metrics.ObserveDelivery(err == nil)
	s.publishVerificationIssued(ctx, account, otp, reason, err == nil)

	if err != nil {
		s.logger.Error("Failed to deliver verification code",
			zap.String("account_id", account.ID),
			logger.EmailField(account.Email),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}

// issueReplacing draws a code that differs from the one pending on previous, if any.
func (s *AccountService) issueReplacing(previous domain.Account) (domain.OTP, error) {
	current, hasPending := previous.PendingOTP()
	for attempt := 0; attempt < maxOTPDraws; attempt++ {
		otp, err := s.otp.Issue()
		if err != nil {
			return domain.OTP{}, fmt.Errorf("%w: %w", errOTPIssue, err)
		}
		if !hasPending || otp.Code != current.Code {
			return otp, nil
		}
	}
	return domain.OTP{}, fmt.Errorf("%w: %d draws repeated the pending code", errOTPIssue, maxOTPDraws)
}

// placeholderDigest is a digest of a random secret made with the configured algorithm. Nothing
// can match it.
func (s *AccountService) placeholderDigest() string {
	s.placeholderOnce.Do(func() {
		secret, err := security.GenerateSecureToken(security.SessionTokenBytes)
		if err != nil {
			return
		}
		if digest, err := s.hasher.Hash(secret); err == nil {
			s.placeholder = digest
		}
	})
	return s.placeholder
}

// lockError passes taxonomy errors through and wraps failures of the lock itself as store errors.
func (s *AccountService) lockError(err error) error {
	for _, known := range []error{ErrAlreadyExists, ErrNotFound, ErrInvalidCredentials, ErrInvalidOTP, ErrOTPExpired, ErrStore, errOTPIssue} {
		if errors.Is(err, known) {
			return err
		}
	}
	return storeError("account lock", err)
}

func (s *AccountService) observe(span trace.Span, operation, outcome string, err error) {
	if outcome == "" {
		outcome = outcomeOf(err)
	}
	s.metrics.ObserveOperation(operation, outcome)

	span.SetAttributes(attribute.String("auth.outcome", outcome))
	if err != nil && (errors.Is(err, ErrStore) || errors.Is(err, ErrDelivery) || outcome == "error") {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.logger.Error("Account operation failed", zap.String("operation", operation), zap.Error(err))
	}
	span.End()
}

func (s *AccountService) publishRegistered(ctx context.Context, account domain.Account, reregistered bool) {
	if s.events == nil {
		return
	}
	event := domain.AccountRegisteredEvent{
		EventID:      uuid.NewString(),
		AccountID:    account.ID,
		Email:        account.Email,
		Reregistered: reregistered,
		RegisteredAt: s.now(),
	}
	if err := s.events.PublishAccountRegistered(ctx, event); err != nil {
		s.logger.Warn("Failed to publish account registered event", zap.String("account_id", account.ID), zap.Error(err))
	}
}

func (s *AccountService) publishVerificationIssued(ctx context.Context, account domain.Account, otp domain.OTP, reason string, delivered bool) {
	if s.events == nil {
		return
	}
	event := domain.VerificationIssuedEvent{
		EventID:   uuid.NewString(),
		AccountID: account.ID,
		Email:     account.Email,
		Reason:    reason,
		IssuedAt:  s.now(),
		ExpiresAt: otp.ExpiresAt,
		Delivered: delivered,
	}
	if err := s.events.PublishVerificationIssued(ctx, event); err != nil {
		s.logger.Warn("Failed to publish verification issued event", zap.String("account_id", account.ID), zap.Error(err))
	}
}

func (s *AccountService) publishVerified(ctx context.Context, account domain.Account) {
	if s.events == nil {
		return
	}
	event := domain.AccountVerifiedEvent{
		EventID:    uuid.NewString(),
		AccountID:  account.ID,
		Email:      account.Email,
		VerifiedAt: s.now(),
	}
	if err := s.events.PublishAccountVerified(ctx, event); err != nil {
		s.logger.Warn("Failed to publish account verified event", zap.String("account_id", account.ID), zap.Error(err))
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrInvalidOTP):
		return "invalid_otp"
	case errors.Is(err, ErrOTPExpired):
		return "otp_expired"
	case errors.Is(err, ErrDelivery):
		return "delivery_failed"
	case errors.Is(err, ErrStore):
		return "store_failed"
	default:
		return "error"
	}
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// normalizeEmail trims surrounding whitespace. Case is preserved: emails are case-sensitive keys.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

func policyMessage(err error) string {
	var violation *security.PasswordValidationError
	if errors.As(err, &violation) && violation.Message != "" {
		return violation.Message
	}
	return err.Error()
}
