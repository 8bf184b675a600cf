package usecase

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/arklim/weather-auth/internal/core/domain"
	"github.com/arklim/weather-auth/internal/core/port"
	"github.com/arklim/weather-auth/internal/infra/security"
	"github.com/arklim/weather-auth/internal/repository/memory"
)

type sentCode struct {
	Email     string
	Code      string
	ExpiresAt time.Time
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (n *recordingNotifier) SendVerificationCode(_ context.Context, email, code string, expiresAt time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentCode{Email: email, Code: code, ExpiresAt: expiresAt})
	return nil
}

func (n *recordingNotifier) last(t *testing.T) sentCode {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		t.Fatalf("no verification code was sent")
	}
	return n.sent[len(n.sent)-1]
}

type recordingPublisher struct {
	mu         sync.Mutex
	registered []domain.AccountRegisteredEvent
	issued     []domain.VerificationIssuedEvent
	verified   []domain.AccountVerifiedEvent
	started    []domain.SessionStartedEvent
	ended      []domain.SessionEndedEvent
	err        error
}

func (p *recordingPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, event)
	return p.err
}

func (p *recordingPublisher) PublishVerificationIssued(_ context.Context, event domain.VerificationIssuedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issued = append(p.issued, event)
	return p.err
}

func (p *recordingPublisher) PublishAccountVerified(_ context.Context, event domain.AccountVerifiedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verified = append(p.verified, event)
	return p.err
}

func (p *recordingPublisher) PublishSessionStarted(_ context.Context, event domain.SessionStartedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = append(p.started, event)
	return p.err
}

func (p *recordingPublisher) PublishSessionEnded(_ context.Context, event domain.SessionEndedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = append(p.ended, event)
	return p.err
}

var _ port.EventPublisher = (*recordingPublisher)(nil)

// failingAccounts fails every store call.
type failingAccounts struct {
	err error
}

func (f failingAccounts) FindByEmail(context.Context, string) (*domain.Account, error) {
	return nil, f.err
}

func (f failingAccounts) Insert(context.Context, domain.Account) (*domain.Account, error) {
	return nil, f.err
}

func (f failingAccounts) Update(context.Context, string, domain.AccountUpdate) error {
	return f.err
}

func (f failingAccounts) WithEmailLock(ctx context.Context, _ string, fn func(context.Context, port.AccountRepository) error) error {
	return fn(ctx, f)
}

// testClock is a settable time source shared by the services under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	accounts *memory.AccountRepository
	sessions *memory.SessionRepository
	hasher   *security.PasswordHasher
	notifier *recordingNotifier
	events   *recordingPublisher
	clock    *testClock
	session  *SessionService
	service  *AccountService
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	accounts port.AccountRepository
	otpOpts  []security.OTPIssuerOption
}

func withAccounts(accounts port.AccountRepository) harnessOption {
	return func(c *harnessConfig) { c.accounts = accounts }
}

// withOTPSequence makes the issuer return codes 000001, 000002, ... in order.
func withOTPSequence(n int) harnessOption {
	return func(c *harnessConfig) {
		var buf bytes.Buffer
		for i := 1; i <= n; i++ {
			buf.Write([]byte{0, 0, byte(i)})
		}
		c.otpOpts = append(c.otpOpts, security.WithOTPRandom(&buf))
	}
}

// withOTPCodes makes the issuer draw the given values in order, so values 5, 5, 6 yield
// 000005, 000005, 000006.
func withOTPCodes(values ...byte) harnessOption {
	return func(c *harnessConfig) {
		var buf bytes.Buffer
		for _, v := range values {
			buf.Write([]byte{0, 0, v})
		}
		c.otpOpts = append(c.otpOpts, security.WithOTPRandom(&buf))
	}
}

// countingHasher records how many comparisons reach the wrapped hasher.
type countingHasher struct {
	port.PasswordHasher
	mu       sync.Mutex
	verifies int
}

func (h *countingHasher) Verify(password, encoded string) bool {
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()
	return h.PasswordHasher.Verify(password, encoded)
}

func (h *countingHasher) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifies
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	cfg := harnessConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	hasher, err := security.NewPasswordHasher(security.AlgorithmBcrypt, bcrypt.MinCost, security.DefaultArgon2Config())
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}

	h := &harness{
		accounts: memory.NewAccountRepository(),
		sessions: memory.NewSessionRepository(),
		hasher:   hasher,
		notifier: &recordingNotifier{},
		events:   &recordingPublisher{},
		clock:    newTestClock(),
	}

	h.accounts.WithClock(h.clock.Now)
	h.sessions.WithClock(h.clock.Now)

	var accounts port.AccountRepository = h.accounts
	if cfg.accounts != nil {
		accounts = cfg.accounts
	}

	log := zaptest.NewLogger(t)
	h.session = NewSessionService(h.sessions, h.events, log, DefaultSessionTTL)
	h.session.WithClock(h.clock.Now)

	otpOpts := append([]security.OTPIssuerOption{security.WithOTPClock(h.clock.Now)}, cfg.otpOpts...)
	h.service = NewAccountService(
		accounts,
		hasher,
		security.NewPasswordPolicy(6, security.WithBcryptLimit()),
		security.NewOTPIssuer(security.DefaultOTPTTL, otpOpts...),
		h.notifier,
		h.session,
		h.events,
		log,
	)
	h.service.WithClock(h.clock.Now)

	return h
}

func (h *harness) account(t *testing.T, email string) domain.Account {
	t.Helper()
	account, err := h.accounts.FindByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("FindByEmail(%s): %v", email, err)
	}
	return *account
}

var errBoom = errors.New("boom")
