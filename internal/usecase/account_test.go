package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arklim/weather-auth/internal/core/domain"
)

func TestAccountLifecycleScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	registered, err := h.service.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.False(t, registered.Reregistered)
	assert.Equal(t, 1, h.accounts.Len())

	pending := h.account(t, "a@x.com")
	assert.Equal(t, domain.AccountStatusPendingVerification, pending.Status())
	c1 := h.notifier.last(t).Code

	wrong := "000000"
	if wrong == c1 {
		wrong = "111111"
	}
	_, err = h.service.VerifyOTP(ctx, "a@x.com", wrong)
	require.ErrorIs(t, err, ErrInvalidOTP)
	assert.Equal(t, pending, h.account(t, "a@x.com"))

	session, err := h.service.VerifyOTP(ctx, "a@x.com", c1)
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)

	verified := h.account(t, "a@x.com")
	assert.True(t, verified.IsVerified())
	_, hasOTP := verified.PendingOTP()
	assert.False(t, hasOTP)

	read, err := h.session.Read(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.Principal{AccountID: verified.ID, Email: "a@x.com"}, read.Principal())

	require.NoError(t, h.session.Destroy(ctx, session.Token))
	_, err = h.session.Read(ctx, session.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegisterThenVerifyAlwaysVerifies(t *testing.T) {
	passwords := []string{"secret1", "123456", "pässwörd", "a much longer pass phrase", "      x", "      "}

	for i, password := range passwords {
		t.Run(password, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			email := fmt.Sprintf("user%d@x.com", i)

			_, err := h.service.Register(ctx, email, password)
			require.NoError(t, err)

			session, err := h.service.VerifyOTP(ctx, email, h.notifier.last(t).Code)
			require.NoError(t, err)
			assert.True(t, h.account(t, email).IsVerified())

			_, err = h.session.Read(ctx, session.Token)
			assert.NoError(t, err)
		})
	}
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		email    string
		password string
		message  string
	}{
		{name: "missing email", email: "", password: "secret1", message: "Email and password required"},
		{name: "blank email", email: "   ", password: "secret1", message: "Email and password required"},
		{name: "missing password", email: "a@x.com", password: "", message: "Email and password required"},
		{name: "short password", email: "a@x.com", password: "12345", message: "Password must be at least 6 characters"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.service.Register(ctx, tc.email, tc.password)
			require.ErrorIs(t, err, ErrValidation)

			var validation *ValidationError
			require.True(t, errors.As(err, &validation))
			assert.Equal(t, tc.message, validation.Message)
		})
	}

	assert.Equal(t, 0, h.accounts.Len())
	assert.Empty(t, h.notifier.sent)
}

func TestRegisterVerifiedAccountFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	_, err = h.service.VerifyOTP(ctx, "a@x.com", h.notifier.last(t).Code)
	require.NoError(t, err)

	before := h.account(t, "a@x.com")
	_, err = h.service.Register(ctx, "a@x.com", "another1")
	require.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, before, h.account(t, "a@x.com"))
}

func TestReregistrationReplacesPasswordAndCode(t *testing.T) {
	h := newHarness(t, withOTPSequence(4))
	ctx := context.Background()

	first, err := h.service.Register(ctx, "a@x.com", "first-pass")
	require.NoError(t, err)
	firstCode := h.notifier.last(t).Code

	second, err := h.service.Register(ctx, "a@x.com", "second-pass")
	require.NoError(t, err)
	assert.True(t, second.Reregistered)
	assert.Equal(t, first.AccountID, second.AccountID)
	assert.Equal(t, 1, h.accounts.Len())

	account := h.account(t, "a@x.com")
	assert.True(t, h.hasher.Verify("second-pass", account.PasswordHash))
	assert.False(t, h.hasher.Verify("first-pass", account.PasswordHash))

	_, err = h.service.VerifyOTP(ctx, "a@x.com", firstCode)
	assert.ErrorIs(t, err, ErrInvalidOTP)

	_, err = h.service.VerifyOTP(ctx, "a@x.com", h.notifier.last(t).Code)
	assert.NoError(t, err)
}

func TestVerifyOTPExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	sent := h.notifier.last(t)
	assert.Equal(t, h.clock.Now().Add(10*time.Minute), sent.ExpiresAt)

	h.clock.Advance(10*time.Minute + time.Second)

	_, err = h.service.VerifyOTP(ctx, "a@x.com", sent.Code)
	require.ErrorIs(t, err, ErrOTPExpired)
	assert.False(t, h.account(t, "a@x.com").IsVerified())

	// A wrong code after expiry is still reported as invalid.
	_, err = h.service.VerifyOTP(ctx, "a@x.com", "not-the-code")
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestVerifyOTPUnknownAndVerifiedAccounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.VerifyOTP(ctx, "nobody@x.com", "123456")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.service.VerifyOTP(ctx, "", "123456")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.service.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	code := h.notifier.last(t).Code
	_, err = h.service.VerifyOTP(ctx, "a@x.com", code)
	require.NoError(t, err)

	// The code was consumed; replaying it cannot verify again or open a session.
	_, err = h.service.VerifyOTP(ctx, "a@x.com", code)
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestLoginVerifiedAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	_, err = h.service.VerifyOTP(ctx, "a@x.com", h.notifier.last(t).Code)
	require.NoError(t, err)

	result, err := h.service.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.False(t, result.VerificationRequired)
	require.NotNil(t, result.Session)

	read, err := h.session.Read(ctx, result.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", read.Email)

	_, err = h.service.Login(ctx, "a@x.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginDoesNotRevealAccountExistence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, unknownErr := h.service.Login(ctx, "nobody@x.com", "secret1")
	_, wrongErr := h.service.Login(ctx, "a@x.com", "wrong-password")

	require.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	require.ErrorIs(t, wrongErr, ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestLoginUnverifiedIssuesFreshCode(t *testing.T) {
	h := newHarness(t, withOTPSequence(4))
	ctx := context.Background()

	_, err := h.service.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	firstCode := h.notifier.last(t).Code

	result, err := h.service.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.True(t, result.VerificationRequired)
	assert.Nil(t, result.Session)
	assert.Equal(t, "a@x.com", result.Email)

	freshCode := h.notifier.last(t).Code
	assert.NotEqual(t, firstCode, freshCode)
	assert.Len(t, h.notifier.sent, 2)

	otp, ok := h.account(t, "a@x.com").PendingOTP()
	require.True(t, ok)
	assert.Equal(t, freshCode, otp.Code)
	assert.Empty(t, h.events.started)

	_, err = h.service.VerifyOTP(ctx, "a@x.com", firstCode)
	assert.ErrorIs(t, err, ErrInvalidOTP)
	_, err = h.service.VerifyOTP(ctx, "a@x.com", freshCode)
	assert.NoError(t, err)
}

func TestLoginValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Login(context.Background(), "a@x.com", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegisterDeliveryFailureKeepsPendingRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.notifier.err = errors.New("smtp: 421 service not available")

	_, err := h.service.Register(ctx, "a@x.com", "secret1")
	require.ErrorIs(t, err, ErrDelivery)
	assert.NotErrorIs(t, err, ErrValidation)

	account := h.account(t, "a@x.com")
	assert.Equal(t, domain.AccountStatusPendingVerification, account.Status())
	require.Len(t, h.events.issued, 1)
	assert.False(t, h.events.issued[0].Delivered)

	// Once the mail transport recovers, logging in re-sends a code.
	h.notifier.err = nil
	result, err := h.service.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.True(t, result.VerificationRequired)

	_, err = h.service.VerifyOTP(ctx, "a@x.com", h.notifier.last(t).Code)
	assert.NoError(t, err)
}

func TestStoreFailuresAreReportedAsStoreErrors(t *testing.T) {
	h := newHarness(t, withAccounts(failingAccounts{err: errBoom}))
	ctx := context.Background()

	_, err := h.service.Register(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, ErrStore)

	_, err = h.service.VerifyOTP(ctx, "a@x.com", "123456")
	assert.ErrorIs(t, err, ErrStore)

	_, err = h.service.Login(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, ErrStore)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestEventPublishFailureDoesNotFailOperations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.events.err = errBoom

	_, err := h.service.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	_, err = h.service.VerifyOTP(ctx, "a@x.com", h.notifier.last(t).Code)
	require.NoError(t, err)

	assert.Len(t, h.events.registered, 1)
	assert.Len(t, h.events.verified, 1)
	require.Len(t, h.events.started, 1)
	assert.Equal(t, sessionReasonVerification, h.events.started[0].Reason)
}

func TestConcurrentRegistrationsKeepOneRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.service.Register(ctx, "a@x.com", fmt.Sprintf("password-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, h.accounts.Len())
	assert.Len(t, h.notifier.sent, 8)

	// The pending code is one of the delivered codes.
	otp, ok := h.account(t, "a@x.com").PendingOTP()
	require.True(t, ok)
	delivered := make([]string, 0, len(h.notifier.sent))
	for _, sent := range h.notifier.sent {
		delivered = append(delivered, sent.Code)
	}
	assert.Contains(t, delivered, otp.Code)
}

func TestConcurrentVerificationOpensOneSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	code := h.notifier.last(t).Code

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.service.VerifyOTP(ctx, "a@x.com", code); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrInvalidOTP)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestVerifyOTPEmptyCodeIsInvalid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	before := h.account(t, "a@x.com")

	_, err = h.service.VerifyOTP(ctx, "a@x.com", "")
	require.ErrorIs(t, err, ErrInvalidOTP)
	assert.Equal(t, before, h.account(t, "a@x.com"))
}

func TestLoginRedrawsCodeMatchingPendingOne(t *testing.T) {
	h := newHarness(t, withOTPCodes(5, 5, 6))
	ctx := context.Background()

	_, err := h.service.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "000005", h.notifier.last(t).Code)

	result, err := h.service.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	require.True(t, result.VerificationRequired)
	assert.Equal(t, "000006", h.notifier.last(t).Code)

	otp, ok := h.account(t, "a@x.com").PendingOTP()
	require.True(t, ok)
	assert.Equal(t, "000006", otp.Code)
}

func TestReregistrationRedrawsCodeMatchingPendingOne(t *testing.T) {
	h := newHarness(t, withOTPCodes(5, 5, 7))
	ctx := context.Background()

	_, err := h.service.Register(ctx, "a@x.com", "first-pass")
	require.NoError(t, err)

	_, err = h.service.Register(ctx, "a@x.com", "second-pass")
	require.NoError(t, err)
	assert.Equal(t, "000007", h.notifier.last(t).Code)

	_, err = h.service.VerifyOTP(ctx, "a@x.com", "000005")
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestLoginFailsWhenEveryDrawRepeatsPendingCode(t *testing.T) {
	h := newHarness(t, withOTPCodes(5, 5, 5, 5, 5, 5))
	ctx := context.Background()

	_, err := h.service.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = h.service.Login(ctx, "a@x.com", "secret1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.Len(t, h.notifier.sent, 1)

	otp, ok := h.account(t, "a@x.com").PendingOTP()
	require.True(t, ok)
	assert.Equal(t, "000005", otp.Code)
}

func TestLoginUnknownEmailStillComparesPassword(t *testing.T) {
	h := newHarness(t)
	counting := &countingHasher{PasswordHasher: h.hasher}
	h.service.hasher = counting
	ctx := context.Background()

	_, err := h.service.Login(ctx, "nobody@x.com", "secret1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, counting.count())

	_, err = h.service.Login(ctx, "nobody@x.com", "")
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 1, counting.count())
}
