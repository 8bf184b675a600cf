package security

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"time"

	"github.com/arklim/weather-auth/internal/core/domain"
)

const (
	// OTPLength is the number of decimal digits in a verification code.
	OTPLength = 6
	// DefaultOTPTTL is how long an issued code stays valid.
	DefaultOTPTTL = 10 * time.Minute
)

// OTPResult is the outcome of checking a submitted code against a pending one.
type OTPResult int

const (
	OTPInvalid OTPResult = iota
	OTPExpired
	OTPValid
)

func (r OTPResult) String() string {
	switch r {
	case OTPValid:
		return "valid"
	case OTPExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// OTPIssuer generates verification codes and checks submissions against them.
type OTPIssuer struct {
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

// OTPIssuerOption customises an OTPIssuer.
type OTPIssuerOption func(*OTPIssuer)

// WithOTPClock overrides the time source used for expiry calculation.
func WithOTPClock(now func() time.Time) OTPIssuerOption {
	return func(i *OTPIssuer) {
		if now != nil {
			i.now = now
		}
	}
}

// WithOTPRandom overrides the randomness source. Intended for tests.
func WithOTPRandom(r io.Reader) OTPIssuerOption {
	return func(i *OTPIssuer) {
		if r != nil {
			i.random = r
		}
	}
}

// NewOTPIssuer returns an issuer whose codes expire ttl after issuance.
func NewOTPIssuer(ttl time.Duration, opts ...OTPIssuerOption) *OTPIssuer {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	issuer := &OTPIssuer{
		ttl:    ttl,
		now:    time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(issuer)
		}
	}
	return issuer
}

// TTL returns the validity window of issued codes.
func (i *OTPIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue returns a fresh six digit code expiring ttl from now.
func (i *OTPIssuer) Issue() (domain.OTP, error) {
	code, err := generateNumericCode(i.random, OTPLength)
	if err != nil {
		return domain.OTP{}, fmt.Errorf("issue otp: %w", err)
	}
	return domain.OTP{
		Code:      code,
		ExpiresAt: i.now().UTC().Add(i.ttl),
	}, nil
}

// Validate compares submitted with the stored code. A mismatch is reported as invalid even
// when the stored code has expired; a match after expiry is reported as expired. The expiry
// instant itself is still valid.
func (i *OTPIssuer) Validate(submitted string, stored domain.OTP, now time.Time) OTPResult {
	if len(submitted) != len(stored.Code) || subtle.ConstantTimeCompare([]byte(submitted), []byte(stored.Code)) != 1 {
		return OTPInvalid
	}
	if now.After(stored.ExpiresAt) {
		return OTPExpired
	}
	return OTPValid
}
