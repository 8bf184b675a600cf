package security

import (
	"bytes"
	"regexp"
	"testing"
	"time"

	"github.com/arklim/weather-auth/internal/core/domain"
)

var sixDigits = regexp.MustCompile(`^[0-9]{6}$`)

func TestOTPIssuer_IssueFormatAndExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewOTPIssuer(0, WithOTPClock(func() time.Time { return now }))

	for i := 0; i < 200; i++ {
		otp, err := issuer.Issue()
		if err != nil {
			t.Fatalf("Issue returned error: %v", err)
		}
		if !sixDigits.MatchString(otp.Code) {
			t.Fatalf("expected six digit code, got %q", otp.Code)
		}
		if !otp.ExpiresAt.Equal(now.Add(10 * time.Minute)) {
			t.Fatalf("expected expiry %v, got %v", now.Add(10*time.Minute), otp.ExpiresAt)
		}
	}
}

func TestOTPIssuer_PreservesLeadingZeros(t *testing.T) {
	// An all-zero random stream yields the smallest code.
	issuer := NewOTPIssuer(time.Minute, WithOTPRandom(bytes.NewReader(make([]byte, 64))))

	otp, err := issuer.Issue()
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if otp.Code != "000000" {
		t.Fatalf("expected 000000, got %q", otp.Code)
	}
}

func TestOTPIssuer_RandomFailure(t *testing.T) {
	issuer := NewOTPIssuer(time.Minute, WithOTPRandom(bytes.NewReader(nil)))

	if _, err := issuer.Issue(); err == nil {
		t.Fatalf("expected error when randomness is unavailable")
	}
}

func TestOTPIssuer_Validate(t *testing.T) {
	issuer := NewOTPIssuer(10 * time.Minute)
	expiresAt := time.Date(2024, 5, 1, 12, 10, 0, 0, time.UTC)
	stored := domain.OTP{Code: "012345", ExpiresAt: expiresAt}

	cases := []struct {
		name      string
		submitted string
		now       time.Time
		want      OTPResult
	}{
		{name: "match before expiry", submitted: "012345", now: expiresAt.Add(-time.Minute), want: OTPValid},
		{name: "match at expiry", submitted: "012345", now: expiresAt, want: OTPValid},
		{name: "match after expiry", submitted: "012345", now: expiresAt.Add(time.Nanosecond), want: OTPExpired},
		{name: "mismatch before expiry", submitted: "012346", now: expiresAt.Add(-time.Minute), want: OTPInvalid},
		{name: "mismatch after expiry", submitted: "999999", now: expiresAt.Add(time.Hour), want: OTPInvalid},
		{name: "no normalization", submitted: " 012345", now: expiresAt.Add(-time.Minute), want: OTPInvalid},
		{name: "leading zero dropped", submitted: "12345", now: expiresAt.Add(-time.Minute), want: OTPInvalid},
		{name: "empty", submitted: "", now: expiresAt.Add(-time.Minute), want: OTPInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := issuer.Validate(tc.submitted, stored, tc.now); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestGenerateNumericCodeRange(t *testing.T) {
	seen := make(map[byte]bool)
	for i := 0; i < 500; i++ {
		code, err := GenerateNumericCode(6)
		if err != nil {
			t.Fatalf("GenerateNumericCode returned error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected length 6, got %q", code)
		}
		seen[code[0]] = true
	}
	// Every leading digit, including zero, should show up in 500 draws.
	if len(seen) != 10 {
		t.Fatalf("expected all ten leading digits, saw %d", len(seen))
	}

	if _, err := GenerateNumericCode(0); err == nil {
		t.Fatalf("expected error for zero length")
	}
}

func TestGenerateSessionToken(t *testing.T) {
	first, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("GenerateSessionToken returned error: %v", err)
	}
	second, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("GenerateSessionToken returned error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct tokens")
	}
	// 32 bytes of entropy encode to 43 unpadded base64url characters.
	if len(first) != 43 {
		t.Fatalf("expected 43 character token, got %d", len(first))
	}
	if HashToken(first) == first || len(HashToken(first)) != 64 {
		t.Fatalf("unexpected token hash")
	}
}
