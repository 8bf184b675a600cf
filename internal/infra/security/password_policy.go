package security

import "github.com/arklim/weather-auth/internal/core/port"

const (
	defaultMinPasswordLength = 6
	// bcrypt ignores input past 72 bytes and newer versions reject it outright.
	bcryptMaxPasswordBytes = 72
)

// PasswordPolicy validates registration passwords: a minimum length, an optional byte ceiling
// and an optional zxcvbn strength score evaluated against the user's own inputs.
type PasswordPolicy struct {
	minLength int
	maxBytes  int
	minScore  int
}

// PasswordPolicyOption customises a PasswordPolicy.
type PasswordPolicyOption func(*PasswordPolicy)

// WithMinStrengthScore requires a zxcvbn score of at least score (0 disables the check).
func WithMinStrengthScore(score int) PasswordPolicyOption {
	return func(p *PasswordPolicy) {
		p.minScore = score
	}
}

// WithBcryptLimit caps passwords at the length bcrypt can hash.
func WithBcryptLimit() PasswordPolicyOption {
	return func(p *PasswordPolicy) {
		p.maxBytes = bcryptMaxPasswordBytes
	}
}

// NewPasswordPolicy builds a policy requiring at least minLength characters.
func NewPasswordPolicy(minLength int, opts ...PasswordPolicyOption) *PasswordPolicy {
	if minLength <= 0 {
		minLength = defaultMinPasswordLength
	}
	policy := &PasswordPolicy{minLength: minLength}
	for _, opt := range opts {
		if opt != nil {
			opt(policy)
		}
	}
	return policy
}

// MinLength returns the configured minimum password length in characters.
func (p *PasswordPolicy) MinLength() int {
	return p.minLength
}

// Validate applies the policy rules in order and returns the first violation.
func (p *PasswordPolicy) Validate(password string, userInputs ...string) error {
	validator := NewPasswordValidator(
		MinLengthRule(p.minLength),
		MaxBytesRule(p.maxBytes),
		RequirePasswordStrengthRule(p.minScore, userInputs...),
	)
	return validator.Validate(password)
}

var _ port.PasswordPolicy = (*PasswordPolicy)(nil)
