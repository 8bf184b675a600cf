package security

import (
	"fmt"

	"github.com/arklim/weather-auth/internal/core/port"
)

// Algorithm names accepted by NewPasswordHasher.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

type digestScheme interface {
	Hash(password string) (string, error)
	Compare(password, encoded string) (bool, error)
}

// PasswordHasher produces digests with the configured algorithm and verifies digests of any
// supported algorithm, picking the scheme from the digest prefix.
type PasswordHasher struct {
	algorithm string
	primary   digestScheme
	bcrypt    *BcryptHasher
	argon2    *Argon2Hasher
}

// NewPasswordHasher builds a hasher that writes digests using algorithm.
func NewPasswordHasher(algorithm string, bcryptCost int, argonCfg Argon2Config) (*PasswordHasher, error) {
	bc, err := NewBcryptHasher(bcryptCost)
	if err != nil {
		return nil, err
	}
	ar, err := NewArgon2Hasher(argonCfg)
	if err != nil {
		return nil, err
	}

	h := &PasswordHasher{algorithm: algorithm, bcrypt: bc, argon2: ar}
	switch algorithm {
	case AlgorithmBcrypt:
		h.primary = bc
	case AlgorithmArgon2id:
		h.primary = ar
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", algorithm)
	}
	return h, nil
}

// Algorithm returns the name of the algorithm used for new digests.
func (h *PasswordHasher) Algorithm() string {
	return h.algorithm
}

// Hash returns a salted one-way digest of password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	return h.primary.Hash(password)
}

// Verify reports whether password matches encoded. Unknown or corrupt digests never match.
func (h *PasswordHasher) Verify(password, encoded string) bool {
	var scheme digestScheme
	switch {
	case isBcryptDigest(encoded):
		scheme = h.bcrypt
	case isArgon2Digest(encoded):
		scheme = h.argon2
	default:
		return false
	}

	ok, err := scheme.Compare(password, encoded)
	if err != nil {
		return false
	}
	return ok
}

var _ port.PasswordHasher = (*PasswordHasher)(nil)
