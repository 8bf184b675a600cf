package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// SessionTokenBytes is the entropy of a session token before encoding.
const SessionTokenBytes = 32

// GenerateNumericCode returns a random numeric string of the given length. Every value in
// [0, 10^length) is equally likely.
func GenerateNumericCode(length int) (string, error) {
	return generateNumericCode(rand.Reader, length)
}

func generateNumericCode(r io.Reader, length int) (string, error) {
	if length <= 0 || length > 18 {
		return "", fmt.Errorf("length must be between 1 and 18")
	}

	upper := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(r, upper)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	code := n.String()
	if pad := length - len(code); pad > 0 {
		code = strings.Repeat("0", pad) + code
	}
	return code, nil
}

// GenerateSecureToken returns a base64 URL-safe random string using the specified number of random bytes.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateSessionToken returns a fresh opaque session token.
func GenerateSessionToken() (string, error) {
	return GenerateSecureToken(SessionTokenBytes)
}

// HashToken calculates a SHA-256 hash of the provided value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
