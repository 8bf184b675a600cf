package port

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify reports false for a mismatch and for malformed or empty digests.
	Verify(password string, encoded string) bool
}

// PasswordPolicy enforces password requirements at registration.
type PasswordPolicy interface {
	Validate(password string, userInputs ...string) error
}
