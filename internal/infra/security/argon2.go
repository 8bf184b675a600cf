package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Variant      = "argon2id"
	argon2Version      = "v=19"
	argon2ParamsFormat = "m=%d,t=%d,p=%d"
)

var (
	errInvalidHashFormat = errors.New("argon2: invalid encoded hash format")
	errInvalidConfig     = errors.New("argon2: invalid configuration")
)

// Argon2Config defines tunable parameters for Argon2id password hashing.
type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns the library default Argon2id configuration.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2Hasher hashes passwords with Argon2id and encodes the parameters alongside the digest.
type Argon2Hasher struct {
	cfg Argon2Config
}

// NewArgon2Hasher validates cfg and returns a hasher using it for new digests.
func NewArgon2Hasher(cfg Argon2Config) (*Argon2Hasher, error) {
	if err := validateArgon2Config(cfg); err != nil {
		return nil, err
	}
	return &Argon2Hasher{cfg: cfg}, nil
}

// Config returns the parameters used for new digests.
func (h *Argon2Hasher) Config() Argon2Config {
	return h.cfg
}

func validateArgon2Config(cfg Argon2Config) error {
	if cfg.Memory < 8*1024 {
		return fmt.Errorf("%w: memory must be at least 8192", errInvalidConfig)
	}
	if cfg.Iterations == 0 {
		return fmt.Errorf("%w: iterations must be greater than zero", errInvalidConfig)
	}
	if cfg.Parallelism == 0 {
		return fmt.Errorf("%w: parallelism must be greater than zero", errInvalidConfig)
	}
	if cfg.SaltLength < 8 {
		return fmt.Errorf("%w: salt length must be at least 8 bytes", errInvalidConfig)
	}
	if cfg.KeyLength < 16 {
		return fmt.Errorf("%w: key length must be at least 16 bytes", errInvalidConfig)
	}
	return nil
}

// Hash generates an Argon2id hash for the provided password.
// The returned value embeds the parameters, salt, and hash in a portable format.
func (h *Argon2Hasher) Hash(password string) (string, error) {
	cfg := h.cfg

	salt := make([]byte, cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2: generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(password), salt, cfg.Iterations, cfg.Memory, cfg.Parallelism, cfg.KeyLength)

	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(sum)

	// Format: argon2id$v=19$m=<memory>,t=<iterations>,p=<parallelism>$<salt>$<hash>
	encoded := strings.Join([]string{
		argon2Variant,
		argon2Version,
		formatArgon2Params(cfg),
		encodedSalt,
		encodedHash,
	}, "$")

	return encoded, nil
}

// Compare checks password against an encoded Argon2id digest. Parameters are read from the
// digest, so digests produced under a previous configuration keep verifying.
func (h *Argon2Hasher) Compare(password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}

	d, err := parseArgon2Digest(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), d.salt, d.params.Iterations, d.params.Memory, d.params.Parallelism, uint32(len(d.sum)))
	return subtle.ConstantTimeCompare(computed, d.sum) == 1, nil
}

// isArgon2Digest reports whether encoded looks like a digest produced by Argon2Hasher.
func isArgon2Digest(encoded string) bool {
	return strings.HasPrefix(encoded, argon2Variant+"$")
}

type argon2Digest struct {
	params Argon2Config
	salt   []byte
	sum    []byte
}

func parseArgon2Digest(encoded string) (argon2Digest, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != argon2Variant {
		return argon2Digest{}, errInvalidHashFormat
	}
	if parts[1] != argon2Version {
		return argon2Digest{}, fmt.Errorf("argon2: unsupported version %q", parts[1])
	}

	var d argon2Digest
	_, err := fmt.Sscanf(parts[2], argon2ParamsFormat, &d.params.Memory, &d.params.Iterations, &d.params.Parallelism)
	if err != nil || formatArgon2Params(d.params) != parts[2] {
		return argon2Digest{}, errInvalidHashFormat
	}

	if d.salt, err = base64.RawStdEncoding.DecodeString(parts[3]); err != nil {
		return argon2Digest{}, fmt.Errorf("argon2: decode salt: %w", err)
	}
	if d.sum, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return argon2Digest{}, fmt.Errorf("argon2: decode hash: %w", err)
	}

	d.params.SaltLength = uint32(len(d.salt))
	d.params.KeyLength = uint32(len(d.sum))
	if err := validateArgon2Config(d.params); err != nil {
		return argon2Digest{}, err
	}
	return d, nil
}

func formatArgon2Params(cfg Argon2Config) string {
	return fmt.Sprintf(argon2ParamsFormat, cfg.Memory, cfg.Iterations, cfg.Parallelism)
}
