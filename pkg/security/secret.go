package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrHashingFailed  = errors.New("secret hashing failed")
	ErrSecretTooShort = errors.New("secret too short")
	MinSecretLen      = 8
)

// SecretHasher hashes and checks shared secrets such as the admin key.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Compare(hashed, secret string) error
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a new secret hasher using bcrypt
func NewBcryptHasher(cost int) SecretHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (b *bcryptHasher) Hash(secret string) (string, error) {
	if len(secret) < MinSecretLen {
		return "", ErrSecretTooShort
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), b.cost)
	if err != nil {
		return "", ErrHashingFailed
	}
	return string(bytes), nil
}

func (b *bcryptHasher) Compare(hashed, secret string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(secret))
}

// Digest is the fixed-size form of a plain secret used by EqualDigest.
func Digest(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// EqualDigest compares provided against a stored Digest in constant time.
func EqualDigest(digest []byte, provided string) bool {
	if len(digest) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(Digest(provided), digest) == 1
}
