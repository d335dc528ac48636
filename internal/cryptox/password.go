// Package cryptox holds the credential primitives: salted adaptive password
// hashing and URL-safe random token generation.
package cryptox

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for stored passwords.
const DefaultCost = 12

// Hasher hashes and verifies passwords. The salt is embedded in the returned
// hash string.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// BcryptHasher implements Hasher with golang.org/x/crypto/bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher with the given cost. Values outside the
// range bcrypt accepts fall back to DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", err
		}
		return "", errors.New("password hashing failed")
	}
	return string(b), nil
}

func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// UnusablePasswordHash hashes a random secret nobody ever sees. It is stored
// for accounts that only authenticate through an external provider.
func UnusablePasswordHash(h Hasher) (string, error) {
	secret, err := MakeRandURLToken(32)
	if err != nil {
		return "", err
	}
	return h.Hash(secret)
}
