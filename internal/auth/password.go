// Package auth handles credential hashing and verification. The rest of the
// system treats credential material as opaque.
package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies credentials.
type Hasher interface {
	Hash(credential string) (string, error)
	Verify(hash, credential string) bool
}

// BcryptHasher implements Hasher with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a bcrypt hasher. A cost of 0 uses the bcrypt default.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the bcrypt hash of the credential.
func (h *BcryptHasher) Hash(credential string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(credential), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether the credential matches the stored hash.
func (h *BcryptHasher) Verify(hash, credential string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)) == nil
}
