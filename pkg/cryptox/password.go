package cryptox

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost is the bcrypt cost factor used when callers don't
// override it. Matches the usual interactive-login budget of tens of
// milliseconds per hash.
const DefaultPasswordCost = 10

var ErrPasswordMismatch = errors.New("cryptox: password does not match")

// HashPassword hashes a plaintext password with bcrypt at the given cost.
// The salt is generated internally and embedded in the encoded hash.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultPasswordCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("cryptox: hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password against a bcrypt hash.
// Any failure (including a malformed stored hash) reports a mismatch;
// verification never succeeds on error.
func VerifyPassword(password, encodedHash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}

// DummyVerifyPassword burns roughly the same work as a real verification.
// Call it on the unknown-account path of a login so the response time does
// not reveal whether the email exists.
func DummyVerifyPassword(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// A fixed hash of an unguessable random value, cost DefaultPasswordCost.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")
