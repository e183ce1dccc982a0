package domain

import "time"

// TokenPair is what a completed authentication returns: the short-lived
// access token (JWT) and the opaque refresh token.
type TokenPair struct {
	AccountID    string
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration // access token lifetime
}

// RefreshToken models the stored refresh token record. The opaque value
// itself is never persisted, only its fingerprint.
type RefreshToken struct {
	ID        string
	AccountID string
	TokenHash string // deterministic fingerprint (base64url SHA-256)
	SessionID string // stable across rotations of the same session
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
