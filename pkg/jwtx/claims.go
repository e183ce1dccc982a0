package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants. The access token is deliberately short-lived;
// there is no server-side revocation list, so expiry is the only kill switch.
const (
	DefaultAccessTokenTTL  = 5 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Authentication method reference values carried in the "amr" claim.
const (
	AMRPassword = "pwd"
	AMRTOTP     = "otp"
	AMRRefresh  = "refresh"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// Claims are the access-token claims issued by the service. Keep changes
// additive to preserve compatibility with already-issued tokens.
type Claims struct {
	jwt.RegisteredClaims

	// SID is the session identifier, stable across refreshes.
	SID string `json:"sid,omitempty"`

	// Email of the authenticated account, for display only.
	Email string `json:"email,omitempty"`

	// AMR lists the authentication methods satisfied for this session,
	// e.g. ["pwd"] or ["pwd","otp"].
	AMR []string `json:"amr,omitempty"`
}

// NewAccessClaims builds minimally-correct claims for an access token.
func NewAccessClaims(
	subject, sid, email string,
	amr []string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		SID:   sid,
		Email: email,
		AMR:   amr,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks the issuer claim against the expected value.
// An empty expectation enforces nothing.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used
// before it becomes valid (nbf).
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}

	return nil
}
