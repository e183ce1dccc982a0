package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer signs access-token claims with an Ed25519 private key. The key is
// read-only after construction, so a single Signer is safe for concurrent
// use.
type Signer struct {
	kid string
	key ed25519.PrivateKey
}

// Verifier validates tokens produced by a Signer whose public key it knows.
type Verifier struct {
	issuer string
	keys   map[string]ed25519.PublicKey
}

// NewEphemeral generates a fresh Ed25519 keypair with a random key id and
// returns the matched signer/verifier pair. The private key only lives in
// memory: every token becomes invalid when the process restarts, which is
// acceptable for access tokens measured in minutes.
func NewEphemeral(issuer string) (*Signer, *Verifier, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("jwtx: generate ed25519 key: %w", err)
	}

	kid, err := randomKID()
	if err != nil {
		return nil, nil, err
	}

	signer := &Signer{kid: kid, key: priv}
	verifier := &Verifier{
		issuer: issuer,
		keys:   map[string]ed25519.PublicKey{kid: pub},
	}
	return signer, verifier, nil
}

func randomKID() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("jwtx: generate kid: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// KID returns the key identifier stamped into token headers.
func (s *Signer) KID() string { return s.kid }

// Sign turns claims into a compact signed JWT string.
func (s *Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

// Verify validates the JWT string and returns its parsed Claims. Signature,
// algorithm, kid, issuer and expiry are all enforced.
func (v *Verifier) Verify(tokenStr string) (Claims, error) {
	// Claim validation happens below so expiry surfaces as ErrExpired
	// rather than a generic parse failure.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("jwtx: missing kid")
		}

		pub, ok := v.keys[kid]
		if !ok {
			return nil, fmt.Errorf("jwtx: unknown kid %q", kid)
		}
		return pub, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrMalformed
	}

	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiry(); err != nil {
		return Claims{}, err
	}

	return *claims, nil
}
