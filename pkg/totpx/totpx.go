// Package totpx implements RFC 6238 time-based one-time password support:
// secret generation, enrollment payloads for authenticator apps, and code
// validation with a small clock-drift window.
package totpx

import (
	"bytes"
	"crypto/rand"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// SecretBytes is the raw entropy of a generated secret. 20 bytes is the
	// RFC 4226 recommended minimum of 160 bits.
	SecretBytes = 20

	// Period is the TOTP time step in seconds.
	Period = 30

	// Skew is how many adjacent time steps are accepted on validation,
	// tolerating roughly +/-30s of clock drift between server and device.
	Skew = 1

	qrSizePx = 256
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Payload is the one-time enrollment material returned to the user when a
// secret is provisioned. It is never reconstructable after this response.
type Payload struct {
	Secret       string // base32 secret, for manual entry
	URI          string // otpauth:// provisioning URI
	QRCodeBase64 string // PNG render of the URI, base64 encoded
}

// GenerateSecret produces a new base32-encoded secret with SecretBytes of
// cryptographically random entropy.
func GenerateSecret() (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("totpx: generate secret: %w", err)
	}
	return b32.EncodeToString(buf), nil
}

// EnrollmentPayload builds the otpauth:// provisioning URI for the given
// issuer/account pair and renders it as a scannable QR image. The transform
// is deterministic for a fixed secret.
func EnrollmentPayload(issuer, accountLabel, secret string) (Payload, error) {
	raw, err := decodeSecret(secret)
	if err != nil {
		return Payload{}, fmt.Errorf("totpx: invalid secret: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountLabel,
		Period:      Period,
		Secret:      raw,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Payload{}, fmt.Errorf("totpx: build provisioning key: %w", err)
	}

	img, err := key.Image(qrSizePx, qrSizePx)
	if err != nil {
		return Payload{}, fmt.Errorf("totpx: render qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Payload{}, fmt.Errorf("totpx: encode qr png: %w", err)
	}

	return Payload{
		Secret:       key.Secret(),
		URI:          key.URL(),
		QRCodeBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// CurrentCode computes the 6-digit code for the time step containing the
// given instant.
func CurrentCode(secret string, at time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, at, validateOpts(0))
	if err != nil {
		return "", fmt.Errorf("totpx: generate code: %w", err)
	}
	return code, nil
}

// ValidateCode reports whether the supplied code matches the secret at the
// given instant, accepting the immediately preceding and following time
// steps. A malformed or empty secret never validates; the comparison is
// constant-time underneath.
func ValidateCode(secret, code string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, validateOpts(Skew))
	return err == nil && ok
}

func validateOpts(skew uint) totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    Period,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func decodeSecret(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("empty secret")
	}
	return b32.DecodeString(secret)
}
