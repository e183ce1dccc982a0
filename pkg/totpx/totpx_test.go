package totpx

import (
	"encoding/base32"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stepStart is an instant exactly on a 30-second step boundary
// (1700000010 = 30 * 56666667).
var stepStart = time.Unix(1700000010, 0).UTC()

func TestGenerateSecret(t *testing.T) {
	t.Parallel()

	s1, err := GenerateSecret()
	require.NoError(t, err)
	s2, err := GenerateSecret()
	require.NoError(t, err)

	require.NotEqual(t, s1, s2)

	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s1)
	require.NoError(t, err)
	require.Len(t, raw, SecretBytes)
}

func TestCurrentCodeShape(t *testing.T) {
	t.Parallel()

	secret, err := GenerateSecret()
	require.NoError(t, err)

	code, err := CurrentCode(secret, stepStart)
	require.NoError(t, err)
	require.Len(t, code, 6)
	require.Regexp(t, `^\d{6}$`, code)

	// Deterministic within a step.
	again, err := CurrentCode(secret, stepStart.Add(29*time.Second))
	require.NoError(t, err)
	require.Equal(t, code, again)
}

func TestValidateCodeRoundTrip(t *testing.T) {
	t.Parallel()

	secret, err := GenerateSecret()
	require.NoError(t, err)

	for _, offset := range []time.Duration{0, 7 * time.Second, 29 * time.Second} {
		at := stepStart.Add(offset)
		code, err := CurrentCode(secret, at)
		require.NoError(t, err)
		require.True(t, ValidateCode(secret, code, at), "offset %s", offset)
	}
}

func TestValidateCodeDriftWindow(t *testing.T) {
	t.Parallel()

	secret, err := GenerateSecret()
	require.NoError(t, err)

	// Mint the code late in its step so +31s lands two steps away.
	minted := stepStart.Add(29 * time.Second)
	code, err := CurrentCode(secret, minted)
	require.NoError(t, err)

	require.True(t, ValidateCode(secret, code, minted.Add(15*time.Second)),
		"code should survive drift inside the adjacent step")
	require.False(t, ValidateCode(secret, code, minted.Add(31*time.Second)),
		"code should be rejected once two step boundaries have passed")
	require.True(t, ValidateCode(secret, code, minted.Add(-15*time.Second)),
		"preceding-step drift is tolerated as well")
}

func TestValidateCodeRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	s1, err := GenerateSecret()
	require.NoError(t, err)
	s2, err := GenerateSecret()
	require.NoError(t, err)

	code, err := CurrentCode(s1, stepStart)
	require.NoError(t, err)
	require.False(t, ValidateCode(s2, code, stepStart))
}

func TestValidateCodeFailsClosed(t *testing.T) {
	t.Parallel()

	require.False(t, ValidateCode("", "123456", stepStart))
	require.False(t, ValidateCode("!!not-base32!!", "123456", stepStart))

	secret, err := GenerateSecret()
	require.NoError(t, err)
	require.False(t, ValidateCode(secret, "", stepStart))
	require.False(t, ValidateCode(secret, "12345", stepStart))
}

func TestEnrollmentPayload(t *testing.T) {
	t.Parallel()

	secret, err := GenerateSecret()
	require.NoError(t, err)

	payload, err := EnrollmentPayload("Sentinel", "a@b.com", secret)
	require.NoError(t, err)

	require.Equal(t, secret, payload.Secret)
	require.True(t, strings.HasPrefix(payload.URI, "otpauth://totp/"))
	require.Contains(t, payload.URI, "issuer=Sentinel")
	require.Contains(t, payload.URI, secret)

	img, err := base64.StdEncoding.DecodeString(payload.QRCodeBase64)
	require.NoError(t, err)
	require.Equal(t, "\x89PNG", string(img[:4]))

	// Deterministic for a fixed secret.
	again, err := EnrollmentPayload("Sentinel", "a@b.com", secret)
	require.NoError(t, err)
	require.Equal(t, payload.URI, again.URI)
}

func TestEnrollmentPayloadRejectsBadSecret(t *testing.T) {
	t.Parallel()

	_, err := EnrollmentPayload("Sentinel", "a@b.com", "")
	require.Error(t, err)
	_, err = EnrollmentPayload("Sentinel", "a@b.com", "????")
	require.Error(t, err)
}
