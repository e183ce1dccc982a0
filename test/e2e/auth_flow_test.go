package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpapi "github.com/sentinelauth/sentinel/internal/auth/http"
	"github.com/sentinelauth/sentinel/internal/auth/service"
	"github.com/sentinelauth/sentinel/internal/auth/store/drivers/sqlite"
	"github.com/sentinelauth/sentinel/pkg/jwtx"
	"github.com/sentinelauth/sentinel/pkg/slogx"
	"github.com/sentinelauth/sentinel/pkg/totpx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// startServer boots the full HTTP stack against an in-memory database and
// returns its base URL.
func startServer(t *testing.T) string {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	signer, verifier, err := jwtx.NewEphemeral("sentinel-e2e")
	require.NoError(t, err)

	tokens := &service.TokenService{
		Signer:     signer,
		Store:      st,
		Issuer:     "sentinel-e2e",
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
	}

	logger := slogx.New(slogx.Config{Service: "e2e", Level: "error", Format: "text"})

	router := httpapi.NewRouter(verifier, "e2e", st, logger)
	router.AuthService = &service.AuthService{Store: st, Tokens: tokens, PasswordCost: bcrypt.MinCost}
	router.TokenService = tokens
	router.TwoFactorService = &service.TwoFactorService{Store: st, Issuer: "sentinel-e2e"}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL
}

func post(t *testing.T, url string, body any, bearer string) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, raw
}

func unmarshal[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// TestFullAuthenticationFlow walks the entire account lifecycle over real
// HTTP: register, password-only login, 2FA activation, challenged login,
// refresh rotation, 2FA disable and the return to password-only login.
func TestFullAuthenticationFlow(t *testing.T) {
	base := startServer(t)
	email := "alice@example.com"
	password := "correct horse battery"

	// Register.
	resp, raw := post(t, base+"/v1/auth/register", map[string]string{
		"email": email, "password": password,
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	account := unmarshal[httpapi.RegisterResponse](t, raw)
	require.NotEmpty(t, account.ID)

	// Password-only login succeeds while 2FA is off.
	resp, raw = post(t, base+"/v1/auth/login", map[string]string{
		"email": email, "password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	first := unmarshal[httpapi.TokenResponse](t, raw)
	require.Equal(t, account.ID, first.UserID)
	require.NotEmpty(t, first.AccessToken)

	// Enable 2FA.
	resp, raw = post(t, base+"/v1/2fa/activate", nil, first.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	enrollment := unmarshal[httpapi.TwoFactorActivateResponse](t, raw)
	require.NotEmpty(t, enrollment.SecretKey)
	require.NotEmpty(t, enrollment.QRCodeBase64)

	// Login now stops at the challenge step.
	resp, raw = post(t, base+"/v1/auth/login", map[string]string{
		"email": email, "password": password,
	}, "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(raw))
	challenge := unmarshal[httpapi.TwoFactorRequiredResponse](t, raw)
	require.Equal(t, "2FA_REQUIRED", challenge.Status)
	require.Equal(t, account.ID, challenge.UserID)

	// A wrong code is refused without consuming the challenge.
	resp, raw = post(t, base+"/v1/2fa/verify", map[string]string{
		"user_id":         challenge.UserID,
		"challenge_token": challenge.ChallengeToken,
		"totp_code":       "000000",
	}, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, string(raw))

	// The current code completes the login.
	code, err := totpx.CurrentCode(enrollment.SecretKey, time.Now())
	require.NoError(t, err)
	resp, raw = post(t, base+"/v1/2fa/verify", map[string]string{
		"user_id":         challenge.UserID,
		"challenge_token": challenge.ChallengeToken,
		"totp_code":       code,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	second := unmarshal[httpapi.TokenResponse](t, raw)

	// Refresh rotates the token pair.
	resp, raw = post(t, base+"/v1/auth/refresh", map[string]string{
		"refresh_token": second.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	rotated := unmarshal[httpapi.TokenResponse](t, raw)
	require.NotEqual(t, second.RefreshToken, rotated.RefreshToken)

	resp, raw = post(t, base+"/v1/auth/refresh", map[string]string{
		"refresh_token": second.RefreshToken,
	}, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, string(raw))

	// Disable 2FA; this also revokes the rotated session.
	resp, raw = post(t, base+"/v1/2fa/disable", nil, rotated.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = post(t, base+"/v1/auth/refresh", map[string]string{
		"refresh_token": rotated.RefreshToken,
	}, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, string(raw))

	// Password alone logs in again.
	resp, raw = post(t, base+"/v1/auth/login", map[string]string{
		"email": email, "password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	final := unmarshal[httpapi.TokenResponse](t, raw)

	// Logout is idempotent.
	resp, _ = post(t, base+"/v1/auth/logout", map[string]string{
		"refresh_token": final.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = post(t, base+"/v1/auth/logout", map[string]string{
		"refresh_token": final.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthOverHTTP(t *testing.T) {
	base := startServer(t)

	for _, path := range []string{"/livez", "/readyz"} {
		resp, err := http.Get(base + path)
		require.NoError(t, err)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusOK, resp.StatusCode, fmt.Sprintf("%s: %s", path, raw))
	}
}
