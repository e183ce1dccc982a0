package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(t *testing.T, h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitEnforcesBurst(t *testing.T) {
	t.Parallel()

	cfg := RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	h := Chain(okHandler(), RateLimitByIP(cfg))

	require.Equal(t, http.StatusOK, doRequest(t, h, "10.0.0.1:1234").Code)
	require.Equal(t, http.StatusOK, doRequest(t, h, "10.0.0.1:1234").Code)

	rec := doRequest(t, h, "10.0.0.1:1234")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimitKeysAreIndependent(t *testing.T) {
	t.Parallel()

	cfg := RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
	h := Chain(okHandler(), RateLimitByIP(cfg))

	require.Equal(t, http.StatusOK, doRequest(t, h, "10.0.0.1:1234").Code)
	require.Equal(t, http.StatusTooManyRequests, doRequest(t, h, "10.0.0.1:9999").Code,
		"same IP shares a bucket regardless of port")
	require.Equal(t, http.StatusOK, doRequest(t, h, "10.0.0.2:1234").Code,
		"a different IP gets its own bucket")
}

func TestIPKeyExtractorPrefersForwardedFor(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	require.Equal(t, "10.0.0.1", IPKeyExtractor(req))

	req.Header.Set("X-Real-IP", "203.0.113.7")
	require.Equal(t, "203.0.113.7", IPKeyExtractor(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.4, 203.0.113.7")
	require.Equal(t, "198.51.100.4", IPKeyExtractor(req))
}
