package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sentinelauth/sentinel/internal/auth/service"
	"github.com/sentinelauth/sentinel/internal/auth/store"
	"github.com/sentinelauth/sentinel/pkg/httpx"
	"github.com/sentinelauth/sentinel/pkg/jwtx"
	"github.com/sentinelauth/sentinel/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     *jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store            store.Store
	AuthService      *service.AuthService
	TokenService     *service.TokenService
	TwoFactorService *service.TwoFactorService
}

func NewRouter(
	verifier *jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerTwoFactor()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		AuthService:  r.AuthService,
		TokenService: r.TokenService,
	}

	// POST /register - strict rate limit by IP (public signup endpoint)
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /login - strict rate limit by IP (credential submission)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /refresh - moderate rate limit; the token itself is the credential
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /logout - moderate rate limit
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{
		AuthService:      r.AuthService,
		TwoFactorService: r.TwoFactorService,
	}

	// POST /2fa/verify - strict rate limit by IP (prevents brute force of
	// TOTP codes alongside the per-challenge attempt cap)
	r.Mux.Handle("POST /v1/2fa/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /2fa/activate - moderate rate limit by account
	r.Mux.Handle("POST /v1/2fa/activate",
		httpx.Chain(http.HandlerFunc(h.HandleActivate),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByAccount(httpx.ModerateLimit),
		),
	)

	// POST /2fa/disable - moderate rate limit by account
	r.Mux.Handle("POST /v1/2fa/disable",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByAccount(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
