package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sentinelauth/sentinel/internal/auth/service"
	"github.com/sentinelauth/sentinel/pkg/httpx"
	"github.com/sentinelauth/sentinel/pkg/slogx"
)

// AuthHandler handles registration, login and session endpoints.
type AuthHandler struct {
	AuthService  *service.AuthService
	TokenService *service.TokenService
}

// HandleRegister handles POST /v1/auth/register
//
//	@Summary		Register a new account
//	@Description	Creates an account from an email/password pair. The email is case-insensitive.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RegisterRequest		true	"Email and password"
//	@Success		201		{object}	RegisterResponse	"Created account"
//	@Failure		400		{object}	MessageResponse		"Invalid email or weak password"
//	@Failure		409		{object}	MessageResponse		"Email already registered"
//	@Router			/v1/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	account, err := h.AuthService.Register(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			httpx.WriteError(w, http.StatusConflict, "email already in use")
		case errors.Is(err, service.ErrInvalidEmail):
			httpx.WriteError(w, http.StatusBadRequest, "invalid email address")
		case errors.Is(err, service.ErrWeakPassword):
			httpx.WriteError(w, http.StatusBadRequest, "password must be at least 8 characters")
		default:
			log.Error("register failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, RegisterResponse{
		ID:      account.ID,
		Email:   account.Email,
		Message: "account created",
	})
}

// HandleLogin handles POST /v1/auth/login
//
//	@Summary		Authenticate with email and password
//	@Description	Returns a token pair on success. When the account has 2FA enabled,
//	@Description	returns 202 with a challenge token instead; complete the login via
//	@Description	POST /v1/2fa/verify.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LoginRequest				true	"Credentials"
//	@Success		200		{object}	TokenResponse				"Access and refresh tokens"
//	@Success		202		{object}	TwoFactorRequiredResponse	"TOTP code required"
//	@Failure		401		{object}	MessageResponse				"Invalid credentials"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	pair, err := h.AuthService.Login(ctx, req.Email, req.Password)
	if err != nil {
		var challenge *service.TwoFactorRequiredError
		switch {
		case errors.As(err, &challenge):
			httpx.WriteJSON(w, http.StatusAccepted, TwoFactorRequiredResponse{
				Status:         "2FA_REQUIRED",
				UserID:         challenge.AccountID,
				ChallengeToken: challenge.ChallengeToken,
				Message:        "two-factor code required to complete login",
			})
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid email or password")
		default:
			log.Error("login failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeTokenPair(w, pair)
}

// HandleRefresh handles POST /v1/auth/refresh
//
//	@Summary		Rotate a refresh token
//	@Description	Exchanges a valid refresh token for a new token pair. The old
//	@Description	refresh token is revoked.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	TokenResponse	"New access and refresh tokens"
//	@Failure		401		{object}	MessageResponse	"Expired, revoked or unknown token"
//	@Router			/v1/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := h.TokenService.ExchangeRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		log.Error("refresh failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeTokenPair(w, pair)
}

// HandleLogout handles POST /v1/auth/logout
//
//	@Summary		Revoke a refresh token
//	@Description	Revokes the supplied refresh token. Idempotent; unknown tokens
//	@Description	are treated as already revoked.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LogoutRequest	true	"Refresh token"
//	@Success		200		{object}	MessageResponse	"Logged out"
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	if err := h.TokenService.RevokeRefreshToken(ctx, req.RefreshToken); err != nil {
		log.Error("logout failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}
