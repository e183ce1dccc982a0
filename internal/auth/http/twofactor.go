package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sentinelauth/sentinel/internal/auth/domain"
	"github.com/sentinelauth/sentinel/internal/auth/service"
	"github.com/sentinelauth/sentinel/pkg/httpx"
	"github.com/sentinelauth/sentinel/pkg/slogx"
)

// TwoFactorHandler handles the TOTP challenge and lifecycle endpoints.
type TwoFactorHandler struct {
	AuthService      *service.AuthService
	TwoFactorService *service.TwoFactorService
}

// HandleVerify handles POST /v1/2fa/verify
//
//	@Summary		Complete a two-factor login
//	@Description	Submits the TOTP code for a pending login challenge. The challenge
//	@Description	is single-use and allows at most five failed attempts.
//	@Tags			TwoFactor
//	@Accept			json
//	@Produce		json
//	@Param			request	body		TwoFactorVerifyRequest	true	"Challenge token and TOTP code"
//	@Success		200		{object}	TokenResponse			"Access and refresh tokens"
//	@Failure		401		{object}	MessageResponse			"Invalid code or challenge"
//	@Failure		429		{object}	MessageResponse			"Attempt cap exhausted"
//	@Router			/v1/2fa/verify [post].
func (h *TwoFactorHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req TwoFactorVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ChallengeToken == "" || req.TOTPCode == "" {
		httpx.WriteError(w, http.StatusBadRequest, "challenge_token and totp_code are required")
		return
	}

	pair, err := h.AuthService.VerifyTwoFactor(ctx, req.UserID, req.ChallengeToken, req.TOTPCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTooManyAttempts):
			httpx.WriteError(w, http.StatusTooManyRequests, "too many failed attempts, log in again")
		case errors.Is(err, service.ErrInvalidChallenge), errors.Is(err, service.ErrInvalidTOTPCode):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid code or challenge")
		default:
			log.Error("two-factor verify failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeTokenPair(w, pair)
}

// HandleActivate handles POST /v1/2fa/activate
//
//	@Summary		Enable TOTP two-factor authentication
//	@Description	Generates a fresh secret, enables 2FA immediately and returns the
//	@Description	one-time enrollment payload. Re-activating replaces the secret.
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		TwoFactorLifecycleRequest	false	"Optional account id, must match the token subject"
//	@Success		200		{object}	TwoFactorActivateResponse	"Secret, QR code and provisioning URI"
//	@Failure		401		{object}	MessageResponse				"Invalid or missing access token"
//	@Router			/v1/2fa/activate [post].
func (h *TwoFactorHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	accountID, ok := lifecycleAccountID(w, r)
	if !ok {
		return
	}

	enrollment, err := h.TwoFactorService.Activate(ctx, accountID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "account not found")
			return
		}
		log.Error("two-factor activation failed", "account_id", accountID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, TwoFactorActivateResponse{
		SecretKey:    enrollment.Secret,
		QRCodeBase64: enrollment.QRCodeBase64,
		OTPAuthURI:   enrollment.URI,
		Message:      "scan the QR code with your authenticator app; the secret is shown only once",
	})
}

// HandleDisable handles POST /v1/2fa/disable
//
//	@Summary		Disable two-factor authentication
//	@Description	Clears the TOTP secret and revokes all refresh tokens for the account.
//	@Tags			TwoFactor
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		TwoFactorLifecycleRequest	false	"Optional account id, must match the token subject"
//	@Success		200		{object}	MessageResponse				"2FA disabled"
//	@Failure		401		{object}	MessageResponse				"Invalid or missing access token"
//	@Failure		404		{object}	MessageResponse				"Account not found"
//	@Router			/v1/2fa/disable [post].
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	accountID, ok := lifecycleAccountID(w, r)
	if !ok {
		return
	}

	if err := h.TwoFactorService.Disable(ctx, accountID); err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "account not found")
			return
		}
		log.Error("two-factor disable failed", "account_id", accountID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, MessageResponse{Message: "two-factor authentication disabled"})
}

// lifecycleAccountID resolves the account for activate/disable: the bearer
// token's subject, cross-checked against the optional user_id in the body.
// A mismatch reads as a request for somebody else's account, which does not
// exist as far as this caller is concerned.
func lifecycleAccountID(w http.ResponseWriter, r *http.Request) (string, bool) {
	accountID := httpx.AccountIDFromContext(r.Context())
	if accountID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid or missing access token")
		return "", false
	}

	var req TwoFactorLifecycleRequest
	// The body is optional; decode errors on an empty body are expected.
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.UserID != "" && req.UserID != accountID {
		httpx.WriteError(w, http.StatusNotFound, "account not found")
		return "", false
	}

	return accountID, true
}

func writeTokenPair(w http.ResponseWriter, pair *domain.TokenPair) {
	httpx.WriteJSON(w, http.StatusOK, TokenResponse{
		UserID:       pair.AccountID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(pair.ExpiresIn.Seconds()),
		Message:      "authentication successful",
	})
}
