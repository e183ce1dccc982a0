package http

// Request and response bodies for the v1 API. Field names are part of the
// wire contract; keep changes additive.

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned whenever a session is issued or refreshed.
type TokenResponse struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
	Message      string `json:"message"`
}

// TwoFactorRequiredResponse is the 202 body when the password step passed
// but a TOTP code is still owed.
type TwoFactorRequiredResponse struct {
	Status         string `json:"status"` // always "2FA_REQUIRED"
	UserID         string `json:"user_id"`
	ChallengeToken string `json:"challenge_token"`
	Message        string `json:"message"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TwoFactorLifecycleRequest is the optional body for activate/disable. When
// user_id is present it must match the bearer token's subject.
type TwoFactorLifecycleRequest struct {
	UserID string `json:"user_id"`
}

type TwoFactorVerifyRequest struct {
	UserID         string `json:"user_id"`
	ChallengeToken string `json:"challenge_token"`
	TOTPCode       string `json:"totp_code"`
}

// TwoFactorActivateResponse carries the one-time enrollment material. The
// secret is never retrievable again after this response.
type TwoFactorActivateResponse struct {
	SecretKey    string `json:"secret_key"`
	QRCodeBase64 string `json:"qr_code_base64"`
	OTPAuthURI   string `json:"otpauth_uri"`
	Message      string `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
}
