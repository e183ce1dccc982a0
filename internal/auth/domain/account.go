package domain

import "time"

// Account is a registered principal. TOTP fields are nil until two-factor
// authentication is enabled; both are cleared together on disable.
type Account struct {
	ID           string
	Email        string // unique, stored lower-cased
	PasswordHash string // bcrypt encoded
	TOTPSecret   *string
	TOTPEnabled  *time.Time // when 2FA was activated (nullable)
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TwoFactorEnabled reports whether the account requires a TOTP code to
// complete authentication.
func (a Account) TwoFactorEnabled() bool {
	return a.TOTPEnabled != nil && a.TOTPSecret != nil && *a.TOTPSecret != ""
}
