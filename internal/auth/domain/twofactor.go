package domain

import "time"

// TwoFactorChallenge is the server-side record of a login that passed the
// password check but still owes a TOTP code. It is single-use: consumed on
// success, deleted after too many failures, swept after expiry.
type TwoFactorChallenge struct {
	Token     string // opaque challenge token handed to the client
	AccountID string
	Attempts  int // failed code submissions so far
	ExpiresAt time.Time
	CreatedAt time.Time
}

// TwoFactorEnrollment is the one-time payload returned when 2FA is
// activated. The secret is not retrievable again through any endpoint.
type TwoFactorEnrollment struct {
	Secret       string
	URI          string
	QRCodeBase64 string
}
