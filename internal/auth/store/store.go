package store

import (
	"context"
	"errors"

	"github.com/sentinelauth/sentinel/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and to actively stop callers from accidentally nesting
// transactions.
type Store interface {
	Accounts() Accounts
	RefreshTokens() RefreshTokens
	TwoFactorChallenges() TwoFactorChallenges

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., refresh rotation).
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// This is the recommended way to handle transactions as it automatically
	// handles commit/rollback logic.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// GetAccountByID returns an account by id.
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByEmail is used during the password step of login. The email
	// must already be normalised (lower-cased, trimmed) by the caller.
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	// CreateAccount inserts a new account (id is provided by app via ULID).
	// Returns ErrAlreadyExists if the email is taken.
	CreateAccount(ctx context.Context, a domain.Account) error

	// UpdatePasswordHash sets the password_hash (bcrypt) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, accountID string, newHash string) error

	// EnableTOTP stores the shared secret and marks 2FA enabled in one write.
	EnableTOTP(ctx context.Context, accountID string, secret string) error

	// DisableTOTP clears both the secret and the enabled timestamp together.
	DisableTOTP(ctx context.Context, accountID string) error

	// DeleteAccount cascades to refresh_tokens and challenges (per schema).
	DeleteAccount(ctx context.Context, accountID string) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken flips revoked=1, sets updated_at.
	RevokeRefreshToken(ctx context.Context, hash string) error

	// RevokeAllAccountRefreshTokens bulk revocation for an account (e.g.,
	// password change or 2FA disable).
	RevokeAllAccountRefreshTokens(ctx context.Context, accountID string) error

	// DeleteExpiredRefreshTokens is housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context) error
}

type TwoFactorChallenges interface {
	// CreateChallenge writes a new pending challenge for a password-verified login.
	CreateChallenge(ctx context.Context, c domain.TwoFactorChallenge) error

	// GetChallenge retrieves a challenge by its token (only if not expired).
	GetChallenge(ctx context.Context, token string) (domain.TwoFactorChallenge, error)

	// IncrementChallengeAttempts bumps the failed attempt counter and returns
	// the updated challenge.
	IncrementChallengeAttempts(ctx context.Context, token string) (domain.TwoFactorChallenge, error)

	// DeleteChallenge removes a challenge by its token (consumed or exhausted).
	DeleteChallenge(ctx context.Context, token string) error

	// DeleteExpiredChallenges removes all expired challenges (housekeeping).
	DeleteExpiredChallenges(ctx context.Context) error
}
