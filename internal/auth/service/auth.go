package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sentinelauth/sentinel/internal/auth/domain"
	"github.com/sentinelauth/sentinel/internal/auth/store"
	"github.com/sentinelauth/sentinel/pkg/cryptox"
	"github.com/sentinelauth/sentinel/pkg/idx"
	"github.com/sentinelauth/sentinel/pkg/jwtx"
	"github.com/sentinelauth/sentinel/pkg/slogx"
	"github.com/sentinelauth/sentinel/pkg/totpx"
)

const (
	// MaxChallengeAttempts is the maximum number of failed TOTP submissions
	// allowed per login challenge before it is discarded.
	MaxChallengeAttempts = 5

	// DefaultChallengeTTL bounds how long a password-verified login may wait
	// for its TOTP code.
	DefaultChallengeTTL = 5 * time.Minute

	minPasswordLength = 8
)

var (
	ErrEmailTaken       = errors.New("email_taken")
	ErrWeakPassword     = errors.New("weak_password")
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrInvalidChallenge = errors.New("invalid_challenge")
	ErrInvalidTOTPCode  = errors.New("invalid_totp_code")
)

// TwoFactorRequiredError is returned by Login when the password checked out
// but the account has TOTP enabled. The caller must complete the challenge
// via VerifyTwoFactor before any tokens are issued.
type TwoFactorRequiredError struct {
	AccountID      string
	ChallengeToken string
}

func (e *TwoFactorRequiredError) Error() string { return "two_factor_required" }

// AuthService drives registration and the login state machine: password
// first, then an optional TOTP challenge, then token issuance.
type AuthService struct {
	Store        store.Store
	Tokens       *TokenService
	ChallengeTTL time.Duration

	// PasswordCost is the bcrypt cost factor for new credentials. Zero (or
	// any out-of-range value) falls back to cryptox.DefaultPasswordCost.
	PasswordCost int
}

// Register creates a new account from an email/password pair. The email is
// normalised before the uniqueness check so "Alice@Example.com" and
// "alice@example.com" collide.
func (s *AuthService) Register(ctx context.Context, email, password string) (domain.Account, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return domain.Account{}, err
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return domain.Account{}, ErrWeakPassword
	}

	hash, err := cryptox.HashPassword(password, s.PasswordCost)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	account := domain.Account{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.Store.Accounts().CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Account{}, ErrEmailTaken
		}
		return domain.Account{}, err
	}

	slogx.FromContext(ctx).Info("account registered", "account_id", account.ID)
	return account, nil
}

// Login performs the password step. Three outcomes:
//
//   - (*domain.TokenPair, nil) when the password is correct and 2FA is off.
//   - (nil, *TwoFactorRequiredError) when the password is correct but the
//     account still owes a TOTP code; a challenge has been persisted.
//   - (nil, ErrInvalidCredentials) otherwise. Unknown emails burn the same
//     bcrypt work as wrong passwords so the two are indistinguishable by
//     timing, and both map to the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	email, err := NormalizeEmail(email)
	if err != nil {
		// Still not revealing whether the account exists.
		cryptox.DummyVerifyPassword(password)
		return nil, ErrInvalidCredentials
	}

	account, err := s.Store.Accounts().GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			cryptox.DummyVerifyPassword(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := cryptox.VerifyPassword(password, account.PasswordHash); err != nil {
		l.Info("password verification failed", "account_id", account.ID)
		return nil, ErrInvalidCredentials
	}

	if account.TwoFactorEnabled() {
		challenge, err := s.createChallenge(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		l.Info("login pending two-factor", "account_id", account.ID)
		return nil, &TwoFactorRequiredError{
			AccountID:      account.ID,
			ChallengeToken: challenge.Token,
		}
	}

	l.Info("login succeeded", "account_id", account.ID)
	return s.Tokens.IssueSession(ctx, account, []string{jwtx.AMRPassword})
}

// VerifyTwoFactor completes a pending login challenge. The challenge is
// single-use: consumed on success, deleted once the attempt cap is hit.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, accountID, challengeToken, code string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	challenge, err := s.Store.TwoFactorChallenges().GetChallenge(ctx, challengeToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidChallenge
		}
		return nil, err
	}

	// The challenge belongs to exactly one login; a mismatched account id
	// means the token was replayed against someone else.
	if accountID != "" && challenge.AccountID != accountID {
		return nil, ErrInvalidChallenge
	}

	if challenge.Attempts >= MaxChallengeAttempts {
		_ = s.Store.TwoFactorChallenges().DeleteChallenge(ctx, challengeToken)
		l.Warn("challenge exceeded max attempts", "account_id", challenge.AccountID, "attempts", challenge.Attempts)
		return nil, ErrTooManyAttempts
	}

	account, err := s.Store.Accounts().GetAccountByID(ctx, challenge.AccountID)
	if err != nil {
		return nil, err
	}
	if !account.TwoFactorEnabled() {
		// 2FA was disabled between login and verify; the challenge is stale.
		_ = s.Store.TwoFactorChallenges().DeleteChallenge(ctx, challengeToken)
		return nil, ErrInvalidChallenge
	}

	if !totpx.ValidateCode(*account.TOTPSecret, code, time.Now()) {
		updated, err := s.Store.TwoFactorChallenges().IncrementChallengeAttempts(ctx, challengeToken)
		if err != nil {
			return nil, ErrInvalidTOTPCode
		}
		if updated.Attempts >= MaxChallengeAttempts {
			_ = s.Store.TwoFactorChallenges().DeleteChallenge(ctx, challengeToken)
			l.Warn("challenge exhausted", "account_id", challenge.AccountID)
			return nil, ErrTooManyAttempts
		}
		l.Info("totp verification failed", "account_id", challenge.AccountID, "attempts", updated.Attempts)
		return nil, ErrInvalidTOTPCode
	}

	if err := s.Store.TwoFactorChallenges().DeleteChallenge(ctx, challengeToken); err != nil {
		return nil, err
	}

	l.Info("two-factor login succeeded", "account_id", account.ID)
	return s.Tokens.IssueSession(ctx, account, []string{jwtx.AMRPassword, jwtx.AMRTOTP})
}

func (s *AuthService) createChallenge(ctx context.Context, accountID string) (domain.TwoFactorChallenge, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.TwoFactorChallenge{}, err
	}

	ttl := s.ChallengeTTL
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}

	challenge := domain.TwoFactorChallenge{
		Token:     token,
		AccountID: accountID,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.Store.TwoFactorChallenges().CreateChallenge(ctx, challenge); err != nil {
		return domain.TwoFactorChallenge{}, err
	}
	return challenge, nil
}

// NormalizeEmail lower-cases, trims and loosely validates an email address.
// Full RFC 5322 validation buys nothing here; the address is an opaque login
// identifier, not a delivery target.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t") {
		return "", ErrInvalidEmail
	}
	return email, nil
}
