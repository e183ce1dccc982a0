package service

import (
	"context"
	"errors"
	"time"

	"github.com/sentinelauth/sentinel/internal/auth/domain"
	"github.com/sentinelauth/sentinel/internal/auth/store"
	"github.com/sentinelauth/sentinel/pkg/cryptox"
	"github.com/sentinelauth/sentinel/pkg/idx"
	"github.com/sentinelauth/sentinel/pkg/jwtx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
	ErrTooManyAttempts    = errors.New("too_many_attempts")
)

// TokenService mints access/refresh pairs and handles refresh rotation.
type TokenService struct {
	Signer     *jwtx.Signer
	Store      store.Store
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// IssueSession signs a fresh access token and persists a new refresh token
// for the account. A new session id is minted; refreshes keep it stable.
func (s *TokenService) IssueSession(ctx context.Context, account domain.Account, amr []string) (*domain.TokenPair, error) {
	now := time.Now()
	sessionID := idx.New().String()

	accessToken, err := s.signAccess(account, sessionID, amr, now)
	if err != nil {
		return nil, err
	}

	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		AccountID: account.ID,
		TokenHash: cryptox.FingerprintToken(refreshOpaque),
		SessionID: sessionID,
		ExpiresAt: now.Add(s.RefreshTTL),
		Revoked:   false,
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, rt); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccountID:    account.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshOpaque,
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// ExchangeRefreshToken validates the provided refresh token (by fingerprint
// lookup plus expiry/revocation check) and issues a new pair. The old token
// is revoked and a new one created atomically (rotation).
func (s *TokenService) ExchangeRefreshToken(ctx context.Context, refreshOpaque string) (*domain.TokenPair, error) {
	now := time.Now()

	fp := cryptox.FingerprintToken(refreshOpaque)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	// The SQL query could filter these out, but we double-check here for
	// defense in depth.
	if rt.Revoked {
		return nil, ErrInvalidRefresh
	}
	if now.After(rt.ExpiresAt) {
		return nil, ErrInvalidRefresh
	}

	account, err := s.Store.Accounts().GetAccountByID(ctx, rt.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	amr := []string{jwtx.AMRPassword, jwtx.AMRRefresh}
	if account.TwoFactorEnabled() {
		amr = []string{jwtx.AMRPassword, jwtx.AMRTOTP, jwtx.AMRRefresh}
	}

	accessToken, err := s.signAccess(account, rt.SessionID, amr, now)
	if err != nil {
		return nil, err
	}

	newRefreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	newRT := domain.RefreshToken{
		ID:        idx.New().String(),
		AccountID: account.ID,
		TokenHash: cryptox.FingerprintToken(newRefreshOpaque),
		SessionID: rt.SessionID, // preserve session id across refresh
		ExpiresAt: now.Add(s.RefreshTTL),
		Revoked:   false,
	}

	// Atomically: revoke old token and create new one
	if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, fp); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, newRT)
	}); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccountID:    account.ID,
		AccessToken:  accessToken,
		RefreshToken: newRefreshOpaque,
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// RevokeRefreshToken revokes a single refresh token (by its opaque value).
// Unknown tokens are treated as already revoked so logout stays idempotent.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, refreshOpaque string) error {
	fp := cryptox.FingerprintToken(refreshOpaque)
	err := s.Store.RefreshTokens().RevokeRefreshToken(ctx, fp)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func (s *TokenService) signAccess(
	account domain.Account,
	sessionID string,
	amr []string,
	now time.Time,
) (string, error) {
	claims := jwtx.NewAccessClaims(
		account.ID,    // subject
		sessionID,     // session id
		account.Email, // email, display only
		amr,           // authentication methods
		s.AccessTTL,   // token lifetime
		s.Issuer,      // issuer
		now,           // current time
	)
	return s.Signer.Sign(claims)
}
