package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sentinelauth/sentinel/internal/auth/domain"
	"github.com/sentinelauth/sentinel/internal/auth/store"
	"github.com/sentinelauth/sentinel/pkg/slogx"
	"github.com/sentinelauth/sentinel/pkg/totpx"
)

var ErrAccountNotFound = errors.New("account_not_found")

// TwoFactorService owns the TOTP enrollment lifecycle: activating with a
// fresh secret and disabling.
type TwoFactorService struct {
	Store  store.Store
	Issuer string // issuer label shown in authenticator apps
}

// Activate generates a fresh TOTP secret for the account, enables 2FA and
// returns the one-time enrollment payload (secret, otpauth URI, QR code).
// Re-activating replaces the previous secret; codes minted from the old one
// stop validating immediately.
func (s *TwoFactorService) Activate(ctx context.Context, accountID string) (domain.TwoFactorEnrollment, error) {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TwoFactorEnrollment{}, ErrAccountNotFound
		}
		return domain.TwoFactorEnrollment{}, err
	}

	secret, err := totpx.GenerateSecret()
	if err != nil {
		return domain.TwoFactorEnrollment{}, fmt.Errorf("generate totp secret: %w", err)
	}

	payload, err := totpx.EnrollmentPayload(s.Issuer, account.Email, secret)
	if err != nil {
		return domain.TwoFactorEnrollment{}, fmt.Errorf("build enrollment payload: %w", err)
	}

	if err := s.Store.Accounts().EnableTOTP(ctx, accountID, secret); err != nil {
		return domain.TwoFactorEnrollment{}, err
	}

	slogx.FromContext(ctx).Info("two-factor enabled", "account_id", accountID)
	return domain.TwoFactorEnrollment{
		Secret:       payload.Secret,
		URI:          payload.URI,
		QRCodeBase64: payload.QRCodeBase64,
	}, nil
}

// Disable clears the TOTP secret and enabled timestamp together and revokes
// every outstanding refresh token for the account, since those sessions were
// minted under a stronger authentication policy.
func (s *TwoFactorService) Disable(ctx context.Context, accountID string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().DisableTOTP(ctx, accountID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if err := tx.RefreshTokens().RevokeAllAccountRefreshTokens(ctx, accountID); err != nil {
			return err
		}
		slogx.FromContext(ctx).Info("two-factor disabled", "account_id", accountID)
		return nil
	})
}
