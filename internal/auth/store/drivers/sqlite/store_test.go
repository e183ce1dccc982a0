package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/sentinelauth/sentinel/internal/auth/domain"
	"github.com/sentinelauth/sentinel/internal/auth/store"
	"github.com/sentinelauth/sentinel/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func seedAccount(t *testing.T, st *Store, email string) domain.Account {
	t.Helper()

	a := domain.Account{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: "$2a$10$fakefakefakefakefakefakefakefakefakefakefakefakefakef",
	}
	require.NoError(t, st.Accounts().CreateAccount(context.Background(), a))
	return a
}

func TestAccountsRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created := seedAccount(t, st, "alice@example.com")

	byID, err := st.Accounts().GetAccountByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Email, byID.Email)
	require.Nil(t, byID.TOTPSecret)
	require.Nil(t, byID.TOTPEnabled)
	require.False(t, byID.CreatedAt.IsZero())

	byEmail, err := st.Accounts().GetAccountByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, created.ID, byEmail.ID)

	_, err = st.Accounts().GetAccountByID(ctx, idx.New().String())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAccountsUniqueEmail(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedAccount(t, st, "alice@example.com")

	dup := domain.Account{
		ID:           idx.New().String(),
		Email:        "alice@example.com",
		PasswordHash: "hash",
	}
	err := st.Accounts().CreateAccount(ctx, dup)
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestAccountsTOTPLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, st, "alice@example.com")

	require.NoError(t, st.Accounts().EnableTOTP(ctx, a.ID, "JBSWY3DPEHPK3PXP"))

	enabled, err := st.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, enabled.TwoFactorEnabled())
	require.Equal(t, "JBSWY3DPEHPK3PXP", *enabled.TOTPSecret)
	require.NotNil(t, enabled.TOTPEnabled)

	require.NoError(t, st.Accounts().DisableTOTP(ctx, a.ID))

	disabled, err := st.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.Nil(t, disabled.TOTPSecret)
	require.Nil(t, disabled.TOTPEnabled)

	// Unknown accounts surface ErrNotFound rather than silently updating
	// zero rows.
	require.ErrorIs(t, st.Accounts().EnableTOTP(ctx, idx.New().String(), "x"), store.ErrNotFound)
	require.ErrorIs(t, st.Accounts().DisableTOTP(ctx, idx.New().String()), store.ErrNotFound)
}

func TestAccountsUpdatePasswordHash(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, st, "alice@example.com")

	require.NoError(t, st.Accounts().UpdatePasswordHash(ctx, a.ID, "newhash"))

	updated, err := st.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "newhash", updated.PasswordHash)

	require.ErrorIs(t, st.Accounts().UpdatePasswordHash(ctx, idx.New().String(), "x"), store.ErrNotFound)
}

func TestRefreshTokensLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, st, "alice@example.com")

	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		AccountID: a.ID,
		TokenHash: "fingerprint-1",
		SessionID: idx.New().String(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, rt))

	got, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, "fingerprint-1")
	require.NoError(t, err)
	require.Equal(t, rt.ID, got.ID)
	require.False(t, got.Revoked)

	require.NoError(t, st.RefreshTokens().RevokeRefreshToken(ctx, "fingerprint-1"))
	got, err = st.RefreshTokens().GetRefreshTokenByHash(ctx, "fingerprint-1")
	require.NoError(t, err)
	require.True(t, got.Revoked)

	require.ErrorIs(t, st.RefreshTokens().RevokeRefreshToken(ctx, "unknown"), store.ErrNotFound)

	// Duplicate fingerprints violate the unique index.
	dup := rt
	dup.ID = idx.New().String()
	require.ErrorIs(t, st.RefreshTokens().CreateRefreshToken(ctx, dup), store.ErrAlreadyExists)
}

func TestRevokeAllAccountRefreshTokens(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, st, "alice@example.com")
	b := seedAccount(t, st, "bob@example.com")

	for i, owner := range []string{a.ID, a.ID, b.ID} {
		require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID:        idx.New().String(),
			AccountID: owner,
			TokenHash: "fp-" + string(rune('a'+i)),
			SessionID: idx.New().String(),
			ExpiresAt: time.Now().Add(time.Hour),
		}))
	}

	require.NoError(t, st.RefreshTokens().RevokeAllAccountRefreshTokens(ctx, a.ID))

	for _, hash := range []string{"fp-a", "fp-b"} {
		got, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
		require.NoError(t, err)
		require.True(t, got.Revoked)
	}

	// The other account is untouched.
	got, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, "fp-c")
	require.NoError(t, err)
	require.False(t, got.Revoked)
}

func TestDeleteExpiredRefreshTokens(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, st, "alice@example.com")

	expired := domain.RefreshToken{
		ID:        idx.New().String(),
		AccountID: a.ID,
		TokenHash: "expired-fp",
		SessionID: idx.New().String(),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	live := domain.RefreshToken{
		ID:        idx.New().String(),
		AccountID: a.ID,
		TokenHash: "live-fp",
		SessionID: idx.New().String(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, expired))
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, live))

	require.NoError(t, st.RefreshTokens().DeleteExpiredRefreshTokens(ctx))

	_, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, "expired-fp")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.RefreshTokens().GetRefreshTokenByHash(ctx, "live-fp")
	require.NoError(t, err)
}

func TestTwoFactorChallengesLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, st, "alice@example.com")

	c := domain.TwoFactorChallenge{
		Token:     "challenge-token",
		AccountID: a.ID,
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	require.NoError(t, st.TwoFactorChallenges().CreateChallenge(ctx, c))

	got, err := st.TwoFactorChallenges().GetChallenge(ctx, "challenge-token")
	require.NoError(t, err)
	require.Equal(t, a.ID, got.AccountID)
	require.Zero(t, got.Attempts)

	bumped, err := st.TwoFactorChallenges().IncrementChallengeAttempts(ctx, "challenge-token")
	require.NoError(t, err)
	require.Equal(t, 1, bumped.Attempts)
	bumped, err = st.TwoFactorChallenges().IncrementChallengeAttempts(ctx, "challenge-token")
	require.NoError(t, err)
	require.Equal(t, 2, bumped.Attempts)

	require.NoError(t, st.TwoFactorChallenges().DeleteChallenge(ctx, "challenge-token"))
	_, err = st.TwoFactorChallenges().GetChallenge(ctx, "challenge-token")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestExpiredChallengeIsInvisible(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, st, "alice@example.com")

	require.NoError(t, st.TwoFactorChallenges().CreateChallenge(ctx, domain.TwoFactorChallenge{
		Token:     "stale",
		AccountID: a.ID,
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	_, err := st.TwoFactorChallenges().GetChallenge(ctx, "stale")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.TwoFactorChallenges().DeleteExpiredChallenges(ctx))
}

func TestCascadeDeleteAccount(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, st, "alice@example.com")

	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
		ID:        idx.New().String(),
		AccountID: a.ID,
		TokenHash: "fp",
		SessionID: idx.New().String(),
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, st.TwoFactorChallenges().CreateChallenge(ctx, domain.TwoFactorChallenge{
		Token:     "tok",
		AccountID: a.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	require.NoError(t, st.Accounts().DeleteAccount(ctx, a.ID))

	_, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, "fp")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.TwoFactorChallenges().GetChallenge(ctx, "tok")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, st, "alice@example.com")

	err := st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().EnableTOTP(ctx, a.ID, "SECRET"); err != nil {
			return err
		}
		return context.Canceled // force rollback
	})
	require.ErrorIs(t, err, context.Canceled)

	got, err := st.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, got.TwoFactorEnabled())
}

func TestWithTxCommits(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, st, "alice@example.com")

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		return tx.Accounts().EnableTOTP(ctx, a.ID, "SECRET")
	}))

	got, err := st.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, got.TwoFactorEnabled())
}
