package sqlite

import (
	"context"

	"github.com/sentinelauth/sentinel/internal/auth/domain"
)

type refreshTokensRepo struct {
	q querier
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, account_id, token_hash, session_id, expires_at, revoked, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		t.ID, t.AccountID, t.TokenHash, t.SessionID, t.ExpiresAt.UTC())
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, account_id, token_hash, session_id, expires_at, revoked, created_at, updated_at
		 FROM refresh_tokens WHERE token_hash = ?`, hash)

	var t domain.RefreshToken
	err := row.Scan(&t.ID, &t.AccountID, &t.TokenHash, &t.SessionID,
		&t.ExpiresAt, &t.Revoked, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = CURRENT_TIMESTAMP WHERE token_hash = ?`,
		hash)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *refreshTokensRepo) RevokeAllAccountRefreshTokens(ctx context.Context, accountID string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = CURRENT_TIMESTAMP
		 WHERE account_id = ? AND revoked = 0`,
		accountID)
	return err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < CURRENT_TIMESTAMP`)
	return err
}
