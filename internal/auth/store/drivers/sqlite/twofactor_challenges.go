package sqlite

import (
	"context"

	"github.com/sentinelauth/sentinel/internal/auth/domain"
)

type twoFactorChallengesRepo struct {
	q querier
}

func (r *twoFactorChallengesRepo) CreateChallenge(ctx context.Context, c domain.TwoFactorChallenge) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO twofactor_challenges (token, account_id, attempts, expires_at, created_at)
		 VALUES (?, ?, 0, ?, CURRENT_TIMESTAMP)`,
		c.Token, c.AccountID, c.ExpiresAt.UTC())
	return mapConstraint(err)
}

func (r *twoFactorChallengesRepo) GetChallenge(ctx context.Context, token string) (domain.TwoFactorChallenge, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT token, account_id, attempts, expires_at, created_at
		 FROM twofactor_challenges
		 WHERE token = ? AND expires_at > CURRENT_TIMESTAMP`, token)

	var c domain.TwoFactorChallenge
	err := row.Scan(&c.Token, &c.AccountID, &c.Attempts, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return domain.TwoFactorChallenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *twoFactorChallengesRepo) IncrementChallengeAttempts(ctx context.Context, token string) (domain.TwoFactorChallenge, error) {
	row := r.q.QueryRowContext(ctx,
		`UPDATE twofactor_challenges SET attempts = attempts + 1
		 WHERE token = ?
		 RETURNING token, account_id, attempts, expires_at, created_at`, token)

	var c domain.TwoFactorChallenge
	err := row.Scan(&c.Token, &c.AccountID, &c.Attempts, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return domain.TwoFactorChallenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *twoFactorChallengesRepo) DeleteChallenge(ctx context.Context, token string) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM twofactor_challenges WHERE token = ?`, token)
	return err
}

func (r *twoFactorChallengesRepo) DeleteExpiredChallenges(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM twofactor_challenges WHERE expires_at <= CURRENT_TIMESTAMP`)
	return err
}
