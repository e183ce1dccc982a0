package sqlite

import (
	"context"
	"database/sql"

	"github.com/sentinelauth/sentinel/internal/auth/domain"
)

type accountsRepo struct {
	q querier
}

const accountColumns = `id, email, password_hash, totp_secret, totp_enabled_at, created_at, updated_at`

func scanAccount(row *sql.Row) (domain.Account, error) {
	var (
		a       domain.Account
		secret  sql.NullString
		enabled sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &secret, &enabled, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	a.TOTPSecret = mapNullStringPtr(secret)
	a.TOTPEnabled = mapNullTimePtr(enabled)
	return a, nil
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)
	return scanAccount(row)
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, totp_secret, totp_enabled_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		a.ID, a.Email, a.PasswordHash, mapOptionalString(a.TOTPSecret), mapOptionalTime(a.TOTPEnabled))
	return mapConstraint(err)
}

func (r *accountsRepo) UpdatePasswordHash(ctx context.Context, accountID string, newHash string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newHash, accountID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *accountsRepo) EnableTOTP(ctx context.Context, accountID string, secret string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts
		 SET totp_secret = ?, totp_enabled_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		secret, accountID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *accountsRepo) DisableTOTP(ctx context.Context, accountID string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts
		 SET totp_secret = NULL, totp_enabled_at = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		accountID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *accountsRepo) DeleteAccount(ctx context.Context, accountID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, accountID)
	return err
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}
