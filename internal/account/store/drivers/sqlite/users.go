package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shieldsphere/shieldsphere/internal/account/domain"
	"github.com/shieldsphere/shieldsphere/internal/account/store"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, password_hash, twofa_secret, twofa_enabled, created_at, updated_at`

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, twofa_secret, twofa_enabled)
		 VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash,
		mapOptionalString(u.TwoFactorSecret),
		mapOptionalTime(u.TwoFactorEnabled),
	)
	if err != nil && isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *usersRepo) Exists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM users WHERE email = ?`, email).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetTwoFactorSecretIfAbsent is a conditional write: the row only changes
// when no secret is installed, which serializes concurrent enable calls at
// the database instead of relying on a check-then-act in the service.
func (r *usersRepo) SetTwoFactorSecretIfAbsent(ctx context.Context, email, secret string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET twofa_secret = ?, twofa_enabled = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE email = ? AND twofa_secret IS NULL`,
		secret, email)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *usersRepo) DisableTwoFactor(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET twofa_secret = NULL, twofa_enabled = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE email = ?`, email)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u       domain.User
		secret  sql.NullString
		enabled sql.NullTime
		created time.Time
		updated time.Time
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &secret, &enabled, &created, &updated)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	u.TwoFactorSecret = mapNullStringPtr(secret)
	u.TwoFactorEnabled = mapNullTimePtr(enabled)
	u.CreatedAt = created
	u.UpdatedAt = updated
	return u, nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite reports constraint failures in the error text;
	// there is no exported error code type to match against.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
