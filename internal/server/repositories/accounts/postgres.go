package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

const selectColumns = `SELECT id, email, password_hash, first_name, last_name,
		 email_confirmed, email_confirmed_at, is_active, is_blocked, blocked_reason, blocked_at,
		 failed_login_attempts, locked_out_until, last_login_at, last_login_ip, created_at, updated_at
		 FROM accounts`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {

	query :=
		`INSERT INTO accounts (email, password_hash, first_name, last_name, email_confirmed, email_confirmed_at, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		a.Email, a.PasswordHash, a.FirstName, a.LastName, a.EmailConfirmed, a.EmailConfirmedAt, a.IsActive).
		Scan(&a.ID, &a.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrEmailTaken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return a, nil
}

func (r *PostgresRepository) Update(ctx context.Context, a *models.Account) error {

	query :=
		`UPDATE accounts SET
		 password_hash = $2, first_name = $3, last_name = $4,
		 email_confirmed = $5, email_confirmed_at = $6, is_active = $7,
		 is_blocked = $8, blocked_reason = $9, blocked_at = $10,
		 failed_login_attempts = $11, locked_out_until = $12,
		 last_login_at = $13, last_login_ip = $14, updated_at = NOW()
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query,
		a.ID, a.PasswordHash, a.FirstName, a.LastName,
		a.EmailConfirmed, a.EmailConfirmedAt, a.IsActive,
		a.IsBlocked, a.BlockedReason, a.BlockedAt,
		a.FailedLoginAttempts, a.LockedOutUntil,
		a.LastLoginAt, a.LastLoginIP)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	return r.get(ctx, selectColumns+` WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Account, error) {
	return r.get(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.get(ctx, selectColumns+` WHERE email = $1`, email)
}

func (r *PostgresRepository) GetByEmailForUpdate(ctx context.Context, email string) (*models.Account, error) {
	return r.get(ctx, selectColumns+` WHERE email = $1 FOR UPDATE`, email)
}

func (r *PostgresRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) get(ctx context.Context, query string, arg any) (*models.Account, error) {
	var (
		a                                                models.Account
		confirmedAt, blockedAt, lockedUntil, lastLoginAt sql.NullTime
		updatedAt                                        sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName,
		&a.EmailConfirmed, &confirmedAt, &a.IsActive, &a.IsBlocked, &a.BlockedReason, &blockedAt,
		&a.FailedLoginAttempts, &lockedUntil, &lastLoginAt, &a.LastLoginIP, &a.CreatedAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	a.EmailConfirmedAt = dbx.NullTime(confirmedAt)
	a.BlockedAt = dbx.NullTime(blockedAt)
	a.LockedOutUntil = dbx.NullTime(lockedUntil)
	a.LastLoginAt = dbx.NullTime(lastLoginAt)
	a.UpdatedAt = dbx.NullTime(updatedAt)

	return &a, nil
}
