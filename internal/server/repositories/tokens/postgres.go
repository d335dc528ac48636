package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the token. A clash on the unique token column is reported
// as common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, t *models.CredentialToken) error {
	query := `
		INSERT INTO credential_tokens (account_id, token, kind, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query, t.AccountID, t.Token, string(t.Kind), t.CreatedAt, t.ExpiresAt).Scan(&t.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindForUpdate locks and returns the token row.
func (r *PostgresRepository) FindForUpdate(ctx context.Context, token string) (*models.CredentialToken, error) {
	query := `
		SELECT id, account_id, token, kind, created_at, expires_at, is_used, used_at, ip_address
		FROM credential_tokens
		WHERE token = $1
		FOR UPDATE
	`
	var (
		t      models.CredentialToken
		kind   string
		usedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&t.ID, &t.AccountID, &t.Token, &kind, &t.CreatedAt, &t.ExpiresAt, &t.IsUsed, &usedAt, &t.IPAddress)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.Kind = models.TokenKind(kind)
	t.UsedAt = dbx.NullTime(usedAt)
	return &t, nil
}

// MarkUsed guards on is_used so that only one of several concurrent
// consumers can flip the flag.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id int64, usedAt time.Time, ipAddress string) error {
	query := `
		UPDATE credential_tokens
		SET is_used = TRUE, used_at = $2, ip_address = $3
		WHERE id = $1 AND is_used = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, id, usedAt, ipAddress)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return common.ErrTokenAlreadyUsed
	}
	return nil
}

// CountExpiredUnused is used by the maintenance sweep for reporting.
func (r *PostgresRepository) CountExpiredUnused(ctx context.Context, now time.Time) (int64, error) {
	query := `
		SELECT COUNT(*) FROM credential_tokens
		WHERE is_used = FALSE AND expires_at <= $1
	`
	var n int64
	if err := r.db.QueryRowContext(ctx, query, now).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
