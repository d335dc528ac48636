package sessions

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

// Create inserts a new session row.
func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (id, account_id, ip_address, user_agent, created_at, last_activity_at, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
	`
	if _, err := r.db.ExecContext(ctx, query,
		s.ID, s.AccountID, s.IPAddress, s.UserAgent, s.CreatedAt, s.LastActivityAt, s.ExpiresAt); err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	s.IsActive = true
	return nil
}

// Get returns the session row for the given id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT id, account_id, ip_address, user_agent, created_at, last_activity_at, expires_at, is_active
		FROM sessions
		WHERE id = $1
	`
	s := &models.Session{}
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.AccountID, &s.IPAddress, &s.UserAgent, &s.CreatedAt, &s.LastActivityAt, &s.ExpiresAt, &s.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

// ListActiveForAccount returns live sessions of the account, newest
// activity first.
func (r *PostgresRepository) ListActiveForAccount(ctx context.Context, accountID int64, now time.Time) ([]models.Session, error) {
	query := `
		SELECT id, account_id, ip_address, user_agent, created_at, last_activity_at, expires_at, is_active
		FROM sessions
		WHERE account_id = $1 AND is_active AND expires_at > $2
		ORDER BY last_activity_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, accountID, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.AccountID, &s.IPAddress, &s.UserAgent,
			&s.CreatedAt, &s.LastActivityAt, &s.ExpiresAt, &s.IsActive); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Touch bumps last_activity_at.
func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE sessions SET last_activity_at = $2
		WHERE id = $1 AND is_active
	`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Deactivate revokes a session by id.
func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	query := `
		UPDATE sessions SET is_active = FALSE
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeactivateForAccount revokes the account's sessions.
func (r *PostgresRepository) DeactivateForAccount(ctx context.Context, accountID int64, exceptID string) (int64, error) {
	query := `
		UPDATE sessions SET is_active = FALSE
		WHERE account_id = $1 AND is_active AND id::text <> $2
	`
	return r.exec(ctx, query, accountID, exceptID)
}

// DeactivateExpired revokes sessions past expiry.
func (r *PostgresRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE sessions SET is_active = FALSE
		WHERE is_active AND expires_at <= $1
	`
	return r.exec(ctx, query, now)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
