package attempts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (email, account_id, is_successful, ip_address, user_agent, failure_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var reason sql.NullString
	if a.FailureReason != "" {
		reason = sql.NullString{String: a.FailureReason, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		a.Email, a.AccountID, a.IsSuccessful, a.IPAddress, a.UserAgent, reason, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListByAccount returns the newest attempts first.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]models.LoginAttempt, error) {
	query := `
		SELECT id, email, account_id, is_successful, ip_address, user_agent, failure_reason, created_at
		FROM login_attempts
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.LoginAttempt
	for rows.Next() {
		var (
			a       models.LoginAttempt
			account sql.NullInt64
			reason  sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Email, &account, &a.IsSuccessful, &a.IPAddress, &a.UserAgent, &reason, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		if account.Valid {
			id := account.Int64
			a.AccountID = &id
		}
		a.FailureReason = reason.String
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
