package externallogins

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Find(ctx context.Context, provider, providerKey string) (*models.ExternalLogin, error) {
	query := `
		SELECT id, account_id, provider, provider_key, provider_display_name, created_at
		FROM external_logins
		WHERE provider = $1 AND provider_key = $2
	`
	l := &models.ExternalLogin{}
	err := r.db.QueryRowContext(ctx, query, provider, providerKey).
		Scan(&l.ID, &l.AccountID, &l.Provider, &l.ProviderKey, &l.ProviderDisplayName, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) Create(ctx context.Context, l *models.ExternalLogin) error {
	query := `
		INSERT INTO external_logins (account_id, provider, provider_key, provider_display_name, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query, l.AccountID, l.Provider, l.ProviderKey, l.ProviderDisplayName, l.CreatedAt).Scan(&l.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID int64) ([]models.ExternalLogin, error) {
	query := `
		SELECT id, account_id, provider, provider_key, provider_display_name, created_at
		FROM external_logins
		WHERE account_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.ExternalLogin
	for rows.Next() {
		var l models.ExternalLogin
		if err := rows.Scan(&l.ID, &l.AccountID, &l.Provider, &l.ProviderKey, &l.ProviderDisplayName, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
