// Package accounts declares the account store contract and its PostgreSQL
// implementation.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts the account and fills in ID and CreatedAt. A duplicate
	// email yields common.ErrEmailTaken.
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	// Update persists every mutable column of the account.
	Update(ctx context.Context, account *models.Account) error

	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)

	// The ForUpdate variants lock the row until the surrounding transaction
	// ends. They must be called on a transactional handle.
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Account, error)
	GetByEmailForUpdate(ctx context.Context, email string) (*models.Account, error)

	EmailExists(ctx context.Context, email string) (bool, error)
}
