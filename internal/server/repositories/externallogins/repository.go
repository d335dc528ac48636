// Package externallogins stores bindings between external identity provider
// subjects and local accounts.
package externallogins

import (
	"context"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

type Repository interface {
	// Find returns the link for (provider, providerKey) or common.ErrorNotFound.
	Find(ctx context.Context, provider, providerKey string) (*models.ExternalLogin, error)
	// Create stores a new link. A duplicate (provider, providerKey) yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, link *models.ExternalLogin) error
	ListByAccount(ctx context.Context, accountID int64) ([]models.ExternalLogin, error)
}
