// Package roles resolves role names and manages account role assignments.
package roles

import (
	"context"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

type Repository interface {
	GetByName(ctx context.Context, name string) (*models.Role, error)
	// Assign yields common.ErrRoleAlreadyAssigned on a duplicate assignment.
	Assign(ctx context.Context, accountID, roleID int64) error
	// Remove yields common.ErrorNotFound when the account did not have the role.
	Remove(ctx context.Context, accountID, roleID int64) error
	ListForAccount(ctx context.Context, accountID int64) ([]string, error)
}
