// Package attempts is the append-only login attempt ledger store.
package attempts

import (
	"context"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// Repository only appends and reads; attempt records are never changed.
type Repository interface {
	Create(ctx context.Context, attempt *models.LoginAttempt) error
	ListByAccount(ctx context.Context, accountID int64, limit int) ([]models.LoginAttempt, error)
}
