// Package tokens stores single-use credential tokens (email confirmation and
// password reset).
package tokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

type Repository interface {
	// Create stores a new unused token and fills in its ID.
	Create(ctx context.Context, token *models.CredentialToken) error

	// FindForUpdate returns the token row locked until the transaction ends,
	// or common.ErrorNotFound.
	FindForUpdate(ctx context.Context, token string) (*models.CredentialToken, error)

	// MarkUsed flips an unused token to used. If the token was already used
	// it returns common.ErrTokenAlreadyUsed.
	MarkUsed(ctx context.Context, id int64, usedAt time.Time, ipAddress string) error

	// CountExpiredUnused counts tokens that expired before now without being used.
	CountExpiredUnused(ctx context.Context, now time.Time) (int64, error)
}
