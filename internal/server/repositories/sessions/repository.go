// Package sessions declares the server-side store for issued login sessions.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// Repository defines operations for issuing, looking up, and revoking sessions.
type Repository interface {
	// Create stores a new active session.
	Create(ctx context.Context, session *models.Session) error

	// Get returns the session by id or common.ErrorNotFound.
	Get(ctx context.Context, id string) (*models.Session, error)

	// ListActiveForAccount returns the account's active sessions that expire
	// after now, most recently used first.
	ListActiveForAccount(ctx context.Context, accountID int64, now time.Time) ([]models.Session, error)

	// Touch records activity on an active session.
	Touch(ctx context.Context, id string, at time.Time) error

	// Deactivate revokes one session. Revoking an inactive or missing
	// session is not an error.
	Deactivate(ctx context.Context, id string) error

	// DeactivateForAccount revokes every active session of the account except
	// exceptID (which may be empty) and returns how many were revoked.
	DeactivateForAccount(ctx context.Context, accountID int64, exceptID string) (int64, error)

	// DeactivateExpired revokes active sessions whose expiry is not after now.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}
