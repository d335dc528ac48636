package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/thejerf/abtime"
)

// Failure reasons stored on attempt records.
const (
	ReasonAccountNotFound   = "account not found"
	ReasonAccountBlocked    = "account blocked"
	ReasonAccountLockedOut  = "account locked out"
	ReasonInvalidPassword   = "invalid password"
	ReasonEmailNotConfirmed = "email not confirmed"
	ReasonInternalError     = "internal error"
)

// AttemptLedger appends login attempt records. It writes through the pool,
// never inside the engine's transaction, and never fails the caller.
type AttemptLedger struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	clock       abtime.AbstractTime
	logger      logging.Logger
}

func NewAttemptLedger(db *sql.DB, m repomanager.RepositoryManager, clock abtime.AbstractTime, l logging.Logger) *AttemptLedger {
	return &AttemptLedger{
		db:          db,
		repomanager: m,
		clock:       clock,
		logger:      l.With("module", "attempt_ledger"),
	}
}

// Record appends one attempt. Text fields are cut to their column widths
// so oversized caller input cannot make the insert fail. Errors are logged
// and dropped.
func (l *AttemptLedger) Record(ctx context.Context, a models.LoginAttempt) {
	a = a.Fit()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = l.clock.Now().UTC()
	}

	// the attempt already happened; a caller that gave up must not lose it
	ctx = context.WithoutCancel(ctx)

	if err := l.repomanager.Attempts(l.db).Create(ctx, &a); err != nil {
		l.logger.Warn(ctx, "failed to record login attempt",
			"successful", a.IsSuccessful, "reason", a.FailureReason, "error", err)
	}
}

// CountRecentFailures returns the live failure counter of the account, which
// is the source of truth for lockout decisions.
func (l *AttemptLedger) CountRecentFailures(a *models.Account) int {
	return a.FailedLoginAttempts
}

// History returns up to limit attempts of the account, newest first.
func (l *AttemptLedger) History(ctx context.Context, accountID int64, limit int) ([]models.LoginAttempt, error) {
	return l.repomanager.Attempts(l.db).ListByAccount(ctx, accountID, limit)
}
