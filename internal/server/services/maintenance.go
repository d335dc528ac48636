package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/thejerf/abtime"
)

// SweepReport summarizes one maintenance run.
type SweepReport struct {
	SessionsDeactivated int64
	ExpiredTokens       int64
}

// MaintenanceService runs the externally triggered cleanup. Credential
// tokens are kept for audit, so expired ones are only counted.
type MaintenanceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	clock       abtime.AbstractTime
	logger      logging.Logger
}

func NewMaintenanceService(db *sql.DB, m repomanager.RepositoryManager, clock abtime.AbstractTime, l logging.Logger) *MaintenanceService {
	return &MaintenanceService{
		db:          db,
		repomanager: m,
		clock:       clock,
		logger:      l.With("module", "maintenance"),
	}
}

func (s *MaintenanceService) Sweep(ctx context.Context) (*SweepReport, error) {
	now := s.clock.Now().UTC()

	deactivated, err := s.repomanager.Sessions(s.db).DeactivateExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("deactivate expired sessions: %w", err)
	}

	expired, err := s.repomanager.Tokens(s.db).CountExpiredUnused(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("count expired tokens: %w", err)
	}

	report := &SweepReport{SessionsDeactivated: deactivated, ExpiredTokens: expired}
	s.logger.Info(ctx, "sweep finished", "sessions_deactivated", deactivated, "expired_tokens", expired)
	return report, nil
}
