package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"github.com/thejerf/abtime"
)

// IssuedSession is a signed access token and the session row behind it.
type IssuedSession struct {
	Token   string
	Session *models.Session
}

// SessionService issues session tokens after a successful login and checks
// them on protected calls. A token is only accepted while its session row is
// active, so revoking the row logs the token out before it expires.
type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	jwtSecret   []byte
	ttl         time.Duration
	clock       abtime.AbstractTime
	logger      logging.Logger
}

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, clock abtime.AbstractTime, l logging.Logger) *SessionService {
	return &SessionService{
		db:          db,
		repomanager: m,
		jwtSecret:   []byte(cfg.SecretKey),
		ttl:         cfg.SessionTTL,
		clock:       clock,
		logger:      l.With("module", "sessions"),
	}
}

// Issue creates a session for the account and signs a token carrying its
// roles.
func (s *SessionService) Issue(ctx context.Context, a *models.Account, ipAddress, userAgent string) (*IssuedSession, error) {
	now := s.clock.Now().UTC()
	session := &models.Session{
		ID:             uuid.NewString(),
		AccountID:      a.ID,
		IPAddress:      models.Truncate(ipAddress, models.MaxOriginLength),
		UserAgent:      models.Truncate(userAgent, models.MaxUserAgentLength),
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.ttl),
		IsActive:       true,
	}

	token, err := auth.GenerateToken(a.ID, session.ID, a.Roles, s.jwtSecret, now, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: sign session token: %w", common.ErrorInternal, err)
	}

	if err := s.repomanager.Sessions(s.db).Create(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: create session: %w", common.ErrorInternal, err)
	}

	return &IssuedSession{Token: token, Session: session}, nil
}

// Validate returns the claims of a token whose session is still active and
// unexpired, and records activity on it. Rejections wrap
// common.ErrorUnauthorized.
func (s *SessionService) Validate(ctx context.Context, token string) (*auth.Claims, error) {
	now := s.clock.Now().UTC()

	claims, err := auth.ParseToken(token, s.jwtSecret, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}

	repo := s.repomanager.Sessions(s.db)
	session, err := repo.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: unknown session", common.ErrorUnauthorized)
		}
		return nil, fmt.Errorf("%w: load session: %w", common.ErrorInternal, err)
	}
	if !session.IsActive || !now.Before(session.ExpiresAt) || session.AccountID != claims.AccountID {
		return nil, fmt.Errorf("%w: session is no longer active", common.ErrorUnauthorized)
	}

	if err := repo.Touch(ctx, session.ID, now); err != nil {
		s.logger.Warn(ctx, "failed to touch session", "session_id", session.ID, "error", err)
	}
	return claims, nil
}

// ActiveSession is a live session as shown to its owner. Current marks the
// session the listing request itself was made with.
type ActiveSession struct {
	models.Session
	Current bool
}

// List returns the account's live sessions, most recently used first.
func (s *SessionService) List(ctx context.Context, accountID int64, currentSessionID string) ([]ActiveSession, error) {
	rows, err := s.repomanager.Sessions(s.db).ListActiveForAccount(ctx, accountID, s.clock.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %w", common.ErrorInternal, err)
	}
	out := make([]ActiveSession, 0, len(rows))
	for _, r := range rows {
		out = append(out, ActiveSession{Session: r, Current: r.ID == currentSessionID})
	}
	return out, nil
}

// Revoke deactivates one session.
func (s *SessionService) Revoke(ctx context.Context, sessionID string) error {
	if err := s.repomanager.Sessions(s.db).Deactivate(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: revoke session: %w", common.ErrorInternal, err)
	}
	return nil
}

// RevokeAll deactivates every session of the account except exceptSessionID
// and returns how many were revoked.
func (s *SessionService) RevokeAll(ctx context.Context, accountID int64, exceptSessionID string) (int64, error) {
	n, err := s.repomanager.Sessions(s.db).DeactivateForAccount(ctx, accountID, exceptSessionID)
	if err != nil {
		return 0, fmt.Errorf("%w: revoke sessions: %w", common.ErrorInternal, err)
	}
	s.logger.Info(ctx, "sessions revoked", "account_id", accountID, "count", n)
	return n, nil
}
