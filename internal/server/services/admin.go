package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/thejerf/abtime"
)

// DefaultHistoryLimit is used when LoginHistory gets a non-positive limit.
const DefaultHistoryLimit = 50

// AdminService holds the operator actions on accounts: block and unblock,
// manual confirmation, password override, role management and login history.
type AdminService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      cryptox.Hasher
	lockout     LockoutPolicy
	ledger      *AttemptLedger
	clock       abtime.AbstractTime
	logger      logging.Logger
}

func NewAdminService(db *sql.DB, m repomanager.RepositoryManager, h cryptox.Hasher, p Policy, clock abtime.AbstractTime, l logging.Logger) *AdminService {
	return &AdminService{
		db:          db,
		repomanager: m,
		hasher:      h,
		lockout:     p.Lockout,
		ledger:      NewAttemptLedger(db, m, clock, l),
		clock:       clock,
		logger:      l.With("module", "admin"),
	}
}

// Block blocks the account with a reason shown on later login attempts and
// revokes its sessions.
func (s *AdminService) Block(ctx context.Context, accountID int64, reason string) error {
	err := s.withAccount(ctx, accountID, func(ctx context.Context, tx dbx.DBTX, a *models.Account) error {
		if a.IsBlocked {
			return common.ErrAlreadyBlocked
		}
		now := s.clock.Now().UTC()
		a.IsBlocked = true
		a.BlockedReason = reason
		a.BlockedAt = &now
		if err := s.repomanager.Accounts(tx).Update(ctx, a); err != nil {
			return err
		}
		_, err := s.repomanager.Sessions(tx).DeactivateForAccount(ctx, a.ID, "")
		return err
	})
	if err != nil {
		return fmt.Errorf("block account %d: %w", accountID, err)
	}
	s.logger.Info(ctx, "account blocked", "account_id", accountID, "reason", reason)
	return nil
}

func (s *AdminService) Unblock(ctx context.Context, accountID int64) error {
	err := s.withAccount(ctx, accountID, func(ctx context.Context, tx dbx.DBTX, a *models.Account) error {
		if !a.IsBlocked {
			return common.ErrNotBlocked
		}
		a.IsBlocked = false
		a.BlockedReason = ""
		a.BlockedAt = nil
		return s.repomanager.Accounts(tx).Update(ctx, a)
	})
	if err != nil {
		return fmt.Errorf("unblock account %d: %w", accountID, err)
	}
	s.logger.Info(ctx, "account unblocked", "account_id", accountID)
	return nil
}

// ConfirmEmail marks the email confirmed without a token.
func (s *AdminService) ConfirmEmail(ctx context.Context, accountID int64) error {
	err := s.withAccount(ctx, accountID, func(ctx context.Context, tx dbx.DBTX, a *models.Account) error {
		if a.EmailConfirmed {
			return common.ErrAlreadyConfirmed
		}
		now := s.clock.Now().UTC()
		a.EmailConfirmed = true
		a.EmailConfirmedAt = &now
		return s.repomanager.Accounts(tx).Update(ctx, a)
	})
	if err != nil {
		return fmt.Errorf("confirm email of account %d: %w", accountID, err)
	}
	s.logger.Info(ctx, "email confirmed by admin", "account_id", accountID)
	return nil
}

// SetPassword overrides the password, clears the lockout and revokes all
// sessions.
func (s *AdminService) SetPassword(ctx context.Context, accountID int64, password string) error {
	if err := ValidatePasswordLength(password); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("%w: hash password: %w", common.ErrorInternal, err)
	}

	err = s.withAccount(ctx, accountID, func(ctx context.Context, tx dbx.DBTX, a *models.Account) error {
		a.PasswordHash = hash
		s.lockout.RegisterSuccess(a)
		if err := s.repomanager.Accounts(tx).Update(ctx, a); err != nil {
			return err
		}
		_, err := s.repomanager.Sessions(tx).DeactivateForAccount(ctx, a.ID, "")
		return err
	})
	if err != nil {
		return fmt.Errorf("set password of account %d: %w", accountID, err)
	}
	s.logger.Info(ctx, "password set by admin", "account_id", accountID)
	return nil
}

func (s *AdminService) AssignRole(ctx context.Context, accountID int64, roleName string) error {
	err := s.withRole(ctx, accountID, roleName, func(ctx context.Context, tx dbx.DBTX, role *models.Role) error {
		return s.repomanager.Roles(tx).Assign(ctx, accountID, role.ID)
	})
	if err != nil {
		return fmt.Errorf("assign role %q to account %d: %w", roleName, accountID, err)
	}
	s.logger.Info(ctx, "role assigned", "account_id", accountID, "role", roleName)
	return nil
}

func (s *AdminService) RemoveRole(ctx context.Context, accountID int64, roleName string) error {
	err := s.withRole(ctx, accountID, roleName, func(ctx context.Context, tx dbx.DBTX, role *models.Role) error {
		return s.repomanager.Roles(tx).Remove(ctx, accountID, role.ID)
	})
	if err != nil {
		return fmt.Errorf("remove role %q from account %d: %w", roleName, accountID, err)
	}
	s.logger.Info(ctx, "role removed", "account_id", accountID, "role", roleName)
	return nil
}

// LoginHistory returns the newest attempts of the account first.
func (s *AdminService) LoginHistory(ctx context.Context, accountID int64, limit int) ([]models.LoginAttempt, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if _, err := s.repomanager.Accounts(s.db).GetByID(ctx, accountID); err != nil {
		return nil, fmt.Errorf("load account %d: %w", accountID, err)
	}
	items, err := s.ledger.History(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("load login history of account %d: %w", accountID, err)
	}
	return items, nil
}

func (s *AdminService) withAccount(ctx context.Context, accountID int64, fn func(ctx context.Context, tx dbx.DBTX, a *models.Account) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		a, err := s.repomanager.Accounts(tx).GetByIDForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		return fn(ctx, tx, a)
	})
}

func (s *AdminService) withRole(ctx context.Context, accountID int64, roleName string, fn func(ctx context.Context, tx dbx.DBTX, role *models.Role) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Accounts(tx).GetByID(ctx, accountID); err != nil {
			return err
		}
		role, err := s.repomanager.Roles(tx).GetByName(ctx, roleName)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("role %q: %w", roleName, common.ErrorNotFound)
			}
			return err
		}
		return fn(ctx, tx, role)
	})
}
