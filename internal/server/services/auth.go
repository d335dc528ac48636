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
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/notify"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/thejerf/abtime"
)

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	IPAddress string
}

type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

type ResetPasswordInput struct {
	Token       string
	NewPassword string
	IPAddress   string
}

type ExternalLoginInput struct {
	Provider            string
	ProviderKey         string
	ProviderDisplayName string
	Email               string
	FirstName           string
	LastName            string
	IPAddress           string
	UserAgent           string
}

type ChangePasswordInput struct {
	AccountID       int64
	CurrentPassword string
	NewPassword     string
	// SessionID is kept active; every other session of the account is revoked.
	SessionID string
}

// AuthService is the authentication engine. It holds no per-account state;
// everything lives in the store and is changed inside short transactions.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	policy      Policy
	hasher      cryptox.Hasher
	clock       abtime.AbstractTime
	notifier    notify.Notifier
	logger      logging.Logger
	tokens      *TokenIssuer
	ledger      *AttemptLedger

	// dummyHash is verified against on unknown emails so they cost one hash
	// check like a wrong password does.
	dummyHash string
}

type AuthOption func(*AuthService)

func WithClock(c abtime.AbstractTime) AuthOption {
	return func(s *AuthService) { s.clock = c }
}

func WithHasher(h cryptox.Hasher) AuthOption {
	return func(s *AuthService) { s.hasher = h }
}

func WithPolicy(p Policy) AuthOption {
	return func(s *AuthService) { s.policy = p }
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, n notify.Notifier, l logging.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		db:          db,
		repomanager: m,
		policy:      PolicyFromConfig(cfg),
		hasher:      cryptox.NewBcryptHasher(cfg.BcryptCost),
		clock:       abtime.NewRealTime(),
		notifier:    n,
		logger:      l.With("module", "auth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tokens = NewTokenIssuer(m, s.clock)
	s.ledger = NewAttemptLedger(db, m, s.clock, l)

	hash, err := cryptox.UnusablePasswordHash(s.hasher)
	if err != nil {
		s.logger.Warn(context.Background(), "failed to prepare dummy hash", "error", err)
	}
	s.dummyHash = hash
	return s
}

// Register creates an unconfirmed account with the default role and sends
// a confirmation link.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	exists, err := s.repomanager.Accounts(s.db).EmailExists(ctx, in.Email)
	if err != nil {
		return nil, s.internal(ctx, "register", err)
	}
	if exists {
		return nil, common.ErrEmailTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal(ctx, "register", err)
	}

	var (
		account *models.Account
		token   string
	)
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		a, err := s.repomanager.Accounts(tx).Create(ctx, &models.Account{
			Email:        in.Email,
			PasswordHash: hash,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			IsActive:     true,
		})
		if err != nil {
			return err
		}
		if err := s.assignDefaultRole(ctx, tx, a); err != nil {
			return err
		}
		token, err = s.tokens.Issue(ctx, tx, a.ID, models.TokenKindConfirmation, s.policy.ConfirmationTokenTTL)
		if err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrEmailTaken) {
			return nil, common.ErrEmailTaken
		}
		return nil, s.internal(ctx, "register", err)
	}

	s.notifier.SendConfirmation(account.Email, token, s.policy.link(confirmEmailPath, token))
	s.logger.Info(ctx, "account registered", "account_id", account.ID)
	return account, nil
}

// Login checks, in order: existence, block, lockout, password and email
// confirmation. Every call appends exactly one attempt record. The account
// row stays locked for the whole check so concurrent failures cannot lose
// counter updates.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*models.Account, error) {
	now := s.clock.Now().UTC()
	attempt := models.LoginAttempt{
		Email:     in.Email,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
		CreatedAt: now,
	}

	var (
		account   *models.Account
		accountID int64
		outcome   error
		reason    string
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		accounts := s.repomanager.Accounts(tx)

		a, err := accounts.GetByEmailForUpdate(ctx, in.Email)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				s.hasher.Verify(in.Password, s.dummyHash)
				outcome, reason = common.ErrInvalidCredentials, ReasonAccountNotFound
				return nil
			}
			return err
		}
		accountID = a.ID
		attempt.AccountID = &accountID

		if a.IsBlocked {
			outcome, reason = &common.BlockedError{Reason: a.BlockedReason}, ReasonAccountBlocked
			return nil
		}

		if locked, remaining := s.policy.Lockout.Check(a, now); locked {
			outcome = &common.LockedError{Until: *a.LockedOutUntil, Remaining: remaining}
			reason = ReasonAccountLockedOut
			return nil
		}

		if !s.hasher.Verify(in.Password, a.PasswordHash) {
			outcome, reason = common.ErrInvalidCredentials, ReasonInvalidPassword
			if s.policy.Lockout.RegisterFailure(a, now) {
				reason = lockedReason(s.policy.Lockout)
			}
			return accounts.Update(ctx, a)
		}

		if !a.EmailConfirmed {
			outcome, reason = common.ErrEmailNotConfirmed, ReasonEmailNotConfirmed
			return nil
		}

		s.policy.Lockout.RegisterSuccess(a)
		a.LastLoginAt = &now
		a.LastLoginIP = models.Truncate(in.IPAddress, models.MaxOriginLength)
		if err := accounts.Update(ctx, a); err != nil {
			return err
		}

		roles, err := s.repomanager.Roles(tx).ListForAccount(ctx, a.ID)
		if err != nil {
			return err
		}
		a.Roles = roles
		account = a
		return nil
	})
	if err != nil {
		attempt.FailureReason = ReasonInternalError
		s.ledger.Record(ctx, attempt)
		return nil, s.internal(ctx, "login", err)
	}

	attempt.IsSuccessful = outcome == nil
	attempt.FailureReason = reason
	s.ledger.Record(ctx, attempt)

	if outcome != nil {
		s.logger.Info(ctx, "login rejected", "account_id", accountID, "reason", reason)
		return nil, outcome
	}
	s.logger.Info(ctx, "login succeeded", "account_id", account.ID)
	return account, nil
}

func lockedReason(p LockoutPolicy) string {
	return fmt.Sprintf("too many failed attempts, locked for %d minutes",
		(&common.LockedError{Remaining: p.LockoutDuration}).RemainingMinutes())
}

// ConfirmEmail consumes a confirmation token and marks the account
// confirmed. Unknown, used and expired tokens all yield false.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) bool {
	var (
		account  *models.Account
		rejected error
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		t, err := s.tokens.Consume(ctx, tx, token, models.TokenKindConfirmation, "")
		if err != nil {
			if isTokenRejection(err) {
				rejected = err
				return nil
			}
			return err
		}

		accounts := s.repomanager.Accounts(tx)
		a, err := accounts.GetByIDForUpdate(ctx, t.AccountID)
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		a.EmailConfirmed = true
		a.EmailConfirmedAt = &now
		if err := accounts.Update(ctx, a); err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		_ = s.internal(ctx, "confirm email", err)
		return false
	}
	if rejected != nil {
		s.logger.Info(ctx, "email confirmation rejected", "error", rejected)
		return false
	}

	s.notifier.SendWelcome(account.Email, account.DisplayName())
	s.logger.Info(ctx, "email confirmed", "account_id", account.ID)
	return true
}

// RequestPasswordReset always returns true. A token is generated whether or
// not the email is known; it is only stored and sent for a real account.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) bool {
	token, err := s.tokens.Generate()
	if err != nil {
		_ = s.internal(ctx, "request password reset", err)
		return true
	}

	a, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			_ = s.internal(ctx, "request password reset", err)
		}
		return true
	}

	if _, err := s.tokens.Store(ctx, s.db, a.ID, models.TokenKindReset, token, s.policy.ResetTokenTTL); err != nil {
		_ = s.internal(ctx, "request password reset", err)
		return true
	}

	s.notifier.SendReset(a.Email, token, s.policy.link(resetPasswordPath, token))
	s.logger.Info(ctx, "password reset requested", "account_id", a.ID)
	return true
}

// ResetPassword consumes a reset token, stamps it with the caller's origin,
// sets the new password, clears the lockout and revokes all sessions, all in
// one transaction.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return s.internal(ctx, "reset password", err)
	}

	var (
		accountID int64
		rejected  error
	)
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		t, err := s.tokens.Consume(ctx, tx, in.Token, models.TokenKindReset, models.Truncate(in.IPAddress, models.MaxOriginLength))
		if err != nil {
			if isTokenRejection(err) {
				rejected = err
				return nil
			}
			return err
		}

		accounts := s.repomanager.Accounts(tx)
		a, err := accounts.GetByIDForUpdate(ctx, t.AccountID)
		if err != nil {
			return err
		}
		a.PasswordHash = hash
		s.policy.Lockout.RegisterSuccess(a)
		if err := accounts.Update(ctx, a); err != nil {
			return err
		}
		if _, err := s.repomanager.Sessions(tx).DeactivateForAccount(ctx, a.ID, ""); err != nil {
			return err
		}
		accountID = a.ID
		return nil
	})
	if err != nil {
		return s.internal(ctx, "reset password", err)
	}
	if rejected != nil {
		s.logger.Info(ctx, "password reset rejected", "error", rejected)
		return common.ErrInvalidOrExpiredToken
	}

	s.logger.Info(ctx, "password reset", "account_id", accountID)
	return nil
}

// ExternalLogin signs in through an external identity provider. A known
// (provider, key) pair logs its account in without a password check.
// Otherwise the identity is linked to the account with the same email, or to
// a new account. New accounts are created confirmed because the provider
// already verified the address; their password hash is unusable.
func (s *AuthService) ExternalLogin(ctx context.Context, in ExternalLoginInput) (*models.Account, error) {
	var (
		account *models.Account
		created bool
		outcome error
		err     error
	)

	// a concurrent first login for the same identity or email can win the
	// unique constraint; the second pass then finds what it created
	for pass := 0; pass < 2; pass++ {
		account, created, outcome, err = s.externalLogin(ctx, in)
		if err == nil || !errors.Is(err, common.ErrorAlreadyExists) {
			break
		}
	}

	attempt := models.LoginAttempt{
		Email:     in.Email,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
		CreatedAt: s.clock.Now().UTC(),
	}
	if account != nil {
		id := account.ID
		attempt.AccountID = &id
		attempt.Email = account.Email
	}

	switch {
	case errors.Is(err, common.ErrorValidation):
		return nil, err
	case err != nil:
		attempt.FailureReason = ReasonInternalError
		s.ledger.Record(ctx, attempt)
		return nil, s.internal(ctx, "external login", err)
	case outcome != nil:
		attempt.FailureReason = ReasonAccountBlocked
		s.ledger.Record(ctx, attempt)
		s.logger.Info(ctx, "external login rejected", "account_id", account.ID, "provider", in.Provider)
		return nil, outcome
	}

	attempt.IsSuccessful = true
	s.ledger.Record(ctx, attempt)

	if created {
		s.notifier.SendWelcome(account.Email, account.DisplayName())
	}
	s.logger.Info(ctx, "external login succeeded", "account_id", account.ID, "provider", in.Provider, "created", created)
	return account, nil
}

func (s *AuthService) externalLogin(ctx context.Context, in ExternalLoginInput) (account *models.Account, created bool, outcome error, err error) {
	now := s.clock.Now().UTC()

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		accounts := s.repomanager.Accounts(tx)
		links := s.repomanager.ExternalLogins(tx)

		link, err := links.Find(ctx, in.Provider, in.ProviderKey)
		switch {
		case err == nil:
			account, err = accounts.GetByIDForUpdate(ctx, link.AccountID)
			if err != nil {
				return err
			}
		case errors.Is(err, common.ErrorNotFound):
			account, created, err = s.resolveExternalAccount(ctx, tx, in)
			if err != nil {
				return err
			}
			if account.IsBlocked {
				break
			}
			if err := links.Create(ctx, &models.ExternalLogin{
				AccountID:           account.ID,
				Provider:            in.Provider,
				ProviderKey:         in.ProviderKey,
				ProviderDisplayName: in.ProviderDisplayName,
				CreatedAt:           now,
			}); err != nil {
				return err
			}
		default:
			return err
		}

		if account.IsBlocked {
			outcome = &common.BlockedError{Reason: account.BlockedReason}
			return nil
		}

		account.LastLoginAt = &now
		account.LastLoginIP = models.Truncate(in.IPAddress, models.MaxOriginLength)
		if err := accounts.Update(ctx, account); err != nil {
			return err
		}

		roles, err := s.repomanager.Roles(tx).ListForAccount(ctx, account.ID)
		if err != nil {
			return err
		}
		account.Roles = roles
		return nil
	})
	if err != nil {
		return nil, false, nil, err
	}
	return account, created, outcome, nil
}

func (s *AuthService) resolveExternalAccount(ctx context.Context, tx dbx.DBTX, in ExternalLoginInput) (*models.Account, bool, error) {
	accounts := s.repomanager.Accounts(tx)

	if in.Email == "" {
		return nil, false, validationError("email is required to create an account for an external identity")
	}

	a, err := accounts.GetByEmailForUpdate(ctx, in.Email)
	if err == nil {
		return a, false, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, false, err
	}

	hash, err := cryptox.UnusablePasswordHash(s.hasher)
	if err != nil {
		return nil, false, err
	}
	now := s.clock.Now().UTC()
	a, err = accounts.Create(ctx, &models.Account{
		Email:            in.Email,
		PasswordHash:     hash,
		FirstName:        in.FirstName,
		LastName:         in.LastName,
		EmailConfirmed:   true,
		EmailConfirmedAt: &now,
		IsActive:         true,
	})
	if err != nil {
		if errors.Is(err, common.ErrEmailTaken) {
			return nil, false, common.ErrorAlreadyExists
		}
		return nil, false, err
	}
	if err := s.assignDefaultRole(ctx, tx, a); err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// ChangePassword verifies the current password, stores the new one and
// revokes every other session of the account.
func (s *AuthService) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return s.internal(ctx, "change password", err)
	}

	var outcome error
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		accounts := s.repomanager.Accounts(tx)
		a, err := accounts.GetByIDForUpdate(ctx, in.AccountID)
		if err != nil {
			return err
		}
		if !s.hasher.Verify(in.CurrentPassword, a.PasswordHash) {
			outcome = common.ErrInvalidCredentials
			return nil
		}
		a.PasswordHash = hash
		if err := accounts.Update(ctx, a); err != nil {
			return err
		}
		_, err = s.repomanager.Sessions(tx).DeactivateForAccount(ctx, a.ID, in.SessionID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return s.internal(ctx, "change password", err)
	}
	if outcome != nil {
		return outcome
	}

	s.logger.Info(ctx, "password changed", "account_id", in.AccountID)
	return nil
}

// Profile returns the account with its roles and linked external providers.
func (s *AuthService) Profile(ctx context.Context, accountID int64) (*models.Account, error) {
	a, err := s.repomanager.Accounts(s.db).GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "profile", err)
	}
	roles, err := s.repomanager.Roles(s.db).ListForAccount(ctx, accountID)
	if err != nil {
		return nil, s.internal(ctx, "profile", err)
	}
	a.Roles = roles

	links, err := s.repomanager.ExternalLogins(s.db).ListByAccount(ctx, accountID)
	if err != nil {
		return nil, s.internal(ctx, "profile", err)
	}
	a.Providers = make([]string, 0, len(links))
	for _, l := range links {
		a.Providers = append(a.Providers, l.Provider)
	}
	return a, nil
}

func (s *AuthService) assignDefaultRole(ctx context.Context, tx dbx.DBTX, a *models.Account) error {
	roles := s.repomanager.Roles(tx)
	role, err := roles.GetByName(ctx, s.policy.DefaultRole)
	if err != nil {
		return fmt.Errorf("resolve default role %q: %w", s.policy.DefaultRole, err)
	}
	if err := roles.Assign(ctx, a.ID, role.ID); err != nil {
		return fmt.Errorf("assign default role: %w", err)
	}
	a.Roles = []string{role.Name}
	return nil
}

// internal logs a store or crypto failure and wraps it so callers can tell
// it apart from business outcomes.
func (s *AuthService) internal(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, op+" failed", "error", err)
	return fmt.Errorf("%w: %s: %w", common.ErrorInternal, op, err)
}
