package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/thejerf/abtime"
)

// TokenIssuer creates and consumes single-use credential tokens. All methods
// take the handle to run on so callers can put consumption and the account
// change it authorizes into one transaction.
type TokenIssuer struct {
	repomanager repomanager.RepositoryManager
	clock       abtime.AbstractTime
}

func NewTokenIssuer(m repomanager.RepositoryManager, clock abtime.AbstractTime) *TokenIssuer {
	return &TokenIssuer{repomanager: m, clock: clock}
}

// Generate returns a fresh 256-bit URL-safe token string.
func (i *TokenIssuer) Generate() (string, error) {
	return cryptox.MakeRandURLToken(cryptox.TokenBytes)
}

// Store persists token for the account with expiry now+ttl.
func (i *TokenIssuer) Store(ctx context.Context, db dbx.DBTX, accountID int64, kind models.TokenKind, token string, ttl time.Duration) (*models.CredentialToken, error) {
	now := i.clock.Now().UTC()
	t := &models.CredentialToken{
		AccountID: accountID,
		Token:     token,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := i.repomanager.Tokens(db).Create(ctx, t); err != nil {
		return nil, fmt.Errorf("store %s token: %w", kind, err)
	}
	return t, nil
}

// Issue generates and stores a token and returns its string.
func (i *TokenIssuer) Issue(ctx context.Context, db dbx.DBTX, accountID int64, kind models.TokenKind, ttl time.Duration) (string, error) {
	token, err := i.Generate()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	if _, err := i.Store(ctx, db, accountID, kind, token, ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Consume locks the token row, checks it and marks it used. It fails with
// common.ErrorNotFound for unknown tokens or tokens of another kind,
// common.ErrTokenAlreadyUsed and common.ErrTokenExpired. db must be a
// transaction for the row lock to hold.
func (i *TokenIssuer) Consume(ctx context.Context, db dbx.DBTX, token string, kind models.TokenKind, origin string) (*models.CredentialToken, error) {
	if token == "" {
		return nil, common.ErrorNotFound
	}

	repo := i.repomanager.Tokens(db)
	t, err := repo.FindForUpdate(ctx, token)
	if err != nil {
		return nil, err
	}
	if t.Kind != kind {
		return nil, common.ErrorNotFound
	}
	if t.IsUsed {
		return nil, common.ErrTokenAlreadyUsed
	}

	now := i.clock.Now().UTC()
	if !now.Before(t.ExpiresAt) {
		return nil, common.ErrTokenExpired
	}

	if err := repo.MarkUsed(ctx, t.ID, now, origin); err != nil {
		return nil, err
	}
	t.IsUsed = true
	t.UsedAt = &now
	t.IPAddress = origin
	return t, nil
}

// isTokenRejection reports whether err is one of the business outcomes of
// Consume rather than a store failure.
func isTokenRejection(err error) bool {
	return errors.Is(err, common.ErrorNotFound) ||
		errors.Is(err, common.ErrTokenAlreadyUsed) ||
		errors.Is(err, common.ErrTokenExpired)
}
