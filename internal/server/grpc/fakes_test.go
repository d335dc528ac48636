package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
)

type fakeEngine struct {
	account *models.Account
	err     error
	ok      bool

	gotRegister services.RegisterInput
	gotLogin    services.LoginInput
	gotReset    services.ResetPasswordInput
	gotExternal services.ExternalLoginInput
	gotChange   services.ChangePasswordInput
	gotToken    string
	gotEmail    string
	calls       int
	panicOn     string
}

func (f *fakeEngine) Register(ctx context.Context, in services.RegisterInput) (*models.Account, error) {
	f.calls++
	f.gotRegister = in
	return f.account, f.err
}

func (f *fakeEngine) Login(ctx context.Context, in services.LoginInput) (*models.Account, error) {
	f.calls++
	f.gotLogin = in
	if f.panicOn == "login" {
		panic("boom")
	}
	return f.account, f.err
}

func (f *fakeEngine) ConfirmEmail(ctx context.Context, token string) bool {
	f.calls++
	f.gotToken = token
	return f.ok
}

func (f *fakeEngine) RequestPasswordReset(ctx context.Context, email string) bool {
	f.calls++
	f.gotEmail = email
	return true
}

func (f *fakeEngine) ResetPassword(ctx context.Context, in services.ResetPasswordInput) error {
	f.calls++
	f.gotReset = in
	return f.err
}

func (f *fakeEngine) ExternalLogin(ctx context.Context, in services.ExternalLoginInput) (*models.Account, error) {
	f.calls++
	f.gotExternal = in
	return f.account, f.err
}

func (f *fakeEngine) ChangePassword(ctx context.Context, in services.ChangePasswordInput) error {
	f.calls++
	f.gotChange = in
	return f.err
}

func (f *fakeEngine) Profile(ctx context.Context, accountID int64) (*models.Account, error) {
	f.calls++
	return f.account, f.err
}

type fakeSessions struct {
	claims      *auth.Claims
	validateErr error
	issueErr    error
	revokeErr   error
	revokedN    int64

	issuedIP    string
	issuedUA    string
	revoked     []string
	revokeAllOf int64
	exceptID    string

	listed      []services.ActiveSession
	listErr     error
	listAccount int64
	listCurrent string
}

func (f *fakeSessions) Issue(ctx context.Context, a *models.Account, ipAddress, userAgent string) (*services.IssuedSession, error) {
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	f.issuedIP, f.issuedUA = ipAddress, userAgent
	return &services.IssuedSession{
		Token: "signed-token",
		Session: &models.Session{
			ID:        "s-1",
			AccountID: a.ID,
			ExpiresAt: time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC),
			IsActive:  true,
		},
	}, nil
}

func (f *fakeSessions) Validate(ctx context.Context, token string) (*auth.Claims, error) {
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	if f.claims == nil || token != "good" {
		return nil, common.ErrorUnauthorized
	}
	return f.claims, nil
}

func (f *fakeSessions) Revoke(ctx context.Context, sessionID string) error {
	f.revoked = append(f.revoked, sessionID)
	return f.revokeErr
}

func (f *fakeSessions) RevokeAll(ctx context.Context, accountID int64, exceptSessionID string) (int64, error) {
	f.revokeAllOf, f.exceptID = accountID, exceptSessionID
	return f.revokedN, f.revokeErr
}

func (f *fakeSessions) List(ctx context.Context, accountID int64, currentSessionID string) ([]services.ActiveSession, error) {
	f.listAccount, f.listCurrent = accountID, currentSessionID
	return f.listed, f.listErr
}

func testAccount() *models.Account {
	last := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
	return &models.Account{
		ID:             7,
		Email:          "ann@example.com",
		PasswordHash:   "$2a$04$secret",
		FirstName:      "Ann",
		LastName:       "Lee",
		EmailConfirmed: true,
		IsActive:       true,
		LastLoginAt:    &last,
		Roles:          []string{"member"},
	}
}
