package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/attempts"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/externallogins"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/roles"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/tokens"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"
	_ "modernc.org/sqlite"
)

var testStart = time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)

// memStore is an in-memory credential store. Repositories ignore the DBTX
// they are bound to; the *sql.DB is only used for real BeginTx/Commit.
type memStore struct {
	mu sync.Mutex

	nextID       int64
	accounts     map[int64]models.Account
	roles        map[string]models.Role
	accountRoles map[int64]map[int64]bool
	tokens       map[string]models.CredentialToken
	attempts     []models.LoginAttempt
	links        map[string]models.ExternalLogin
	sessions     map[string]models.Session

	// injected failures
	updateErr  error
	attemptErr error
	tokenErr   error
	sessionErr error
}

func newMemStore() *memStore {
	s := &memStore{
		accounts:     map[int64]models.Account{},
		roles:        map[string]models.Role{},
		accountRoles: map[int64]map[int64]bool{},
		tokens:       map[string]models.CredentialToken{},
		links:        map[string]models.ExternalLogin{},
		sessions:     map[string]models.Session{},
	}
	s.roles[models.RoleMember] = models.Role{ID: 1, Name: models.RoleMember}
	s.roles[models.RoleAdmin] = models.Role{ID: 2, Name: models.RoleAdmin}
	return s
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) RunMigrations(context.Context, *sql.DB) error     { return nil }
func (s *memStore) Accounts(dbx.DBTX) accounts.Repository             { return &memAccounts{s} }
func (s *memStore) Roles(dbx.DBTX) roles.Repository                   { return &memRoles{s} }
func (s *memStore) Tokens(dbx.DBTX) tokens.Repository                 { return &memTokens{s} }
func (s *memStore) Attempts(dbx.DBTX) attempts.Repository             { return &memAttempts{s} }
func (s *memStore) ExternalLogins(dbx.DBTX) externallogins.Repository { return &memLinks{s} }
func (s *memStore) Sessions(dbx.DBTX) sessions.Repository             { return &memSessions{s} }

func (s *memStore) account(t *testing.T, email string) models.Account {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == email {
			return a
		}
	}
	t.Fatalf("account %q not found", email)
	return models.Account{}
}

func (s *memStore) tokensFor(accountID int64, kind models.TokenKind) []models.CredentialToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CredentialToken
	for _, t := range s.tokens {
		if t.AccountID == accountID && t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

func (s *memStore) attemptLog() []models.LoginAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LoginAttempt(nil), s.attempts...)
}

func (s *memStore) activeSessions(accountID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ss := range s.sessions {
		if ss.AccountID == accountID && ss.IsActive {
			n++
		}
	}
	return n
}

type memAccounts struct{ s *memStore }

func (r *memAccounts) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, x := range r.s.accounts {
		if x.Email == a.Email {
			return nil, common.ErrEmailTaken
		}
	}
	a.ID = r.s.id()
	a.CreatedAt = testStart
	r.s.accounts[a.ID] = *a
	return a, nil
}

func (r *memAccounts) Update(_ context.Context, a *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.updateErr != nil {
		return r.s.updateErr
	}
	if _, ok := r.s.accounts[a.ID]; !ok {
		return common.ErrorNotFound
	}
	cp := *a
	cp.Roles = nil
	r.s.accounts[a.ID] = cp
	return nil
}

func (r *memAccounts) GetByID(_ context.Context, id int64) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &a, nil
}

func (r *memAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.Email == email {
			cp := a
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memAccounts) GetByIDForUpdate(ctx context.Context, id int64) (*models.Account, error) {
	return r.GetByID(ctx, id)
}

func (r *memAccounts) GetByEmailForUpdate(ctx context.Context, email string) (*models.Account, error) {
	return r.GetByEmail(ctx, email)
}

func (r *memAccounts) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

type memRoles struct{ s *memStore }

func (r *memRoles) GetByName(_ context.Context, name string) (*models.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[name]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &role, nil
}

func (r *memRoles) Assign(_ context.Context, accountID, roleID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.accountRoles[accountID] == nil {
		r.s.accountRoles[accountID] = map[int64]bool{}
	}
	if r.s.accountRoles[accountID][roleID] {
		return common.ErrRoleAlreadyAssigned
	}
	r.s.accountRoles[accountID][roleID] = true
	return nil
}

func (r *memRoles) Remove(_ context.Context, accountID, roleID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !r.s.accountRoles[accountID][roleID] {
		return common.ErrorNotFound
	}
	delete(r.s.accountRoles[accountID], roleID)
	return nil
}

func (r *memRoles) ListForAccount(_ context.Context, accountID int64) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var names []string
	for _, role := range r.s.roles {
		if r.s.accountRoles[accountID][role.ID] {
			names = append(names, role.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

type memTokens struct{ s *memStore }

func (r *memTokens) Create(_ context.Context, t *models.CredentialToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.tokenErr != nil {
		return r.s.tokenErr
	}
	if _, ok := r.s.tokens[t.Token]; ok {
		return common.ErrorAlreadyExists
	}
	t.ID = r.s.id()
	r.s.tokens[t.Token] = *t
	return nil
}

func (r *memTokens) FindForUpdate(_ context.Context, token string) (*models.CredentialToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r *memTokens) MarkUsed(_ context.Context, id int64, usedAt time.Time, ip string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, t := range r.s.tokens {
		if t.ID != id {
			continue
		}
		if t.IsUsed {
			return common.ErrTokenAlreadyUsed
		}
		t.IsUsed = true
		t.UsedAt = &usedAt
		t.IPAddress = ip
		r.s.tokens[k] = t
		return nil
	}
	return common.ErrTokenAlreadyUsed
}

func (r *memTokens) CountExpiredUnused(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.tokens {
		if !t.IsUsed && t.ExpiresAt.Before(now) {
			n++
		}
	}
	return n, nil
}

type memAttempts struct{ s *memStore }

func (r *memAttempts) Create(_ context.Context, a *models.LoginAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.attemptErr != nil {
		return r.s.attemptErr
	}
	a.ID = r.s.id()
	r.s.attempts = append(r.s.attempts, *a)
	return nil
}

func (r *memAttempts) ListByAccount(_ context.Context, accountID int64, limit int) ([]models.LoginAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.LoginAttempt
	for i := len(r.s.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		a := r.s.attempts[i]
		if a.AccountID != nil && *a.AccountID == accountID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memLinks struct{ s *memStore }

func (r *memLinks) Find(_ context.Context, provider, key string) (*models.ExternalLogin, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[provider+"|"+key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &l, nil
}

func (r *memLinks) Create(_ context.Context, l *models.ExternalLogin) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := l.Provider + "|" + l.ProviderKey
	if _, ok := r.s.links[k]; ok {
		return common.ErrorAlreadyExists
	}
	l.ID = r.s.id()
	r.s.links[k] = *l
	return nil
}

func (r *memLinks) ListByAccount(_ context.Context, accountID int64) ([]models.ExternalLogin, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.ExternalLogin
	for _, l := range r.s.links {
		if l.AccountID == accountID {
			out = append(out, l)
		}
	}
	return out, nil
}

type memSessions struct{ s *memStore }

func (r *memSessions) Create(_ context.Context, ss *models.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[ss.ID] = *ss
	return nil
}

func (r *memSessions) Get(_ context.Context, id string) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ss, ok := r.s.sessions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &ss, nil
}

func (r *memSessions) ListActiveForAccount(_ context.Context, accountID int64, now time.Time) ([]models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.sessionErr != nil {
		return nil, r.s.sessionErr
	}
	var out []models.Session
	for _, ss := range r.s.sessions {
		if ss.AccountID == accountID && ss.IsActive && ss.ExpiresAt.After(now) {
			out = append(out, ss)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityAt.After(out[j].LastActivityAt) })
	return out, nil
}

func (r *memSessions) Touch(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ss, ok := r.s.sessions[id]; ok && ss.IsActive {
		ss.LastActivityAt = at
		r.s.sessions[id] = ss
	}
	return nil
}

func (r *memSessions) Deactivate(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ss, ok := r.s.sessions[id]; ok {
		ss.IsActive = false
		r.s.sessions[id] = ss
	}
	return nil
}

func (r *memSessions) DeactivateForAccount(_ context.Context, accountID int64, exceptID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, ss := range r.s.sessions {
		if ss.AccountID == accountID && ss.IsActive && id != exceptID {
			ss.IsActive = false
			r.s.sessions[id] = ss
			n++
		}
	}
	return n, nil
}

func (r *memSessions) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, ss := range r.s.sessions {
		if ss.IsActive && !ss.ExpiresAt.After(now) {
			ss.IsActive = false
			r.s.sessions[id] = ss
			n++
		}
	}
	return n, nil
}

// recordingNotifier captures notification requests.
type recordingNotifier struct {
	mu            sync.Mutex
	confirmations []sentMessage
	resets        []sentMessage
	welcomes      []sentMessage
}

type sentMessage struct {
	Email, Token, Link, Name string
}

func (n *recordingNotifier) SendConfirmation(email, token, link string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations = append(n.confirmations, sentMessage{Email: email, Token: token, Link: link})
}

func (n *recordingNotifier) SendReset(email, token, link string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, sentMessage{Email: email, Token: token, Link: link})
}

func (n *recordingNotifier) SendWelcome(email, name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomes = append(n.welcomes, sentMessage{Email: email, Name: name})
}

func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type authFixture struct {
	svc      *AuthService
	store    *memStore
	notifier *recordingNotifier
	clock    *abtime.ManualTime
	db       *sql.DB
	hasher   cryptox.Hasher
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return cfg
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		store:    newMemStore(),
		notifier: &recordingNotifier{},
		clock:    abtime.NewManualAtTime(testStart),
		db:       newTxDB(t),
		hasher:   cryptox.NewBcryptHasher(4),
	}
	f.svc = NewAuthService(f.db, f.store, testConfig(), f.notifier, logging.Nop(),
		WithClock(f.clock), WithHasher(f.hasher))
	return f
}
