package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminFixture(t *testing.T) (*AdminService, *authFixture) {
	t.Helper()
	f := newAuthFixture(t)
	admin := NewAdminService(f.db, f.store, f.hasher, DefaultPolicy(), f.clock, logging.Nop())
	return admin, f
}

func TestAdminService_BlockAndUnblock(t *testing.T) {
	admin, f := newAdminFixture(t)
	a := f.registerConfirmed(t, aliceEmail, alicePassword)
	f.store.sessions["s1"] = models.Session{ID: "s1", AccountID: a.ID, IsActive: true}
	ctx := context.Background()

	require.NoError(t, admin.Block(ctx, a.ID, "fraud"))
	stored := f.store.account(t, aliceEmail)
	assert.True(t, stored.IsBlocked)
	assert.Equal(t, "fraud", stored.BlockedReason)
	require.NotNil(t, stored.BlockedAt)
	assert.Equal(t, testStart, *stored.BlockedAt)
	assert.Equal(t, 0, f.store.activeSessions(a.ID))

	assert.ErrorIs(t, admin.Block(ctx, a.ID, "again"), common.ErrAlreadyBlocked)

	_, err := f.login(aliceEmail, alicePassword)
	assert.ErrorIs(t, err, common.ErrAccountBlocked)

	require.NoError(t, admin.Unblock(ctx, a.ID))
	stored = f.store.account(t, aliceEmail)
	assert.False(t, stored.IsBlocked)
	assert.Empty(t, stored.BlockedReason)
	assert.Nil(t, stored.BlockedAt)
	assert.ErrorIs(t, admin.Unblock(ctx, a.ID), common.ErrNotBlocked)

	_, err = f.login(aliceEmail, alicePassword)
	assert.NoError(t, err)

	assert.ErrorIs(t, admin.Block(ctx, 999, "x"), common.ErrorNotFound)
}

func TestAdminService_ConfirmEmail(t *testing.T) {
	admin, f := newAdminFixture(t)
	a := f.register(t, aliceEmail, alicePassword)

	require.NoError(t, admin.ConfirmEmail(context.Background(), a.ID))
	assert.True(t, f.store.account(t, aliceEmail).EmailConfirmed)
	assert.ErrorIs(t, admin.ConfirmEmail(context.Background(), a.ID), common.ErrAlreadyConfirmed)
}

func TestAdminService_SetPassword(t *testing.T) {
	admin, f := newAdminFixture(t)
	a := f.registerConfirmed(t, aliceEmail, alicePassword)
	for i := 0; i < 5; i++ {
		_, _ = f.login(aliceEmail, "nope")
	}

	assert.ErrorIs(t, admin.SetPassword(context.Background(), a.ID, "short"), common.ErrorValidation)

	require.NoError(t, admin.SetPassword(context.Background(), a.ID, "plain-but-long"))
	stored := f.store.account(t, aliceEmail)
	assert.Equal(t, 0, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockedOutUntil)

	_, err := f.login(aliceEmail, "plain-but-long")
	assert.NoError(t, err)
}

func TestAdminService_Roles(t *testing.T) {
	admin, f := newAdminFixture(t)
	a := f.register(t, aliceEmail, alicePassword)
	ctx := context.Background()

	require.NoError(t, admin.AssignRole(ctx, a.ID, models.RoleAdmin))
	assert.ErrorIs(t, admin.AssignRole(ctx, a.ID, models.RoleAdmin), common.ErrRoleAlreadyAssigned)
	assert.ErrorIs(t, admin.AssignRole(ctx, a.ID, "superuser"), common.ErrorNotFound)
	assert.ErrorIs(t, admin.AssignRole(ctx, 999, models.RoleAdmin), common.ErrorNotFound)

	profile, err := f.svc.Profile(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleAdmin, models.RoleMember}, profile.Roles)

	require.NoError(t, admin.RemoveRole(ctx, a.ID, models.RoleAdmin))
	assert.ErrorIs(t, admin.RemoveRole(ctx, a.ID, models.RoleAdmin), common.ErrorNotFound)
}

func TestAdminService_LoginHistory(t *testing.T) {
	admin, f := newAdminFixture(t)
	a := f.registerConfirmed(t, aliceEmail, alicePassword)

	_, _ = f.login(aliceEmail, "nope")
	f.clock.Advance(time.Minute)
	_, _ = f.login(aliceEmail, alicePassword)

	items, err := admin.LoginHistory(context.Background(), a.ID, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].IsSuccessful)
	assert.False(t, items[1].IsSuccessful)

	items, err = admin.LoginHistory(context.Background(), a.ID, 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = admin.LoginHistory(context.Background(), 999, 10)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
