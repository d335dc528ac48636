package services

import (
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// LockoutPolicy decides login eligibility from an account's failure counter
// and lock timestamp. It only mutates the account passed in; persisting is
// the caller's job.
type LockoutPolicy struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
}

// Check reports whether the account is locked at now and for how long. An
// expired lock does not block, even though it stays set until the next
// successful login or password reset.
func (p LockoutPolicy) Check(a *models.Account, now time.Time) (bool, time.Duration) {
	if a.LockedOutUntil != nil && a.LockedOutUntil.After(now) {
		return true, a.LockedOutUntil.Sub(now)
	}
	return false, 0
}

// RegisterFailure counts a failed password and locks the account once the
// counter reaches the threshold. It returns true when this failure locked it.
func (p LockoutPolicy) RegisterFailure(a *models.Account, now time.Time) bool {
	a.FailedLoginAttempts++
	if p.MaxFailedAttempts > 0 && a.FailedLoginAttempts >= p.MaxFailedAttempts {
		until := now.Add(p.LockoutDuration)
		a.LockedOutUntil = &until
		return true
	}
	return false
}

// RegisterSuccess resets the counter and clears the lock.
func (p LockoutPolicy) RegisterSuccess(a *models.Account) {
	a.FailedLoginAttempts = 0
	a.LockedOutUntil = nil
}
