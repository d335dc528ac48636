// Package models contains the persistent records of the credential store.
package models

import (
	"fmt"
	"time"
)

// Account is a registered or externally linked principal.
type Account struct {
	ID                  int64      `json:"id"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	FirstName           string     `json:"first_name,omitempty"`
	LastName            string     `json:"last_name,omitempty"`
	EmailConfirmed      bool       `json:"email_confirmed"`
	EmailConfirmedAt    *time.Time `json:"email_confirmed_at,omitempty"`
	IsActive            bool       `json:"is_active"`
	IsBlocked           bool       `json:"is_blocked"`
	BlockedReason       string     `json:"blocked_reason,omitempty"`
	BlockedAt           *time.Time `json:"blocked_at,omitempty"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	LockedOutUntil      *time.Time `json:"locked_out_until,omitempty"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP         string     `json:"last_login_ip,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"`

	// Roles is populated by the engine on login; it is not a column.
	Roles []string `json:"roles,omitempty"`
	// Providers lists linked external identity providers. Only Profile fills it.
	Providers []string `json:"providers,omitempty"`
}

// DisplayName returns "First Last", falling back to the email.
func (a *Account) DisplayName() string {
	switch {
	case a.FirstName != "" && a.LastName != "":
		return a.FirstName + " " + a.LastName
	case a.FirstName != "":
		return a.FirstName
	case a.LastName != "":
		return a.LastName
	}
	return a.Email
}

// String never includes the password hash, so accounts are safe to log.
func (a *Account) String() string {
	return fmt.Sprintf("account{id=%d email=%s}", a.ID, a.Email)
}
