// Package services contains the credential engine: registration, login with
// lockout, single-use email confirmation and password reset tokens, external
// identity linking, sessions, administration and maintenance.
package services

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

const (
	confirmEmailPath  = "/auth/confirm-email"
	resetPasswordPath = "/auth/reset-password"
)

// Policy groups the tunable constants of the engine.
type Policy struct {
	Lockout              LockoutPolicy
	ConfirmationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
	DefaultRole          string
	PublicBaseURL        string
}

// DefaultPolicy returns 5 attempts / 15 minutes lockout, 24h confirmation
// and 1h reset tokens.
func DefaultPolicy() Policy {
	return Policy{
		Lockout: LockoutPolicy{
			MaxFailedAttempts: 5,
			LockoutDuration:   15 * time.Minute,
		},
		ConfirmationTokenTTL: 24 * time.Hour,
		ResetTokenTTL:        time.Hour,
		DefaultRole:          models.RoleMember,
		PublicBaseURL:        "http://localhost:8080",
	}
}

// PolicyFromConfig takes every non-zero setting from cfg and keeps the
// defaults for the rest.
func PolicyFromConfig(cfg *config.Config) Policy {
	p := DefaultPolicy()
	if cfg.MaxFailedAttempts > 0 {
		p.Lockout.MaxFailedAttempts = cfg.MaxFailedAttempts
	}
	if cfg.LockoutDuration > 0 {
		p.Lockout.LockoutDuration = cfg.LockoutDuration
	}
	if cfg.ConfirmationTokenTTL > 0 {
		p.ConfirmationTokenTTL = cfg.ConfirmationTokenTTL
	}
	if cfg.ResetTokenTTL > 0 {
		p.ResetTokenTTL = cfg.ResetTokenTTL
	}
	if cfg.DefaultRole != "" {
		p.DefaultRole = cfg.DefaultRole
	}
	if cfg.PublicBaseURL != "" {
		p.PublicBaseURL = cfg.PublicBaseURL
	}
	return p
}

func (p Policy) link(path, token string) string {
	return strings.TrimRight(p.PublicBaseURL, "/") + path + "?token=" + token
}
