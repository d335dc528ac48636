package services

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// Result is the caller-facing outcome of an engine operation.
type Result struct {
	Success bool
	Message string
	Account *models.Account
}

// NewResult builds a Result from an operation's return values. On success
// msg is used as is; on failure the message comes from Describe.
func NewResult(msg string, a *models.Account, err error) Result {
	if err != nil {
		return Result{Message: Describe(err)}
	}
	return Result{Success: true, Message: msg, Account: a}
}

// Describe turns an engine error into a message safe to show to the end
// user. Unknown and internal errors get the same generic text.
func Describe(err error) string {
	var (
		blocked *common.BlockedError
		locked  *common.LockedError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &blocked):
		if blocked.Reason == "" {
			return "Your account has been blocked."
		}
		return "Your account has been blocked. Reason: " + blocked.Reason
	case errors.As(err, &locked):
		return fmt.Sprintf("Too many failed login attempts. Please try again in %d minute(s).", locked.RemainingMinutes())
	case errors.Is(err, common.ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, common.ErrEmailNotConfirmed):
		return "Please confirm your email address before logging in."
	case errors.Is(err, common.ErrEmailTaken):
		return "An account with this email already exists."
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		return "Invalid or expired token."
	case errors.Is(err, common.ErrorUnauthorized):
		return "Authentication required."
	case errors.Is(err, common.ErrorValidation):
		return err.Error()
	}
	return "An error occurred. Please try again later."
}
