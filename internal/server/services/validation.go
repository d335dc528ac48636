package services

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/credkeeper/internal/common"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores input past 72 bytes
	MaxPasswordBytes = 72
	MaxEmailLength   = 256
	MaxNameLength    = 100

	passwordSpecials = "@$!%*?&"
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrorValidation, fmt.Sprintf(format, args...))
}

// ValidateEmail accepts a bare address such as "alice@example.com".
func ValidateEmail(email string) error {
	if email == "" {
		return validationError("email is required")
	}
	if len(email) > MaxEmailLength {
		return validationError("email must be at most %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return validationError("invalid email address")
	}
	return nil
}

// ValidatePasswordLength enforces only the length bounds.
func ValidatePasswordLength(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return validationError("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return validationError("password must be at most %d bytes", MaxPasswordBytes)
	}
	return nil
}

// ValidatePasswordStrength requires the length bounds plus an uppercase
// letter, a lowercase letter, a digit and one of @$!%*?&.
func ValidatePasswordStrength(password string) error {
	if err := ValidatePasswordLength(password); err != nil {
		return err
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return validationError("password must contain uppercase, lowercase, digit and special character (%s)", passwordSpecials)
	}
	return nil
}

// ValidateRegistration checks a registration request before it reaches the
// engine.
func ValidateRegistration(in RegisterInput) error {
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	if err := ValidatePasswordStrength(in.Password); err != nil {
		return err
	}
	if len(in.FirstName) > MaxNameLength || len(in.LastName) > MaxNameLength {
		return validationError("names must be at most %d characters", MaxNameLength)
	}
	return nil
}

// ValidateExternalLogin requires the provider and its subject key. The email
// is optional here; it is only needed when no account can be matched.
func ValidateExternalLogin(in ExternalLoginInput) error {
	if strings.TrimSpace(in.Provider) == "" || strings.TrimSpace(in.ProviderKey) == "" {
		return validationError("provider and provider key are required")
	}
	if in.Email != "" {
		return ValidateEmail(in.Email)
	}
	return nil
}
