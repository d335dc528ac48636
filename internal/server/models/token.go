package models

import "time"

// TokenKind tells confirmation and password-reset tokens apart.
type TokenKind string

const (
	TokenKindConfirmation TokenKind = "confirmation"
	TokenKindReset        TokenKind = "reset"
)

// CredentialToken is a single-use, time-bounded secret delivered by email.
type CredentialToken struct {
	ID        int64
	AccountID int64
	Token     string
	Kind      TokenKind
	CreatedAt time.Time
	ExpiresAt time.Time
	IsUsed    bool
	UsedAt    *time.Time
	IPAddress string
}

// IsValid reports whether the token can still be consumed at now.
func (t *CredentialToken) IsValid(now time.Time) bool {
	return !t.IsUsed && now.Before(t.ExpiresAt)
}
