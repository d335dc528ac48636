package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Column widths of caller-supplied text. Values longer than these are cut
// before they are stored.
const (
	MaxEmailLength         = 256
	MaxOriginLength        = 45
	MaxUserAgentLength     = 500
	MaxFailureReasonLength = 200
)

// LoginAttempt is an immutable audit record of one login attempt.
type LoginAttempt struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	AccountID     *int64    `json:"account_id,omitempty"`
	IsSuccessful  bool      `json:"is_successful"`
	IPAddress     string    `json:"ip_address"`
	UserAgent     string    `json:"user_agent"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Fit returns the attempt with every text field cut to its column width.
func (a LoginAttempt) Fit() LoginAttempt {
	a.Email = Truncate(a.Email, MaxEmailLength)
	a.IPAddress = Truncate(a.IPAddress, MaxOriginLength)
	a.UserAgent = Truncate(a.UserAgent, MaxUserAgentLength)
	a.FailureReason = Truncate(a.FailureReason, MaxFailureReasonLength)
	return a
}

// Truncate cuts s to at most n characters. Invalid UTF-8 is replaced so the
// result is always storable.
func Truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "�")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
