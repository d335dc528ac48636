package models

import "time"

// Session is a server-side record backing an issued session token.
type Session struct {
	ID             string
	AccountID      int64
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	IsActive       bool
}
