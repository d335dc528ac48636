package models

import "time"

// ExternalLogin binds a provider subject to a local account.
type ExternalLogin struct {
	ID                  int64
	AccountID           int64
	Provider            string
	ProviderKey         string
	ProviderDisplayName string
	CreatedAt           time.Time
}
