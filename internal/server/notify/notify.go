// Package notify is the notification gateway. The engine requests messages
// through Notifier without waiting for delivery; a Dispatcher hands them to
// a Gateway (log output or an S3 outbox read by the mail sender) in the
// background.
package notify

import (
	"context"
	"time"
)

// Notifier is what the authentication engine calls. Methods never block on
// delivery and report nothing back.
type Notifier interface {
	SendConfirmation(email, token, link string)
	SendReset(email, token, link string)
	SendWelcome(email, name string)
}

// Kind names a message template.
type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindReset        Kind = "reset"
	KindWelcome      Kind = "welcome"
)

// Message is a single notification request.
type Message struct {
	Kind      Kind      `json:"kind"`
	To        string    `json:"to"`
	Name      string    `json:"name,omitempty"`
	Token     string    `json:"token,omitempty"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Gateway delivers one message.
type Gateway interface {
	Deliver(ctx context.Context, m Message) error
}
