package auth

import (
	"context"
	"time"
)

// MessageKind names a notification template.
type MessageKind string

const (
	MessageActivation    MessageKind = "activation"
	MessagePasswordReset MessageKind = "password_reset"
	MessageEmailChanged  MessageKind = "email_changed"
)

// Message is a notification to an account holder.
type Message struct {
	Kind      MessageKind
	To        string
	Name      string
	Link      string        // activation or reset link, empty for email_changed
	ExpiresIn time.Duration // validity of Link
	NewEmail  string        // set for email_changed
}

// Mailer delivers notifications. An error means the message was not sent.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
