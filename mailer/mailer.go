// Package mailer delivers transactional email such as verification links.
package mailer

import (
	"context"
	"fmt"
	"html"
)

// Message is a single transactional email
type Message struct {
	To      string
	Subject string
	HTML    string
	// Tags carries machine readable context, e.g. the verification token.
	Tags map[string]string
}

// Mailer sends messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Noop discards every message
type Noop struct{}

func (Noop) Send(context.Context, Message) error { return nil }

// VerificationMessage builds the email carrying the confirmation link
func VerificationMessage(to, link, token string) Message {
	return Message{
		To:      to,
		Subject: "Confirm your email",
		HTML: fmt.Sprintf(
			`<p>Welcome! Confirm your email address to finish setting up your account.</p><p><a href="%s">Confirm email</a></p>`,
			html.EscapeString(link),
		),
		Tags: map[string]string{
			"kind":  "verification",
			"token": token,
		},
	}
}
