package mailer

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/resendlabs/resend-go"
)

// Resend delivers through the Resend API
type Resend struct {
	client   *resend.Client
	from     string
	fromName string
}

// ResendOption customizes a Resend mailer
type ResendOption func(*Resend)

// WithFromName sets the sender display name
func WithFromName(name string) ResendOption {
	return func(r *Resend) {
		r.fromName = name
	}
}

// NewResend returns a Resend mailer sending from the from address
func NewResend(apiKey, from string, opts ...ResendOption) (*Resend, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, goerrors.New("resend api key is required", goerrors.CategoryBadInput).
			WithTextCode("MAILER_MISCONFIGURED")
	}
	if strings.TrimSpace(from) == "" {
		from = "noreply@localhost"
	}

	r := &Resend{
		client: resend.NewClient(apiKey),
		from:   from,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Send delivers msg. ctx is honored before the call only, the Resend
// client does not take a context.
func (r *Resend) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := &resend.SendEmailRequest{
		From:    r.sender(),
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}

	if _, err := r.client.Emails.Send(req); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send email").
			WithMetadata(map[string]any{
				"to":      msg.To,
				"subject": msg.Subject,
			})
	}
	return nil
}

func (r *Resend) sender() string {
	if r.fromName == "" {
		return r.from
	}
	return fmt.Sprintf("%s <%s>", r.fromName, r.from)
}
