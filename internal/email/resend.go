package email

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	resend "github.com/resend/resend-go/v3"
)

// Resend tag values may only hold ASCII letters, digits, underscores and dashes.
var resendTagUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// ResendProvider sends through the Resend API client.
type ResendProvider struct {
	from   string
	client *resend.Client
}

func NewResendProvider(apiKey, from string, httpClient *http.Client) *ResendProvider {
	return &ResendProvider{
		from:   from,
		client: resend.NewCustomClient(httpClient, apiKey),
	}
}

func (r *ResendProvider) SendEmail(ctx context.Context, email *Email) error {
	if err := validate(email); err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
		ReplyTo: email.ReplyTo,
	}
	if email.Tag != "" {
		params.Tags = []resend.Tag{{Name: "category", Value: resendTagUnsafe.ReplaceAllString(email.Tag, "_")}}
	}

	sent, err := r.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("resend rejected %s email: %w", tagOrDefault(email.Tag), err)
	}
	if sent == nil || sent.Id == "" {
		return fmt.Errorf("resend accepted %s email without a message id", tagOrDefault(email.Tag))
	}
	return nil
}

// ValidateAPIKey makes an authenticated read against the account.
func (r *ResendProvider) ValidateAPIKey(ctx context.Context) error {
	if _, err := r.client.ApiKeys.ListWithContext(ctx); err != nil {
		return fmt.Errorf("invalid API key: %w", err)
	}
	return nil
}

func tagOrDefault(tag string) string {
	if tag == "" {
		return "untagged"
	}
	return tag
}
