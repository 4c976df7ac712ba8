// Package email sends transactional mail through Resend, Postmark or Mailgun.
package email

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type Provider interface {
	SendEmail(ctx context.Context, email *Email) error
	ValidateAPIKey(ctx context.Context) error
}

type Email struct {
	To      string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
	// Tag groups messages in the provider dashboard, e.g. "receipt".
	Tag string
}

type Config struct {
	Provider string
	APIKey   string
	From     string
	Domain   string // For Mailgun
	BaseURL  string // Overrides the provider API endpoint
}

const defaultTimeout = 30 * time.Second

func NewProvider(config Config, httpClient *http.Client) (Provider, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	switch config.Provider {
	case "postmark":
		return NewPostmarkProvider(config.APIKey, config.From, withBaseURL(config.BaseURL, postmarkBaseURL), httpClient), nil
	case "mailgun":
		if config.Domain == "" {
			return nil, fmt.Errorf("mailgun requires a sending domain")
		}
		return NewMailgunProvider(config.APIKey, config.Domain, config.From, withBaseURL(config.BaseURL, mailgunBaseURL), httpClient), nil
	case "resend":
		return NewResendProvider(config.APIKey, config.From, httpClient), nil
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be either 'postmark', 'mailgun', or 'resend'")
	}
}

func withBaseURL(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

func validate(email *Email) error {
	if email == nil {
		return fmt.Errorf("email is required")
	}
	if email.To == "" {
		return fmt.Errorf("email recipient is required")
	}
	if email.HTML == "" && email.Text == "" {
		return fmt.Errorf("email body is empty")
	}
	return nil
}
