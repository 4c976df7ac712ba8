package email

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const mailgunBaseURL = "https://api.mailgun.net/v3"

// MailgunProvider implements the Provider interface for Mailgun.
type MailgunProvider struct {
	apiKey  string
	from    string
	domain  string
	baseURL string
	client  *http.Client
}

func NewMailgunProvider(apiKey, domain, from, baseURL string, client *http.Client) *MailgunProvider {
	return &MailgunProvider{apiKey: apiKey, domain: domain, from: from, baseURL: baseURL, client: client}
}

func (m *MailgunProvider) SendEmail(ctx context.Context, email *Email) error {
	if err := validate(email); err != nil {
		return err
	}

	data := url.Values{}
	data.Set("from", m.from)
	data.Set("to", email.To)
	data.Set("subject", email.Subject)
	if email.ReplyTo != "" {
		data.Set("h:Reply-To", email.ReplyTo)
	}
	if email.Text != "" {
		data.Set("text", email.Text)
	}
	if email.HTML != "" {
		data.Set("html", email.HTML)
	}
	if email.Tag != "" {
		data.Set("o:tag", email.Tag)
	}

	apiURL := fmt.Sprintf("%s/%s/messages", m.baseURL, m.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", m.apiKey)

	_, err = do(m.client, req, "mailgun", describeMailgunError)
	return err
}

func (m *MailgunProvider) ValidateAPIKey(ctx context.Context) error {
	apiURL := fmt.Sprintf("%s/domains/%s", m.baseURL, m.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth("api", m.apiKey)

	if _, err := do(m.client, req, "mailgun", describeMailgunError); err != nil {
		return fmt.Errorf("invalid API key: %w", err)
	}
	return nil
}

func describeMailgunError(body []byte) string {
	var resp struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &resp) == nil {
		return resp.Message
	}
	return ""
}
