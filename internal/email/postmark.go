package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const postmarkBaseURL = "https://api.postmarkapp.com"

// PostmarkProvider implements the Provider interface for Postmark.
type PostmarkProvider struct {
	apiKey  string
	from    string
	baseURL string
	client  *http.Client
}

type postmarkResponse struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
}

func NewPostmarkProvider(apiKey, from, baseURL string, client *http.Client) *PostmarkProvider {
	return &PostmarkProvider{apiKey: apiKey, from: from, baseURL: baseURL, client: client}
}

type postmarkEmail struct {
	From          string `json:"From"`
	To            string `json:"To"`
	ReplyTo       string `json:"ReplyTo,omitempty"`
	Subject       string `json:"Subject"`
	TextBody      string `json:"TextBody,omitempty"`
	HtmlBody      string `json:"HtmlBody,omitempty"`
	MessageStream string `json:"MessageStream"`
	Tag           string `json:"Tag,omitempty"`
}

func (p *PostmarkProvider) SendEmail(ctx context.Context, email *Email) error {
	if err := validate(email); err != nil {
		return err
	}

	payload, err := json.Marshal(postmarkEmail{
		From:          p.from,
		To:            email.To,
		ReplyTo:       email.ReplyTo,
		Subject:       email.Subject,
		TextBody:      email.Text,
		HtmlBody:      email.HTML,
		MessageStream: "outbound",
		Tag:           email.Tag,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/email", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	p.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	body, err := do(p.client, req, "postmark", describePostmarkError)
	if err != nil {
		return err
	}

	var result postmarkResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse postmark response: %w", err)
	}
	if result.ErrorCode != 0 {
		return fmt.Errorf("postmark error (%d): %s", result.ErrorCode, result.Message)
	}
	return nil
}

func (p *PostmarkProvider) ValidateAPIKey(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/server", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	p.authorize(req)

	if _, err := do(p.client, req, "postmark", describePostmarkError); err != nil {
		return fmt.Errorf("invalid API key: %w", err)
	}
	return nil
}

func (p *PostmarkProvider) authorize(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", p.apiKey)
}

func describePostmarkError(body []byte) string {
	var resp postmarkResponse
	if json.Unmarshal(body, &resp) == nil && resp.ErrorCode != 0 {
		return fmt.Sprintf("(%d) %s", resp.ErrorCode, resp.Message)
	}
	return ""
}
