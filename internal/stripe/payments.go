// Package stripe charges customers through Stripe PaymentIntents and
// validates Stripe webhooks.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	stripeapi "github.com/stripe/stripe-go/v84"
)

// FailureKind classifies why a charge did not succeed.
type FailureKind string

const (
	FailureAmount         FailureKind = "invalid_amount"
	FailureDeclined       FailureKind = "declined"
	FailureInvalidToken   FailureKind = "invalid_token"
	FailureRequiresAction FailureKind = "requires_action"
	FailureTimeout        FailureKind = "timeout"
	FailureUnavailable    FailureKind = "unavailable"
)

// MinimumCharge is the smallest CAD amount Stripe will confirm. Anything
// lower is refused with amount_too_small.
var MinimumCharge = decimal.New(50, -2)

// ChargeError is returned for every unsuccessful charge.
type ChargeError struct {
	Kind    FailureKind
	Code    string
	Message string
	Err     error
}

func (e *ChargeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("charge %s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("charge %s: %s", e.Kind, e.Message)
}

func (e *ChargeError) Unwrap() error {
	return e.Err
}

// Reason is the short machine-readable reason stored on failed orders.
func (e *ChargeError) Reason() string {
	if e.Code != "" {
		return string(e.Kind) + ":" + e.Code
	}
	return string(e.Kind)
}

type ChargeRequest struct {
	OrderID      uuid.UUID
	Amount       decimal.Decimal
	Currency     string
	PaymentToken string
	Description  string
	ReceiptEmail string
}

type Charge struct {
	PaymentID   string
	AmountCents int64
	Currency    string
}

// PaymentClient confirms a PaymentIntent synchronously for a tokenized
// payment method.
type PaymentClient struct {
	client *stripeapi.Client
}

type ClientOption func(*stripeapi.BackendConfig)

// WithHTTPClient routes API calls through httpClient.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(cfg *stripeapi.BackendConfig) {
		cfg.HTTPClient = httpClient
	}
}

// WithBaseURL points the client at a different API host.
func WithBaseURL(url string) ClientOption {
	return func(cfg *stripeapi.BackendConfig) {
		cfg.URL = stripeapi.String(url)
	}
}

func NewPaymentClient(secretKey string, opts ...ClientOption) *PaymentClient {
	cfg := &stripeapi.BackendConfig{
		MaxNetworkRetries: stripeapi.Int64(1),
		LeveledLogger:     &stripeapi.LeveledLogger{Level: stripeapi.LevelError},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &PaymentClient{
		client: stripeapi.NewClient(secretKey, stripeapi.WithBackends(stripeapi.NewBackendsWithConfig(cfg))),
	}
}

// Charge creates and confirms a PaymentIntent for exactly req.Amount. The
// order id is the idempotency key, so a retried request never charges twice.
func (c *PaymentClient) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if strings.TrimSpace(req.PaymentToken) == "" {
		return nil, &ChargeError{Kind: FailureInvalidToken, Message: "payment token is required"}
	}

	cents, err := ToCents(req.Amount)
	if err != nil {
		return nil, err
	}
	if req.Amount.LessThan(MinimumCharge) {
		return nil, &ChargeError{
			Kind:    FailureAmount,
			Code:    "amount_too_small",
			Message: fmt.Sprintf("amount %s is below the %s minimum", req.Amount.StringFixed(2), MinimumCharge.StringFixed(2)),
		}
	}
	currency := strings.ToLower(req.Currency)

	params := &stripeapi.PaymentIntentCreateParams{
		Amount:        stripeapi.Int64(cents),
		Currency:      stripeapi.String(currency),
		PaymentMethod: stripeapi.String(req.PaymentToken),
		Confirm:       stripeapi.Bool(true),
		AutomaticPaymentMethods: &stripeapi.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled:        stripeapi.Bool(true),
			AllowRedirects: stripeapi.String("never"),
		},
		Metadata: map[string]string{
			"order_id": req.OrderID.String(),
		},
	}
	if req.Description != "" {
		params.Description = stripeapi.String(req.Description)
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripeapi.String(req.ReceiptEmail)
	}
	params.SetIdempotencyKey("order-capture-" + req.OrderID.String())

	intent, err := c.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, classifyError(ctx, err)
	}

	if intent.Status != stripeapi.PaymentIntentStatusSucceeded {
		return nil, &ChargeError{
			Kind:    FailureRequiresAction,
			Code:    string(intent.Status),
			Message: "payment was not completed",
		}
	}

	return &Charge{PaymentID: intent.ID, AmountCents: intent.Amount, Currency: strings.ToUpper(string(intent.Currency))}, nil
}

func classifyError(ctx context.Context, err error) *ChargeError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ChargeError{Kind: FailureTimeout, Message: "payment gateway timed out", Err: err}
	}

	var apiErr *stripeapi.Error
	if errors.As(err, &apiErr) {
		code := string(apiErr.Code)
		if apiErr.DeclineCode != "" {
			code = string(apiErr.DeclineCode)
		}
		switch {
		case string(apiErr.Code) == "amount_too_small" || string(apiErr.Code) == "amount_too_large":
			return &ChargeError{Kind: FailureAmount, Code: code, Message: apiErr.Msg, Err: err}
		case string(apiErr.Type) == "card_error":
			return &ChargeError{Kind: FailureDeclined, Code: code, Message: apiErr.Msg, Err: err}
		case string(apiErr.Code) == "resource_missing" || string(apiErr.Code) == "payment_method_invalid":
			return &ChargeError{Kind: FailureInvalidToken, Code: code, Message: apiErr.Msg, Err: err}
		case string(apiErr.Type) == "invalid_request_error":
			return &ChargeError{Kind: FailureInvalidToken, Code: code, Message: apiErr.Msg, Err: err}
		}
		return &ChargeError{Kind: FailureUnavailable, Code: code, Message: apiErr.Msg, Err: err}
	}

	return &ChargeError{Kind: FailureUnavailable, Message: "payment gateway unavailable", Err: err}
}

// ToCents converts an amount with at most two decimal places to minor units.
func ToCents(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative: %s", amount)
	}
	cents := amount.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("amount has fractional cents: %s", amount)
	}
	return cents.IntPart(), nil
}
