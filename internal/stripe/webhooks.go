package stripe

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	stripeapi "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

const maxWebhookBytes = 64 << 10

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

func ReadWebhookEvent(r *http.Request, secret string) (*stripeapi.Event, error) {
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		return nil, fmt.Errorf("missing stripe signature header")
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook signature validation failed: %w", err)
	}

	return &event, nil
}

// PaymentIntentEvent is the part of a payment_intent.* event needed to
// reconcile it with an order.
type PaymentIntentEvent struct {
	PaymentID     string
	OrderID       uuid.UUID
	AmountCents   int64
	Currency      string
	FailureCode   string
	FailureReason string
}

func DecodePaymentIntentEvent(event *stripeapi.Event) (*PaymentIntentEvent, error) {
	if event == nil || event.Data == nil {
		return nil, fmt.Errorf("event has no data")
	}

	var intent stripeapi.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("failed to decode payment intent: %w", err)
	}

	orderID, err := uuid.Parse(intent.Metadata["order_id"])
	if err != nil {
		return nil, fmt.Errorf("payment intent %s has no order id: %w", intent.ID, err)
	}

	decoded := &PaymentIntentEvent{
		PaymentID:   intent.ID,
		OrderID:     orderID,
		AmountCents: intent.Amount,
		Currency:    string(intent.Currency),
	}
	if intent.LastPaymentError != nil {
		decoded.FailureCode = string(intent.LastPaymentError.Code)
		if intent.LastPaymentError.DeclineCode != "" {
			decoded.FailureCode = string(intent.LastPaymentError.DeclineCode)
		}
		decoded.FailureReason = intent.LastPaymentError.Msg
	}
	return decoded, nil
}
