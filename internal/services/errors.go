package services

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/triplebarrelracing/storefront/internal/inventory"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrOutOfStock         = inventory.ErrOutOfStock
	ErrAlreadyResolved    = errors.New("order already resolved")
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRetryLater asks the caller (usually a webhook sender) to redeliver.
	ErrRetryLater = errors.New("operation in progress, retry later")
)

// ValidationError is a rejected input field. The message is safe to show
// to the client.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// PaymentError is a charge the gateway refused or could not complete.
type PaymentError struct {
	Code   string
	Reason string
	Err    error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment failed (%s): %s", e.Code, e.Reason)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// ReconciliationGap is a successful charge whose order could not be
// completed. It is always alerted and is never refunded automatically.
type ReconciliationGap struct {
	OrderID   uuid.UUID
	PaymentID string
	Amount    decimal.Decimal
	Currency  string
	Product   string
	Size      string
	Cause     error
}

func (g *ReconciliationGap) Error() string {
	return fmt.Sprintf("reconciliation gap for order %s (payment %s, %s %s): %v",
		g.OrderID, g.PaymentID, g.Amount.StringFixed(2), g.Currency, g.Cause)
}

func (g *ReconciliationGap) Unwrap() error {
	return g.Cause
}

// Note is the operator-facing text stored on the order.
func (g *ReconciliationGap) Note() string {
	return fmt.Sprintf("charged %s %s under payment %s but could not complete the order: %v; refund or fulfil manually",
		g.Amount.StringFixed(2), g.Currency, g.PaymentID, g.Cause)
}

// fromValidator converts the first failing struct field to a ValidationError.
func fromValidator(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return invalid(field, "is required")
	case "email":
		return invalid(field, "must be a valid email address")
	case "url":
		return invalid(field, "must be a valid URL")
	case "max":
		return invalid(field, fmt.Sprintf("must be at most %s characters", fe.Param()))
	case "oneof":
		return invalid(field, fmt.Sprintf("must be one of: %s", fe.Param()))
	case "gte":
		return invalid(field, fmt.Sprintf("must be at least %s", fe.Param()))
	default:
		return invalid(field, "is invalid")
	}
}
