package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the payment lifecycle of an order. Once an order leaves
// StatusPending it never changes payment status again.
type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusPaid    PaymentStatus = "paid"
	StatusFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) Terminal() bool {
	return s == StatusPaid || s == StatusFailed
}

// FulfillmentStatus is tracked separately from payment and is only moved by staff.
type FulfillmentStatus string

const (
	FulfillmentUnfulfilled FulfillmentStatus = "unfulfilled"
	FulfillmentProcessing  FulfillmentStatus = "processing"
	FulfillmentShipped     FulfillmentStatus = "shipped"
	FulfillmentCompleted   FulfillmentStatus = "completed"
	FulfillmentCancelled   FulfillmentStatus = "cancelled"
)

var fulfillmentStatuses = map[FulfillmentStatus]struct{}{
	FulfillmentUnfulfilled: {},
	FulfillmentProcessing:  {},
	FulfillmentShipped:     {},
	FulfillmentCompleted:   {},
	FulfillmentCancelled:   {},
}

func (s FulfillmentStatus) Valid() bool {
	_, ok := fulfillmentStatuses[s]
	return ok
}

const CurrencyCAD = "CAD"

// LineItem is the purchased product as it was priced at order creation.
// UnitPrice is never recomputed from the live catalog.
type LineItem struct {
	ProductID       uuid.UUID       `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Size            string          `json:"size,omitempty"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	BasePrice       decimal.Decimal `json:"base_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountSource  string          `json:"discount_source"`
}

func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type Order struct {
	ID                 uuid.UUID         `json:"id"`
	Contact            `json:"customer"`
	Item               LineItem          `json:"item"`
	Currency           string            `json:"currency"`
	SaleVersion        int64             `json:"sale_version"`
	Status             PaymentStatus     `json:"status"`
	FulfillmentStatus  FulfillmentStatus `json:"fulfillment_status"`
	PaymentID          string            `json:"payment_id,omitempty"`
	FailureReason      string            `json:"failure_reason,omitempty"`
	ReconciliationNote string            `json:"reconciliation_note,omitempty"`
	CaptureStartedAt   time.Time         `json:"-"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	PaidAt             time.Time         `json:"paid_at,omitzero"`
	FailedAt           time.Time         `json:"failed_at,omitzero"`
}

func (o *Order) Claimed() bool {
	return o != nil && !o.CaptureStartedAt.IsZero()
}

func (o *Order) Amount() decimal.Decimal {
	return o.Item.Total()
}

// PaymentFailure describes why an order moved to StatusFailed.
type PaymentFailure struct {
	Reason             string
	PaymentID          string
	ReconciliationNote string
}
