package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/triplebarrelracing/storefront/internal/db"
	"github.com/triplebarrelracing/storefront/internal/inventory"
	"github.com/triplebarrelracing/storefront/internal/models"
	"github.com/triplebarrelracing/storefront/internal/stripe"
)

// Storage contracts. The db package implements them on Postgres; tests use
// in-memory fakes with the same conditional-update semantics.

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error)
}

type SaleSettingsRepository interface {
	Get(ctx context.Context) (*models.SaleSettings, error)
	Update(ctx context.Context, settings *models.SaleSettings) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, limit int) ([]*models.Order, error)
	// ClaimCapture fails with db.ErrInvalidStatusTransition unless the order
	// is pending and unclaimed.
	ClaimCapture(ctx context.Context, id uuid.UUID) error
	// MarkPaid moves pending to paid and applies stock in one unit of work.
	MarkPaid(ctx context.Context, id uuid.UUID, paymentID string, stock inventory.Request) error
	MarkFailed(ctx context.Context, id uuid.UUID, failure models.PaymentFailure) error
	FlagReconciliationGap(ctx context.Context, id uuid.UUID, note string) error
	UpdateFulfillment(ctx context.Context, id uuid.UUID, status models.FulfillmentStatus) error
	ExpireStalePending(ctx context.Context, cutoff time.Time) (int64, error)
	// ExpireAbandonedCaptures fails pending orders claimed before cutoff and
	// returns their ids. A charge may exist for any of them.
	ExpireAbandonedCaptures(ctx context.Context, cutoff time.Time, note string) ([]uuid.UUID, error)
}

type InquiryRepository interface {
	Create(ctx context.Context, inquiry *models.Inquiry) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Inquiry, error)
	List(ctx context.Context, limit int) ([]*models.Inquiry, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.InquiryStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type DocumentRepository[T any, PT db.Document[T]] interface {
	Kind() string
	Create(ctx context.Context, doc PT) error
	Get(ctx context.Context, id uuid.UUID) (PT, error)
	List(ctx context.Context) ([]PT, error)
	Replace(ctx context.Context, id uuid.UUID, doc PT) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PaymentGateway charges a tokenized payment method.
type PaymentGateway interface {
	Charge(ctx context.Context, req stripe.ChargeRequest) (*stripe.Charge, error)
}

var (
	_ ProductRepository                               = (*db.ProductStore)(nil)
	_ SaleSettingsRepository                          = (*db.SaleSettingsStore)(nil)
	_ OrderRepository                                 = (*db.OrderStore)(nil)
	_ InquiryRepository                               = (*db.InquiryStore)(nil)
	_ DocumentRepository[models.Event, *models.Event] = (*db.DocumentStore[models.Event, *models.Event])(nil)
	_ PaymentGateway                                  = (*stripe.PaymentClient)(nil)
)
