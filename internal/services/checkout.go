package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/triplebarrelracing/storefront/internal/catalog"
	"github.com/triplebarrelracing/storefront/internal/db"
	"github.com/triplebarrelracing/storefront/internal/inventory"
	"github.com/triplebarrelracing/storefront/internal/logging"
	"github.com/triplebarrelracing/storefront/internal/models"
	"github.com/triplebarrelracing/storefront/internal/observability"
	"github.com/triplebarrelracing/storefront/internal/stripe"
)

const (
	defaultPaymentTimeout = 15 * time.Second

	reasonOutOfStockAfterCharge = "out_of_stock_after_charge"
	reasonGatewayError          = "gateway_error"
)

// CheckoutService turns a product choice into a pending order and captures
// payment for it.
type CheckoutService struct {
	products       ProductRepository
	orders         OrderRepository
	sales          *SaleService
	gateway        PaymentGateway
	notifier       Notifier
	pricer         *catalog.Pricer
	paymentTimeout time.Duration
	logger         *slog.Logger
}

type CheckoutConfig struct {
	PaymentTimeout time.Duration
}

func NewCheckoutService(products ProductRepository, orders OrderRepository, sales *SaleService, gateway PaymentGateway, notifier Notifier, cfg CheckoutConfig, logger *slog.Logger) *CheckoutService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = defaultPaymentTimeout
	}

	return &CheckoutService{
		products:       products,
		orders:         orders,
		sales:          sales,
		gateway:        gateway,
		notifier:       notifier,
		pricer:         catalog.NewPricer(),
		paymentTimeout: cfg.PaymentTimeout,
		logger:         logger,
	}
}

func (s *CheckoutService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type CreateOrderInput struct {
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	ProductID     uuid.UUID `json:"product_id"`
	Size          string    `json:"size"`
}

// CreateOrder validates the request, snapshots the effective price and
// stores a pending order. Stock is not touched and nothing external is
// called; availability here is advisory only.
func (s *CheckoutService) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.checkout.create_order",
		sentry.WithOpName("service.checkout"),
		sentry.WithDescription("CreateOrder"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	recordFailure := func(reason string) {
		meter.Count("order.intake.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}

	contact, err := normalizeContact(models.Contact{Name: input.CustomerName, Email: input.CustomerEmail}, orderContactFields)
	if err != nil {
		recordFailure("invalid_input")
		return nil, err
	}
	if input.ProductID == uuid.Nil {
		recordFailure("invalid_input")
		return nil, invalid("product_id", "is required")
	}

	product, err := s.products.GetByID(ctx, input.ProductID)
	if err != nil {
		recordFailure("product_lookup_failed")
		return nil, notFoundOr(err, "failed to get product")
	}

	size := inventory.NormalizeSize(product, input.Size)
	if err := checkAvailability(product, size); err != nil {
		if errors.Is(err, ErrOutOfStock) {
			recordFailure("out_of_stock")
		} else {
			recordFailure("invalid_size")
		}
		return nil, err
	}

	settings, err := s.sales.Current(ctx)
	if err != nil {
		recordFailure("sale_settings_failed")
		return nil, err
	}
	price := s.pricer.Resolve(product, settings)
	if price.Effective.LessThan(stripe.MinimumCharge) {
		recordFailure("below_minimum_charge")
		return nil, invalid("product_id", fmt.Sprintf("price %s %s is below the %s minimum card payment; send an inquiry instead",
			price.Effective.StringFixed(2), models.CurrencyCAD, stripe.MinimumCharge.StringFixed(2)))
	}

	order := &models.Order{
		Contact: contact,
		Item: models.LineItem{
			ProductID:       product.ID,
			ProductName:     product.Name,
			Size:            size,
			Quantity:        1,
			UnitPrice:       price.Effective,
			BasePrice:       price.Base,
			DiscountPercent: price.DiscountPercent,
			DiscountSource:  string(price.Source),
		},
		Currency:          models.CurrencyCAD,
		SaleVersion:       settings.Version,
		Status:            models.StatusPending,
		FulfillmentStatus: models.FulfillmentUnfulfilled,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		recordFailure("order_create_failed")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	meter.Count("order.created", 1, sentry.WithAttributes(
		attribute.String("discount_source", string(price.Source)),
	))
	logger.Info("order created",
		"order_id", order.ID,
		"product_id", product.ID,
		"size", size,
		"unit_price", price.Effective.StringFixed(2),
		"discount_source", price.Source,
		"sale_version", settings.Version,
	)
	return order, nil
}

// PaymentConfirmation is returned for a captured order.
type PaymentConfirmation struct {
	OrderID   uuid.UUID            `json:"order_id"`
	PaymentID string               `json:"payment_id"`
	Amount    decimal.Decimal      `json:"amount"`
	Currency  string               `json:"currency"`
	Status    models.PaymentStatus `json:"status"`
}

// CapturePayment charges the order's snapshotted price. Only one capture can
// run per order: the first caller claims it and everyone else gets
// ErrAlreadyResolved. Stock is decremented in the same write that marks the
// order paid; if that fails after the charge went through, the order is
// failed with a reconciliation note and a ReconciliationGap is returned.
func (s *CheckoutService) CapturePayment(ctx context.Context, orderID uuid.UUID, paymentToken string) (*PaymentConfirmation, error) {
	span := sentry.StartSpan(
		ctx,
		"service.checkout.capture_payment",
		sentry.WithOpName("service.checkout"),
		sentry.WithDescription("CapturePayment"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	ctx, logger := logging.With(ctx, s.logger, "order_id", orderID)
	meter := observability.MeterFromContext(ctx)
	recordFailure := func(reason string) {
		meter.Count("payment.capture.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}

	if strings.TrimSpace(paymentToken) == "" {
		recordFailure("invalid_input")
		return nil, invalid("payment_token", "is required")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		recordFailure("order_lookup_failed")
		return nil, notFoundOr(err, "failed to get order")
	}
	if order.Status != models.StatusPending {
		recordFailure("already_resolved")
		return nil, ErrAlreadyResolved
	}

	if err := s.orders.ClaimCapture(ctx, order.ID); err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			recordFailure("already_resolved")
			return nil, ErrAlreadyResolved
		}
		recordFailure("claim_failed")
		return nil, fmt.Errorf("failed to claim order for capture: %w", err)
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	charge, chargeErr := s.gateway.Charge(chargeCtx, stripe.ChargeRequest{
		OrderID:      order.ID,
		Amount:       order.Amount(),
		Currency:     order.Currency,
		PaymentToken: paymentToken,
		Description:  order.Item.ProductName,
		ReceiptEmail: order.Email,
	})
	cancel()

	// From here on the outcome must be recorded even if the client went away.
	persistCtx := context.WithoutCancel(ctx)

	if chargeErr != nil {
		paymentErr := toPaymentError(chargeErr)
		recordFailure(paymentErr.Code)
		if err := s.orders.MarkFailed(persistCtx, order.ID, models.PaymentFailure{Reason: paymentErr.Reason}); err != nil {
			logger.Error("failed to mark order failed after charge error", "error", err)
		}
		logger.Warn("payment rejected", "code", paymentErr.Code, "reason", paymentErr.Reason, "error", chargeErr)
		return nil, paymentErr
	}

	logger = logger.With("payment_id", charge.PaymentID)

	err = s.orders.MarkPaid(persistCtx, order.ID, charge.PaymentID, inventory.NewRequest(order.Item))
	switch {
	case err == nil:
	case errors.Is(err, inventory.ErrOutOfStock), errors.Is(err, db.ErrNotFound):
		recordFailure("out_of_stock_after_charge")
		gap := newGap(order, charge.PaymentID, fmt.Errorf("%w: %v", ErrOutOfStock, err))
		failure := models.PaymentFailure{
			Reason:             reasonOutOfStockAfterCharge,
			PaymentID:          charge.PaymentID,
			ReconciliationNote: gap.Note(),
		}
		if markErr := s.orders.MarkFailed(persistCtx, order.ID, failure); markErr != nil {
			logger.Error("failed to record reconciliation gap on order", "error", markErr)
		}
		reportGap(persistCtx, logger, s.notifier, "capture", gap)
		return nil, gap
	case errors.Is(err, db.ErrInvalidStatusTransition):
		recordFailure("status_changed_during_capture")
		gap := newGap(order, charge.PaymentID, fmt.Errorf("%w: %v", ErrAlreadyResolved, err))
		if flagErr := s.orders.FlagReconciliationGap(persistCtx, order.ID, gap.Note()); flagErr != nil {
			logger.Error("failed to flag reconciliation gap", "error", flagErr)
		}
		reportGap(persistCtx, logger, s.notifier, "capture", gap)
		return nil, gap
	default:
		// The charge stands and the order stays claimed; the payment webhook
		// finishes it once the claim goes stale.
		recordFailure("mark_paid_failed")
		logger.Error("failed to mark order paid after successful charge",
			logging.Alert("capture_incomplete"),
			"error", err,
			"amount", order.Amount().StringFixed(2),
		)
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	order.Status = models.StatusPaid
	order.PaymentID = charge.PaymentID
	meter.Count("payment.captured", 1)
	observability.ObservePayment(ctx, order.Amount(), order.Currency)
	logger.Info("payment captured", "amount", order.Amount().StringFixed(2), "currency", order.Currency)

	sendReceipt(persistCtx, logger, s.notifier, order)

	return &PaymentConfirmation{
		OrderID:   order.ID,
		PaymentID: charge.PaymentID,
		Amount:    order.Amount(),
		Currency:  order.Currency,
		Status:    models.StatusPaid,
	}, nil
}

func toPaymentError(err error) *PaymentError {
	var chargeErr *stripe.ChargeError
	if errors.As(err, &chargeErr) {
		return &PaymentError{Code: string(chargeErr.Kind), Reason: chargeErr.Reason(), Err: err}
	}
	return &PaymentError{Code: reasonGatewayError, Reason: reasonGatewayError, Err: err}
}
