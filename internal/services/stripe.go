package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/triplebarrelracing/storefront/internal/cache"
	"github.com/triplebarrelracing/storefront/internal/db"
	"github.com/triplebarrelracing/storefront/internal/inventory"
	"github.com/triplebarrelracing/storefront/internal/logging"
	"github.com/triplebarrelracing/storefront/internal/models"
	"github.com/triplebarrelracing/storefront/internal/observability"
	"github.com/triplebarrelracing/storefront/internal/stripe"
)

const webhookDedupeTTL = 24 * time.Hour

// PaymentWebhookService reconciles Stripe payment_intent events with orders.
// A capture in flight owns its order; the webhook only finishes orders whose
// claim has gone stale or that were never claimed.
type PaymentWebhookService struct {
	orders      OrderRepository
	cache       cache.Provider
	notifier    Notifier
	claimWindow time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

type PaymentWebhookConfig struct {
	// ClaimWindow is how long a capture claim is honoured before the webhook
	// takes over. Defaults to twice the payment timeout.
	ClaimWindow time.Duration
}

func NewPaymentWebhookService(orders OrderRepository, cacheProvider cache.Provider, notifier Notifier, cfg PaymentWebhookConfig, logger *slog.Logger) *PaymentWebhookService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if cfg.ClaimWindow <= 0 {
		cfg.ClaimWindow = 2 * defaultPaymentTimeout
	}

	return &PaymentWebhookService{
		orders:      orders,
		cache:       cacheProvider,
		notifier:    notifier,
		claimWindow: cfg.ClaimWindow,
		now:         time.Now,
		logger:      logger,
	}
}

func (s *PaymentWebhookService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// HandleEvent processes one verified event. Redelivered events are skipped.
// ErrRetryLater asks Stripe to deliver the event again.
func (s *PaymentWebhookService) HandleEvent(ctx context.Context, event *stripeapi.Event) error {
	if event == nil || event.ID == "" {
		return fmt.Errorf("missing event ID")
	}

	span := sentry.StartSpan(
		ctx,
		"service.webhook.handle_event",
		sentry.WithOpName("service.webhook"),
		sentry.WithDescription(string(event.Type)),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	ctx, logger := logging.With(ctx, s.logger, "event_id", event.ID, "event_type", string(event.Type))
	key := cache.WebhookKey("stripe", event.ID)
	won, err := s.cache.Claim(ctx, key, "1", webhookDedupeTTL)
	if err != nil {
		return fmt.Errorf("failed to record webhook event: %w", err)
	}
	if !won {
		logger.Info("skipping duplicate webhook event")
		observability.Count(ctx, "webhook.duplicate")
		return nil
	}

	var handleErr error
	switch string(event.Type) {
	case stripe.EventPaymentSucceeded:
		handleErr = s.handlePaymentSucceeded(ctx, event)
	case stripe.EventPaymentFailed:
		handleErr = s.handlePaymentFailed(ctx, event)
	default:
		logger.Debug("ignoring unhandled webhook event")
	}

	if handleErr != nil {
		if delErr := s.cache.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			logger.Warn("failed to release webhook event key", "error", delErr)
		}
		observability.Count(ctx, "webhook.failed", "event_type", string(event.Type))
		return handleErr
	}

	observability.Count(ctx, "webhook.processed", "event_type", string(event.Type))
	return nil
}

func (s *PaymentWebhookService) handlePaymentSucceeded(ctx context.Context, event *stripeapi.Event) error {
	intent, err := stripe.DecodePaymentIntentEvent(event)
	if err != nil {
		return err
	}

	ctx, logger := logging.With(ctx, s.loggerFromContext(ctx), "order_id", intent.OrderID, "payment_id", intent.PaymentID)

	order, err := s.orders.GetByID(ctx, intent.OrderID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			logger.Warn("payment succeeded for unknown order")
			return nil
		}
		return fmt.Errorf("failed to get order: %w", err)
	}

	switch order.Status {
	case models.StatusPaid:
		if order.PaymentID == intent.PaymentID {
			logger.Debug("order already paid")
			return nil
		}
		gap := newGap(order, intent.PaymentID, fmt.Errorf("%w: order paid by %s", ErrAlreadyResolved, order.PaymentID))
		s.flag(ctx, logger, gap)
		return nil

	case models.StatusFailed:
		if order.PaymentID == intent.PaymentID && order.ReconciliationNote != "" {
			logger.Debug("reconciliation gap already recorded")
			return nil
		}
		gap := newGap(order, intent.PaymentID, fmt.Errorf("%w: order failed (%s)", ErrAlreadyResolved, order.FailureReason))
		s.flag(ctx, logger, gap)
		return nil
	}

	if s.claimedRecently(order) {
		logger.Info("capture in flight, asking for redelivery")
		return ErrRetryLater
	}

	err = s.orders.MarkPaid(ctx, order.ID, intent.PaymentID, inventory.NewRequest(order.Item))
	switch {
	case err == nil:
	case errors.Is(err, inventory.ErrOutOfStock), errors.Is(err, db.ErrNotFound):
		gap := newGap(order, intent.PaymentID, fmt.Errorf("%w: %v", ErrOutOfStock, err))
		failure := models.PaymentFailure{
			Reason:             reasonOutOfStockAfterCharge,
			PaymentID:          intent.PaymentID,
			ReconciliationNote: gap.Note(),
		}
		if markErr := s.orders.MarkFailed(ctx, order.ID, failure); markErr != nil {
			return fmt.Errorf("failed to record reconciliation gap on order: %w", markErr)
		}
		reportGap(ctx, logger, s.notifier, "webhook", gap)
		return nil
	case errors.Is(err, db.ErrInvalidStatusTransition):
		return ErrRetryLater
	default:
		return fmt.Errorf("failed to mark order paid: %w", err)
	}

	order.Status = models.StatusPaid
	order.PaymentID = intent.PaymentID
	logger.Info("order marked paid from webhook")
	sendReceipt(ctx, logger, s.notifier, order)
	return nil
}

func (s *PaymentWebhookService) handlePaymentFailed(ctx context.Context, event *stripeapi.Event) error {
	intent, err := stripe.DecodePaymentIntentEvent(event)
	if err != nil {
		return err
	}

	ctx, logger := logging.With(ctx, s.loggerFromContext(ctx), "order_id", intent.OrderID, "payment_id", intent.PaymentID)

	order, err := s.orders.GetByID(ctx, intent.OrderID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			logger.Warn("payment failed for unknown order")
			return nil
		}
		return fmt.Errorf("failed to get order: %w", err)
	}
	if order.Status != models.StatusPending || s.claimedRecently(order) {
		return nil
	}

	reason := string(stripe.FailureDeclined)
	if intent.FailureCode != "" {
		reason += ":" + intent.FailureCode
	}
	if err := s.orders.MarkFailed(ctx, order.ID, models.PaymentFailure{Reason: reason}); err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			logger.Info("ignoring payment failure due to state transition", "error", err)
			return nil
		}
		return fmt.Errorf("failed to mark order failed: %w", err)
	}

	logger.Info("order marked failed from webhook", "reason", reason)
	return nil
}

func (s *PaymentWebhookService) claimedRecently(order *models.Order) bool {
	return order.Claimed() && s.now().Sub(order.CaptureStartedAt) < s.claimWindow
}

// flag records a charge that landed on an order that is already resolved.
func (s *PaymentWebhookService) flag(ctx context.Context, logger *slog.Logger, gap *ReconciliationGap) {
	if err := s.orders.FlagReconciliationGap(ctx, gap.OrderID, gap.Note()); err != nil {
		logger.Error("failed to flag reconciliation gap", "error", err)
	}
	reportGap(ctx, logger, s.notifier, "webhook", gap)
}
