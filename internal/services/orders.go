package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/triplebarrelracing/storefront/internal/logging"
	"github.com/triplebarrelracing/storefront/internal/models"
	"github.com/triplebarrelracing/storefront/internal/observability"
)

const (
	defaultOrderListLimit = 100
	maxOrderListLimit     = 500
)

const reasonCaptureAbandoned = "capture_abandoned"

// OrderAdminService serves the staff view of orders and expires stale ones.
type OrderAdminService struct {
	orders      OrderRepository
	claimWindow time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

type OrderAdminConfig struct {
	// ClaimWindow is how long a capture may run before the payment webhook
	// takes over. Defaults to twice the default payment timeout.
	ClaimWindow time.Duration
}

func NewOrderAdminService(orders OrderRepository, cfg OrderAdminConfig, logger *slog.Logger) *OrderAdminService {
	if cfg.ClaimWindow <= 0 {
		cfg.ClaimWindow = 2 * defaultPaymentTimeout
	}
	return &OrderAdminService{orders: orders, claimWindow: cfg.ClaimWindow, logger: logger, now: time.Now}
}

func (s *OrderAdminService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// AdminOrder adds derived flags to an order for the admin listing.
type AdminOrder struct {
	*models.Order
	ReconciliationGap bool `json:"reconciliation_gap"`
}

func (s *OrderAdminService) List(ctx context.Context, limit int) ([]AdminOrder, error) {
	limit = clampLimit(limit, defaultOrderListLimit, maxOrderListLimit)
	orders, err := s.orders.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	out := make([]AdminOrder, 0, len(orders))
	for _, order := range orders {
		out = append(out, toAdminOrder(order))
	}
	return out, nil
}

func (s *OrderAdminService) Get(ctx context.Context, id uuid.UUID) (*AdminOrder, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "failed to get order")
	}
	out := toAdminOrder(order)
	return &out, nil
}

// UpdateFulfillment moves the fulfillment status. Payment status is never
// touched here.
func (s *OrderAdminService) UpdateFulfillment(ctx context.Context, id uuid.UUID, status models.FulfillmentStatus) (*AdminOrder, error) {
	if !status.Valid() {
		return nil, invalid("fulfillment_status", fmt.Sprintf("unknown status %q", status))
	}
	if err := s.orders.UpdateFulfillment(ctx, id, status); err != nil {
		return nil, notFoundOr(err, "failed to update fulfillment")
	}
	s.loggerFromContext(ctx).Info("order fulfillment updated", "order_id", id, "fulfillment_status", status)
	return s.Get(ctx, id)
}

// ExpireStale fails pending orders that were never claimed for capture and
// are older than ttl. Orders whose capture claim is older than ttl plus the
// claim window are failed too, flagged for reconciliation and alerted on,
// since the gateway may have charged them.
func (s *OrderAdminService) ExpireStale(ctx context.Context, ttl time.Duration) (int64, error) {
	logger := s.loggerFromContext(ctx)
	now := s.now()

	cutoff := now.Add(-ttl)
	expired, err := s.orders.ExpireStalePending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending orders: %w", err)
	}
	if expired > 0 {
		observability.MeterFromContext(ctx).Count("order.expired", expired)
		logger.Info("expired stale pending orders", "count", expired, "cutoff", cutoff)
	}

	claimCutoff := now.Add(-(ttl + s.claimWindow))
	note := fmt.Sprintf("capture claimed before %s never resolved; check the payment gateway for a charge", claimCutoff.UTC().Format(time.RFC3339))
	abandoned, err := s.orders.ExpireAbandonedCaptures(ctx, claimCutoff, note)
	if err != nil {
		return expired, fmt.Errorf("failed to expire abandoned captures: %w", err)
	}
	for _, id := range abandoned {
		observability.Count(ctx, "order.capture_abandoned")
		logger.Error("pending order with an unresolved capture claim expired",
			logging.Alert(reasonCaptureAbandoned),
			"order_id", id,
			"claim_cutoff", claimCutoff,
		)
	}
	return expired + int64(len(abandoned)), nil
}

// RunExpiry sweeps stale pending orders every ttl/2 until ctx is done.
func (s *OrderAdminService) RunExpiry(ctx context.Context, ttl time.Duration) {
	interval := ttl / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := s.loggerFromContext(ctx)
	logger.Info("pending order expiry started", "ttl", ttl, "interval", interval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("pending order expiry stopped")
			return
		case <-ticker.C:
			if _, err := s.ExpireStale(ctx, ttl); err != nil {
				logger.Error("pending order expiry failed", "error", err)
			}
		}
	}
}

func toAdminOrder(order *models.Order) AdminOrder {
	return AdminOrder{Order: order, ReconciliationGap: order.ReconciliationNote != ""}
}

func clampLimit(limit, fallback, max int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > max {
		return max
	}
	return limit
}
