package services

import (
	"context"
	"log/slog"

	"github.com/triplebarrelracing/storefront/internal/logging"
	"github.com/triplebarrelracing/storefront/internal/models"
	"github.com/triplebarrelracing/storefront/internal/observability"
)

func newGap(order *models.Order, paymentID string, cause error) *ReconciliationGap {
	return &ReconciliationGap{
		OrderID:   order.ID,
		PaymentID: paymentID,
		Amount:    order.Amount(),
		Currency:  order.Currency,
		Product:   order.Item.ProductName,
		Size:      order.Item.Size,
		Cause:     cause,
	}
}

// reportGap raises the operator alert for a charge that has no completed
// order behind it. The alert attribute routes the record to the alert sink.
func reportGap(ctx context.Context, logger *slog.Logger, notifier Notifier, source string, gap *ReconciliationGap) {
	logger.Error("reconciliation gap: payment captured without a completed order",
		logging.Alert("reconciliation_gap"),
		"source", source,
		"order_id", gap.OrderID,
		"payment_id", gap.PaymentID,
		"amount", gap.Amount.StringFixed(2),
		"currency", gap.Currency,
		"product", gap.Product,
		"size", gap.Size,
		"cause", gap.Cause,
	)

	observability.Count(ctx, "order.reconciliation_gap", "source", source)

	if err := notifier.AlertReconciliation(context.WithoutCancel(ctx), gap); err != nil {
		logger.Warn("failed to email reconciliation alert", "error", err, "order_id", gap.OrderID)
	}
}

// sendReceipt emails the customer after payment. Failures are only logged.
func sendReceipt(ctx context.Context, logger *slog.Logger, notifier Notifier, order *models.Order) {
	if err := notifier.SendReceipt(context.WithoutCancel(ctx), order); err != nil {
		logger.Warn("failed to send order receipt", "error", err, "order_id", order.ID)
	}
}
