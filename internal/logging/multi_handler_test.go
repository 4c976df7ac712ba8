package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestMultiHandler_FansOutByLevel(t *testing.T) {
	t.Parallel()

	var info, errs bytes.Buffer
	logger := slog.New(MultiHandler(
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&errs, &slog.HandlerOptions{Level: slog.LevelError}),
		nil,
	))

	logger.Info("order created", "order_id", "o-1")
	logger.Error("capture failed", "order_id", "o-2")

	if !strings.Contains(info.String(), "order created") || !strings.Contains(info.String(), "capture failed") {
		t.Fatalf("info sink missing records: %q", info.String())
	}
	if strings.Contains(errs.String(), "order created") {
		t.Fatalf("error sink received info record: %q", errs.String())
	}
	if !strings.Contains(errs.String(), "capture failed") {
		t.Fatalf("error sink missing error record: %q", errs.String())
	}
}

func TestAlertsOnly(t *testing.T) {
	t.Parallel()

	var all, alerts bytes.Buffer
	logger := slog.New(MultiHandler(
		slog.NewTextHandler(&all, nil),
		AlertsOnly(slog.NewJSONHandler(&alerts, nil)),
	))

	logger.Error("database ping failed")
	logger.Error("stock decrement failed after charge", Alert("reconciliation_gap"), "order_id", "o-7")
	logger.With(Alert("webhook_mismatch")).Warn("payment succeeded for failed order", "order_id", "o-8")

	if !strings.Contains(all.String(), "database ping failed") {
		t.Fatalf("primary sink missing record: %q", all.String())
	}
	if strings.Contains(alerts.String(), "database ping failed") {
		t.Fatalf("alert sink received non-alert record: %q", alerts.String())
	}
	if !strings.Contains(alerts.String(), `"alert":"reconciliation_gap"`) || !strings.Contains(alerts.String(), `"order_id":"o-7"`) {
		t.Fatalf("alert sink missing reconciliation gap: %q", alerts.String())
	}
	if !strings.Contains(alerts.String(), "o-8") {
		t.Fatalf("alert sink missing logger-scoped alert: %q", alerts.String())
	}
}

func TestWithStoresEnrichedLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx, _ := With(context.Background(), base, "order_id", "o-9")
	FromContext(ctx, nil).Info("claimed")

	if !strings.Contains(buf.String(), "order_id=o-9") {
		t.Fatalf("expected order id on context logger, got %q", buf.String())
	}
}

func TestFromContextFallsBackToDiscard(t *testing.T) {
	t.Parallel()

	if FromContext(context.Background(), nil) == nil {
		t.Fatal("expected non-nil logger")
	}
}
