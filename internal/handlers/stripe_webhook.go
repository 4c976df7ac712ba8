package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/triplebarrelracing/storefront/internal/services"
	stripewebhook "github.com/triplebarrelracing/storefront/internal/stripe"
)

func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if strings.TrimSpace(h.config.StripeWebhookSecret) == "" {
		logger.Error("stripe webhook secret not configured")
		writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{Error: "webhooks not configured", Code: "unavailable"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	event, err := stripewebhook.ReadWebhookEvent(r, h.config.StripeWebhookSecret)
	if err != nil {
		logger.Warn("failed to read Stripe webhook payload", "error", err)
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid webhook", Code: "invalid_signature"})
		return
	}

	if event == nil || event.ID == "" {
		logger.Warn("missing Stripe event ID")
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "missing event ID", Code: "validation_error"})
		return
	}

	if err := h.webhooks.HandleEvent(ctx, event); err != nil {
		if errors.Is(err, services.ErrRetryLater) {
			logger.Info("deferring Stripe webhook", "event_id", event.ID, "type", event.Type)
			writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{Error: "retry later", Code: "retry_later"})
			return
		}
		logger.Error("failed to process Stripe webhook", "error", err, "event_id", event.ID, "type", event.Type)
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "processing failed", Code: "internal_error"})
		return
	}

	w.WriteHeader(http.StatusOK)
}
