package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/triplebarrelracing/storefront/internal/logging"
	"github.com/triplebarrelracing/storefront/internal/services"
)

const (
	maxJSONBodyBytes    = 1 << 20 // 1 MB
	maxWebhookBodyBytes = 1 << 20
	healthCheckTimeout  = 3 * time.Second
)

type errorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.FromContext(r.Context(), nil).Warn("failed to encode response", "error", err)
	}
}

// writeError maps service errors onto HTTP responses. Internal errors are
// logged and never echoed to the client.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.loggerFromContext(r.Context()).Error("request failed", "error", err)
	}
	writeJSON(w, r, status, body)
}

func errorStatus(err error) (int, errorResponse) {
	var (
		validationErr *services.ValidationError
		paymentErr    *services.PaymentError
		gap           *services.ReconciliationGap
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, errorResponse{Error: validationErr.Error(), Code: "validation_error", Field: validationErr.Field}
	case errors.As(err, &gap):
		return http.StatusConflict, errorResponse{
			Error: "payment was taken but the order could not be completed; the team has been notified and will contact you",
			Code:  "reconciliation_required",
		}
	case errors.As(err, &paymentErr):
		return http.StatusPaymentRequired, errorResponse{Error: "payment was not completed", Code: "payment_failed", Reason: paymentErr.Reason}
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "not found", Code: "not_found"}
	case errors.Is(err, services.ErrOutOfStock):
		return http.StatusConflict, errorResponse{Error: "out of stock", Code: "out_of_stock"}
	case errors.Is(err, services.ErrAlreadyResolved):
		return http.StatusConflict, errorResponse{Error: "order is already paid, failed or being processed", Code: "already_resolved"}
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Error: "invalid username or password", Code: "invalid_credentials"}
	case errors.Is(err, services.ErrRetryLater):
		return http.StatusServiceUnavailable, errorResponse{Error: "operation in progress, retry later", Code: "retry_later"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal_error"}
	}
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &services.ValidationError{Field: "id", Message: "must be a UUID"}
	}
	return id, nil
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return limit
}

func readAllLimited(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, &services.ValidationError{Field: "body", Message: "could not read request body"}
	}
	return body, nil
}
