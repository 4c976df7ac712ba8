package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/triplebarrelracing/storefront/internal/models"
	"github.com/triplebarrelracing/storefront/internal/services"
)

type orderCreatedResponse struct {
	OrderID         uuid.UUID            `json:"order_id"`
	Status          models.PaymentStatus `json:"status"`
	UnitPrice       decimal.Decimal      `json:"unit_price"`
	BasePrice       decimal.Decimal      `json:"base_price"`
	DiscountPercent decimal.Decimal      `json:"discount_percent"`
	Currency        string               `json:"currency"`
	ProductName     string               `json:"product_name"`
	Size            string               `json:"size,omitempty"`
}

// CreateOrder stores a pending order with its price snapshot.
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var input services.CreateOrderInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.checkout.CreateOrder(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, orderCreatedResponse{
		OrderID:         order.ID,
		Status:          order.Status,
		UnitPrice:       order.Item.UnitPrice,
		BasePrice:       order.Item.BasePrice,
		DiscountPercent: order.Item.DiscountPercent,
		Currency:        order.Currency,
		ProductName:     order.Item.ProductName,
		Size:            order.Item.Size,
	})
}

type capturePaymentRequest struct {
	OrderID      uuid.UUID `json:"order_id"`
	PaymentToken string    `json:"payment_token"`
}

// CapturePayment charges a pending order once.
func (h *Handlers) CapturePayment(w http.ResponseWriter, r *http.Request) {
	var req capturePaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.OrderID == uuid.Nil {
		h.writeError(w, r, &services.ValidationError{Field: "order_id", Message: "is required"})
		return
	}

	confirmation, err := h.checkout.CapturePayment(r.Context(), req.OrderID, req.PaymentToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, confirmation)
}
