package handlers

import (
	"net/http"

	"github.com/triplebarrelracing/storefront/internal/services"
)

type inquiryCreatedResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// SubmitContact accepts the public contact form.
func (h *Handlers) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var input services.SubmitInquiryInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	inquiry, err := h.inquiries.Submit(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, inquiryCreatedResponse{
		ID:      inquiry.ID.String(),
		Message: "Thanks, we'll be in touch soon.",
	})
}

// SubmitDriverContact accepts a message addressed to one driver.
func (h *Handlers) SubmitDriverContact(w http.ResponseWriter, r *http.Request) {
	var input services.DriverContactInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	inquiry, err := h.inquiries.SubmitDriverContact(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, inquiryCreatedResponse{
		ID:      inquiry.ID.String(),
		Message: "Your message has been passed on.",
	})
}
