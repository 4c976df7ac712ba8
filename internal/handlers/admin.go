package handlers

import (
	"errors"
	"net/http"

	"github.com/triplebarrelracing/storefront/internal/models"
	"github.com/triplebarrelracing/storefront/internal/services"
	"github.com/triplebarrelracing/storefront/internal/storage"
)

// multipartOverhead is the allowance for form boundaries and headers on
// top of the upload size limit.
const multipartOverhead = 64 << 10

func (h *Handlers) GetSaleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.sales.Current(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, settings)
}

func (h *Handlers) UpdateSaleSettings(w http.ResponseWriter, r *http.Request) {
	var input services.UpdateSaleSettingsInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	settings, err := h.sales.Update(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, settings)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context(), queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, order)
}

type fulfillmentRequest struct {
	FulfillmentStatus models.FulfillmentStatus `json:"fulfillment_status"`
}

func (h *Handlers) UpdateOrderFulfillment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req fulfillmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.UpdateFulfillment(r.Context(), id, req.FulfillmentStatus)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, order)
}

func (h *Handlers) ListInquiries(w http.ResponseWriter, r *http.Request) {
	inquiries, err := h.inquiries.List(r.Context(), queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, inquiries)
}

type inquiryStatusRequest struct {
	Status models.InquiryStatus `json:"status"`
}

func (h *Handlers) UpdateInquiryStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req inquiryStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	inquiry, err := h.inquiries.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, inquiry)
}

func (h *Handlers) DeleteInquiry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.inquiries.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage stores the multipart "file" field and returns its public URL.
func (h *Handlers) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	maxBytes := h.uploads.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeUploadError(w, r, storage.ErrTooLarge)
			return
		}
		h.writeError(w, r, &services.ValidationError{Field: "file", Message: "expected a multipart form"})
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logger.Warn("failed to remove multipart temp files", "error", err)
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, &services.ValidationError{Field: "file", Message: "is required"})
		return
	}
	defer file.Close()

	upload, err := h.uploads.Save(ctx, file)
	if err != nil {
		if writeUploadError(w, r, err) {
			logger.Info("upload rejected", "filename", header.Filename, "error", err)
			return
		}
		h.writeError(w, r, err)
		return
	}

	logger.Info("image uploaded", "name", upload.Name, "content_type", upload.ContentType, "size", upload.Size)
	writeJSON(w, r, http.StatusCreated, upload)
}

// writeUploadError answers for storage rejections and reports whether it did.
func writeUploadError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		writeJSON(w, r, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error(), Code: "too_large", Field: "file"})
	case errors.Is(err, storage.ErrUnsupportedType):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "unsupported_type", Field: "file"})
	case errors.Is(err, storage.ErrEmpty):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "validation_error", Field: "file"})
	default:
		return false
	}
	return true
}
