package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/triplebarrelracing/storefront/internal/db"
	"github.com/triplebarrelracing/storefront/internal/models"
	"github.com/triplebarrelracing/storefront/internal/services"
)

// ListMerch returns products priced against one read of the sale settings.
func (h *Handlers) ListMerch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := models.ProductFilter{Category: strings.TrimSpace(query.Get("category"))}
	if raw := query.Get("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, r, &services.ValidationError{Field: "featured", Message: "must be a boolean"})
			return
		}
		filter.FeaturedOnly = featured
	}

	products, err := h.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, products)
}

func (h *Handlers) GetMerch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, product)
}

func (h *Handlers) CreateMerch(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if err := decodeJSON(w, r, &product); err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.catalog.CreateProduct(r.Context(), &product)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

func (h *Handlers) UpdateMerch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var patch services.ProductPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.catalog.UpdateProduct(r.Context(), id, &patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (h *Handlers) DeleteMerch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListParts returns parts with the site-wide or "Parts" category sale applied.
func (h *Handlers) ListParts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parts, err := h.content.Parts.List(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	priced, err := h.catalog.PriceParts(ctx, parts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, priced)
}

func (h *Handlers) GetPart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	part, err := h.content.Parts.Get(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	priced, err := h.catalog.PriceParts(ctx, []*models.Part{part})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, priced[0])
}

func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.content.Events.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.catalog.PriceEvents(events))
}

func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	event, err := h.content.Events.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.catalog.PriceEvents([]*models.Event{event})[0])
}

// ContentRoutes are the handlers for one content kind.
type ContentRoutes struct {
	List   http.HandlerFunc
	Get    http.HandlerFunc
	Create http.HandlerFunc
	Update http.HandlerFunc
	Delete http.HandlerFunc
}

// contentRoutes builds plain CRUD handlers over a content service.
func contentRoutes[T any, PT db.Document[T]](h *Handlers, svc *services.ContentService[T, PT]) ContentRoutes {
	return ContentRoutes{
		List: func(w http.ResponseWriter, r *http.Request) {
			docs, err := svc.List(r.Context())
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			writeJSON(w, r, http.StatusOK, docs)
		},
		Get: func(w http.ResponseWriter, r *http.Request) {
			id, err := pathID(r)
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			doc, err := svc.Get(r.Context(), id)
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			writeJSON(w, r, http.StatusOK, doc)
		},
		Create: func(w http.ResponseWriter, r *http.Request) {
			doc := PT(new(T))
			if err := decodeJSON(w, r, doc); err != nil {
				h.writeError(w, r, err)
				return
			}
			created, err := svc.Create(r.Context(), doc)
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			writeJSON(w, r, http.StatusCreated, created)
		},
		Update: func(w http.ResponseWriter, r *http.Request) {
			id, err := pathID(r)
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			patch, err := readAllLimited(w, r)
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			updated, err := svc.Update(r.Context(), id, patch)
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			writeJSON(w, r, http.StatusOK, updated)
		},
		Delete: func(w http.ResponseWriter, r *http.Request) {
			id, err := pathID(r)
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			if err := svc.Delete(r.Context(), id); err != nil {
				h.writeError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		},
	}
}

// ContentRoutes returns CRUD handlers per content kind, keyed by URL segment.
// Events and parts override List and Get to attach prices.
func (h *Handlers) ContentRoutes() map[string]ContentRoutes {
	events := contentRoutes(h, h.content.Events)
	events.List, events.Get = h.ListEvents, h.GetEvent

	parts := contentRoutes(h, h.content.Parts)
	parts.List, parts.Get = h.ListParts, h.GetPart

	return map[string]ContentRoutes{
		"events":   events,
		"parts":    parts,
		"drivers":  contentRoutes(h, h.content.Drivers),
		"cars":     contentRoutes(h, h.content.Cars),
		"blog":     contentRoutes(h, h.content.Blog),
		"sponsors": contentRoutes(h, h.content.Sponsors),
	}
}
