package logging

import (
	"context"
	"errors"
	"log/slog"
)

// AlertKey marks records that need operator attention. Records carrying it
// reach the alert sink in addition to the normal output.
const AlertKey = "alert"

// Alert returns the attribute that routes a record to the alert sink.
func Alert(name string) slog.Attr {
	return slog.String(AlertKey, name)
}

// MultiHandler fans out slog records to multiple handlers.
func MultiHandler(handlers ...slog.Handler) slog.Handler {
	filtered := make([]slog.Handler, 0, len(handlers))
	for _, handler := range handlers {
		if handler != nil {
			filtered = append(filtered, handler)
		}
	}
	if len(filtered) == 0 {
		return Discard().Handler()
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return multiHandler(filtered)
}

type multiHandler []slog.Handler

func (h multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var handleErr error
	for _, handler := range h {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		handleErr = errors.Join(handleErr, handler.Handle(ctx, record.Clone()))
	}
	return handleErr
}

func (h multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, 0, len(h))
	for _, handler := range h {
		next = append(next, handler.WithAttrs(attrs))
	}
	return multiHandler(next)
}

func (h multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, 0, len(h))
	for _, handler := range h {
		next = append(next, handler.WithGroup(name))
	}
	return multiHandler(next)
}

// AlertsOnly wraps handler so it only receives records that carry AlertKey,
// either on the record itself or on the logger that produced it.
func AlertsOnly(handler slog.Handler) slog.Handler {
	if handler == nil {
		return nil
	}
	return &alertHandler{next: handler}
}

type alertHandler struct {
	next    slog.Handler
	alerted bool
}

func (h *alertHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *alertHandler) Handle(ctx context.Context, record slog.Record) error {
	if !h.alerted && !hasAlert(record) {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *alertHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	alerted := h.alerted
	for _, attr := range attrs {
		if attr.Key == AlertKey {
			alerted = true
		}
	}
	return &alertHandler{next: h.next.WithAttrs(attrs), alerted: alerted}
}

func (h *alertHandler) WithGroup(name string) slog.Handler {
	return &alertHandler{next: h.next.WithGroup(name), alerted: h.alerted}
}

func hasAlert(record slog.Record) bool {
	found := false
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == AlertKey {
			found = true
			return false
		}
		return true
	})
	return found
}
