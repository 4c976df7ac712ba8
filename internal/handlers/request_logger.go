package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/triplebarrelracing/storefront/internal/logging"
	"github.com/triplebarrelracing/storefront/internal/observability"
	"github.com/triplebarrelracing/storefront/internal/storage"
)

// Request surfaces, used to split logs and metrics between the public
// storefront, the admin API, Stripe callbacks and static uploads.
const (
	surfaceStorefront = "storefront"
	surfaceAdmin      = "admin"
	surfaceWebhook    = "webhook"
	surfaceUploads    = "uploads"
	surfaceHealth     = "health"
)

type requestInfo struct {
	id       string
	clientIP string
	route    string
	surface  string
}

type requestInfoKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusRecorder) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusRecorder) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// RequestLogger assigns a request ID, injects a request-scoped logger and
// records one log line plus request metrics per response.
func (h *Handlers) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		info := h.describeRequest(r)
		w.Header().Set("X-Request-ID", info.id)

		logger := h.logger.With(
			"request_id", info.id,
			"method", r.Method,
			"path", r.URL.Path,
			"surface", info.surface,
			"remote_ip", info.clientIP,
		)
		if info.route != "" {
			logger = logger.With("route", info.route)
		}
		if userAgent := strings.TrimSpace(r.UserAgent()); userAgent != "" {
			logger = logger.With("user_agent", userAgent)
		}

		ctx := context.WithValue(r.Context(), requestInfoKey{}, info)
		ctx = logging.WithLogger(ctx, logger)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))

		status := rec.statusCode()
		elapsed := time.Since(start)
		recordRequestMetrics(ctx, r.Method, info, status, elapsed)

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case info.surface == surfaceUploads || info.surface == surfaceHealth:
			level = slog.LevelDebug
		}
		logger.Log(ctx, level, "request completed",
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"bytes", rec.bytes,
		)
	})
}

// MetricsContext puts a meter carrying the request attributes on the
// context. It must run inside RequestLogger.
func (h *Handlers) MetricsContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		info := requestInfoFromContext(ctx)
		if info.id == "" {
			info = h.describeRequest(r)
		}

		attrs := []attribute.Builder{
			attribute.String("http.request_id", info.id),
			attribute.String("http.method", r.Method),
			attribute.String("http.surface", info.surface),
			attribute.String("network.client.ip", info.clientIP),
		}
		if info.route != "" {
			attrs = append(attrs, attribute.String("http.route", info.route))
		}
		if r.ContentLength > 0 {
			attrs = append(attrs, attribute.Int64("http.request_content_length", r.ContentLength))
		}

		meter := sentry.NewMeter(ctx).WithCtx(ctx)
		meter.SetAttributes(attrs...)
		next.ServeHTTP(w, r.WithContext(observability.WithMeter(ctx, meter)))
	})
}

func recordRequestMetrics(ctx context.Context, method string, info requestInfo, status int, elapsed time.Duration) {
	route := info.route
	if route == "" {
		route = "unknown"
	}
	attrs := []attribute.Builder{
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.String("http.surface", info.surface),
		attribute.Int("http.status_code", status),
	}

	meter := sentry.NewMeter(ctx).WithCtx(ctx)
	meter.Count("http.server.requests", 1, sentry.WithAttributes(attrs...))
	meter.Distribution("http.server.duration", float64(elapsed.Milliseconds()),
		sentry.WithUnit(sentry.UnitMillisecond),
		sentry.WithAttributes(
			attribute.String("http.route", route),
			attribute.String("http.status_class", fmt.Sprintf("%dxx", status/100)),
		),
	)
	if status >= http.StatusInternalServerError {
		meter.Count("http.server.errors", 1, sentry.WithAttributes(attrs...))
	}
}

func (h *Handlers) describeRequest(r *http.Request) requestInfo {
	return requestInfo{
		id:       requestIDFromRequest(r),
		clientIP: h.clientIP(r),
		route:    routeLabel(r),
		surface:  requestSurface(r.URL.Path),
	}
}

func requestInfoFromContext(ctx context.Context) requestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(requestInfo)
	return info
}

func requestSurface(path string) string {
	switch {
	case strings.HasPrefix(path, storage.PublicPrefix):
		return surfaceUploads
	case strings.HasPrefix(path, "/webhooks/"):
		return surfaceWebhook
	case strings.HasPrefix(path, "/api/admin/") && path != "/api/admin/login":
		return surfaceAdmin
	case path == "/health":
		return surfaceHealth
	default:
		return surfaceStorefront
	}
}

func requestIDFromRequest(r *http.Request) string {
	if requestID := strings.TrimSpace(r.Header.Get("X-Request-ID")); requestID != "" && len(requestID) <= 128 {
		return requestID
	}
	return uuid.NewString()
}

// clientIP honours X-Forwarded-For and X-Real-IP only when the server sits
// behind a trusted proxy.
func (h *Handlers) clientIP(r *http.Request) string {
	if h.config != nil && h.config.TrustProxyHeaders {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func routeLabel(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	if name := route.GetName(); name != "" {
		return name
	}
	if template, err := route.GetPathTemplate(); err == nil {
		return template
	}
	return ""
}
