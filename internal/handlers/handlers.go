package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/getsentry/sentry-go/attribute"

	"github.com/triplebarrelracing/storefront/internal/config"
	"github.com/triplebarrelracing/storefront/internal/logging"
	"github.com/triplebarrelracing/storefront/internal/models"
	"github.com/triplebarrelracing/storefront/internal/observability"
	"github.com/triplebarrelracing/storefront/internal/services"
	"github.com/triplebarrelracing/storefront/internal/session"
	"github.com/triplebarrelracing/storefront/internal/storage"
)

// Pinger reports backing-store reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Content groups the site content services.
type Content struct {
	Events   *services.ContentService[models.Event, *models.Event]
	Parts    *services.ContentService[models.Part, *models.Part]
	Drivers  *services.ContentService[models.Driver, *models.Driver]
	Cars     *services.ContentService[models.Car, *models.Car]
	Blog     *services.ContentService[models.BlogPost, *models.BlogPost]
	Sponsors *services.ContentService[models.Sponsor, *models.Sponsor]
}

// Handlers provides the storefront and admin JSON API.
type Handlers struct {
	config         *config.Config
	db             Pinger
	cache          Pinger
	catalog        *services.CatalogService
	sales          *services.SaleService
	checkout       *services.CheckoutService
	orders         *services.OrderAdminService
	inquiries      *services.InquiryService
	content        Content
	webhooks       *services.PaymentWebhookService
	authService    *services.AuthService
	sessionManager *session.Manager
	authenticator  *session.Authenticator
	uploads        *storage.LocalStore
	logger         *slog.Logger
}

type Dependencies struct {
	Config         *config.Config
	DB             Pinger
	Cache          Pinger
	Catalog        *services.CatalogService
	Sales          *services.SaleService
	Checkout       *services.CheckoutService
	Orders         *services.OrderAdminService
	Inquiries      *services.InquiryService
	Content        Content
	Webhooks       *services.PaymentWebhookService
	AuthService    *services.AuthService
	SessionManager *session.Manager
	Authenticator  *session.Authenticator
	Uploads        *storage.LocalStore
	Logger         *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	required := []struct {
		name string
		ok   bool
	}{
		{"config", deps.Config != nil},
		{"db", deps.DB != nil},
		{"cache", deps.Cache != nil},
		{"catalog", deps.Catalog != nil},
		{"sales", deps.Sales != nil},
		{"checkout", deps.Checkout != nil},
		{"orders", deps.Orders != nil},
		{"inquiries", deps.Inquiries != nil},
		{"content", deps.Content.complete()},
		{"webhooks", deps.Webhooks != nil},
		{"authService", deps.AuthService != nil},
		{"sessionManager", deps.SessionManager != nil},
		{"authenticator", deps.Authenticator != nil},
		{"uploads", deps.Uploads != nil},
	}
	for _, dep := range required {
		if !dep.ok {
			return nil, fmt.Errorf("handlers dependencies: %s is required", dep.name)
		}
	}

	return &Handlers{
		config:         deps.Config,
		db:             deps.DB,
		cache:          deps.Cache,
		catalog:        deps.Catalog,
		sales:          deps.Sales,
		checkout:       deps.Checkout,
		orders:         deps.Orders,
		inquiries:      deps.Inquiries,
		content:        deps.Content,
		webhooks:       deps.Webhooks,
		authService:    deps.AuthService,
		sessionManager: deps.SessionManager,
		authenticator:  deps.Authenticator,
		uploads:        deps.Uploads,
		logger:         logger.With("component", "handlers"),
	}, nil
}

func (c Content) complete() bool {
	return c.Events != nil && c.Parts != nil && c.Drivers != nil && c.Cars != nil && c.Blog != nil && c.Sponsors != nil
}

// Health reports whether the database and the cache answer. The cache is
// checked too because webhook dedupe cannot work without it.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()
	logger := h.loggerFromContext(ctx)

	body := map[string]string{"status": "healthy", "database": "ok", "cache": "ok"}
	status := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		body["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			logger.Error("cache health check failed", "error", err)
			body["cache"] = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}
	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}

	writeJSON(w, r, status, body)
}

// RequireAdmin authenticates admin API requests by bearer token or session
// and tags the request meter with the caller.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return h.authenticator.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principal := session.PrincipalFromContext(r.Context()); principal != nil {
			observability.MeterFromContext(r.Context()).SetAttributes(
				attribute.String("user.username", principal.Username),
				attribute.String("auth.method", string(principal.Method)),
			)
		}
		next.ServeHTTP(w, r)
	}))
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func SecureCookiesFromConfig(cfg *config.Config) bool {
	if cfg == nil {
		return false
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL != "" {
		if parsed, err := url.Parse(baseURL); err == nil {
			return strings.EqualFold(parsed.Scheme, "https")
		}
	}

	return cfg.Port == "443" || cfg.Port == "8443"
}

// decodeJSON reads a bounded JSON body into dst and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return &services.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}
