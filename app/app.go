package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"

	"github.com/triplebarrelracing/storefront/internal/cache"
	"github.com/triplebarrelracing/storefront/internal/config"
	"github.com/triplebarrelracing/storefront/internal/crypto"
	"github.com/triplebarrelracing/storefront/internal/db"
	"github.com/triplebarrelracing/storefront/internal/email"
	"github.com/triplebarrelracing/storefront/internal/handlers"
	"github.com/triplebarrelracing/storefront/internal/logging"
	"github.com/triplebarrelracing/storefront/internal/models"
	"github.com/triplebarrelracing/storefront/internal/observability"
	"github.com/triplebarrelracing/storefront/internal/services"
	"github.com/triplebarrelracing/storefront/internal/session"
	"github.com/triplebarrelracing/storefront/internal/storage"
	"github.com/triplebarrelracing/storefront/internal/stripe"
)

const emailHTTPTimeout = 30 * time.Second

type App struct {
	Config         *config.Config
	Logger         *slog.Logger
	DB             *pgxpool.Pool
	CacheProvider  cache.Provider
	SessionManager *session.Manager
	Handlers       *handlers.Handlers

	alertLog    io.Closer
	stopExpiry  context.CancelFunc
	expiryDone  chan struct{}
	sentryReady bool
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, alertLog, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, alertLog: alertLog}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
		}); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize sentry: %w", err)
		}
		a.sentryReady = true
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		a.Close()
		return nil, err
	}
	database, err := db.Connect(startupCtx, cfg.DatabaseURL, logger.With("component", "db"))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.DB = database

	cacheProvider, err := cache.NewProvider(startupCtx, cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}
	a.CacheProvider = cacheProvider

	sessionStore, err := session.NewStore(startupCtx, session.Config{
		Provider:              cfg.SessionStoreProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	a.SessionManager = session.NewManager(sessionStore, handlers.SecureCookiesFromConfig(cfg))

	tokens, err := session.NewTokenIssuer(cfg.AdminTokenSecret)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	cipher, err := crypto.NewFieldCipher(cfg.EncryptionKey)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize field cipher: %w", err)
	}

	notifier, err := newNotifier(startupCtx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize email: %w", err)
	}
	if notifier == nil {
		logger.Info("email not configured, notifications disabled")
	}

	uploads, err := storage.NewLocalStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize upload storage: %w", err)
	}

	productStore := db.NewProductStore(database)
	orderStore := db.NewOrderStore(database)
	saleStore := db.NewSaleSettingsStore(database)
	inquiryStore := db.NewInquiryStore(database, cipher)
	eventStore := db.NewDocumentStore[models.Event, *models.Event](database, models.KindEvent)
	partStore := db.NewDocumentStore[models.Part, *models.Part](database, models.KindPart)
	driverStore := db.NewDocumentStore[models.Driver, *models.Driver](database, models.KindDriver)
	carStore := db.NewDocumentStore[models.Car, *models.Car](database, models.KindCar)
	blogStore := db.NewDocumentStore[models.BlogPost, *models.BlogPost](database, models.KindBlog)
	sponsorStore := db.NewDocumentStore[models.Sponsor, *models.Sponsor](database, models.KindSponsor)

	gateway := stripe.NewPaymentClient(cfg.StripeSecretKey,
		stripe.WithHTTPClient(observability.NewHTTPClient(cfg.PaymentTimeout)),
	)

	saleService := services.NewSaleService(saleStore, cacheProvider, logger.With("component", "sale_service"))
	catalogService := services.NewCatalogService(productStore, saleService, logger.With("component", "catalog_service"))
	checkoutService := services.NewCheckoutService(
		productStore,
		orderStore,
		saleService,
		gateway,
		notifier,
		services.CheckoutConfig{PaymentTimeout: cfg.PaymentTimeout},
		logger.With("component", "checkout_service"),
	)
	claimWindow := 2 * cfg.PaymentTimeout
	orderService := services.NewOrderAdminService(
		orderStore,
		services.OrderAdminConfig{ClaimWindow: claimWindow},
		logger.With("component", "order_service"),
	)
	inquiryService := services.NewInquiryService(services.InquiryDeps{
		Inquiries: inquiryStore,
		Products:  productStore,
		Parts:     partStore,
		Events:    eventStore,
		Drivers:   driverStore,
		Sales:     saleService,
		Notifier:  notifier,
	}, logger.With("component", "inquiry_service"))
	webhookService := services.NewPaymentWebhookService(
		orderStore,
		cacheProvider,
		notifier,
		services.PaymentWebhookConfig{ClaimWindow: claimWindow},
		logger.With("component", "webhook_service"),
	)
	authService, err := services.NewAuthService(services.AuthConfig{
		Username:     cfg.AdminUsername,
		PasswordHash: cfg.AdminPasswordHash,
	}, tokens, logger.With("component", "auth_service"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}

	contentLogger := logger.With("component", "content_service")
	h, err := handlers.New(handlers.Dependencies{
		Config:    cfg,
		DB:        database,
		Cache:     cacheProvider,
		Catalog:   catalogService,
		Sales:     saleService,
		Checkout:  checkoutService,
		Orders:    orderService,
		Inquiries: inquiryService,
		Content: handlers.Content{
			Events:   services.NewContentService[models.Event, *models.Event](eventStore, services.CheckEvent, contentLogger),
			Parts:    services.NewContentService[models.Part, *models.Part](partStore, services.CheckPart, contentLogger),
			Drivers:  services.NewContentService[models.Driver, *models.Driver](driverStore, nil, contentLogger),
			Cars:     services.NewContentService[models.Car, *models.Car](carStore, nil, contentLogger),
			Blog:     services.NewContentService[models.BlogPost, *models.BlogPost](blogStore, nil, contentLogger),
			Sponsors: services.NewContentService[models.Sponsor, *models.Sponsor](sponsorStore, nil, contentLogger),
		},
		Webhooks:       webhookService,
		AuthService:    authService,
		SessionManager: a.SessionManager,
		Authenticator:  session.NewAuthenticator(a.SessionManager, tokens),
		Uploads:        uploads,
		Logger:         logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}
	a.Handlers = h

	expiryLogger := logger.With("component", "order_expiry")
	a.startExpiry(func(ctx context.Context) {
		orderService.RunExpiry(logging.WithLogger(ctx, expiryLogger), cfg.PendingOrderTTL)
	})

	return a, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.stopExpiryLoop()
	if a.SessionManager != nil {
		closeSessionManager(a.Logger, a.SessionManager)
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.sentryReady {
		sentry.Flush(2 * time.Second)
	}
	if a.alertLog != nil {
		if err := a.alertLog.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close alert log: %v\n", err)
		}
	}
}

// startExpiry runs the pending order sweep in the background until Close.
func (a *App) startExpiry(run func(ctx context.Context)) {
	ctx, stop := context.WithCancel(context.Background())
	a.stopExpiry = stop
	a.expiryDone = make(chan struct{})
	go func() {
		defer close(a.expiryDone)
		run(ctx)
	}()
}

// stopExpiryLoop cancels the sweep and waits for it, so a sweep in flight
// never runs against a closed pool.
func (a *App) stopExpiryLoop() {
	if a.stopExpiry == nil {
		return
	}
	a.stopExpiry()
	<-a.expiryDone
	a.stopExpiry = nil
}

// newNotifier returns nil when email is not configured. A rejected API key
// is logged but does not stop the server; orders still go through.
func newNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (services.Notifier, error) {
	if !cfg.EmailEnabled() {
		return nil, nil
	}

	provider, err := email.NewProvider(email.Config{
		Provider: cfg.EmailProvider,
		APIKey:   cfg.EmailAPIKey,
		From:     cfg.EmailFrom,
		Domain:   cfg.EmailDomain,
	}, observability.NewHTTPClient(emailHTTPTimeout))
	if err != nil {
		return nil, err
	}
	if err := provider.ValidateAPIKey(ctx); err != nil {
		logger.Warn("email provider rejected API key, notifications may fail",
			logging.Alert("email_misconfigured"),
			"provider", cfg.EmailProvider,
			"error", err,
		)
	}
	renderer, err := email.NewRenderer()
	if err != nil {
		return nil, err
	}
	notifier, err := services.NewEmailNotifier(provider, renderer, services.EmailNotifierConfig{
		AdminEmail: cfg.AdminEmail,
		BaseURL:    cfg.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	return notifier, nil
}

// newLogger builds the process logger. When ALERT_LOG_PATH is set, records
// tagged as alerts are also appended to that file as JSON.
func newLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	var console slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.LogFormat)) {
	case "json":
		console = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	default:
		console = tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel})
	}

	if cfg.AlertLogPath == "" {
		return slog.New(console), nil, nil
	}

	file, err := os.OpenFile(cfg.AlertLogPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open alert log: %w", err)
	}
	alerts := logging.AlertsOnly(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return slog.New(logging.MultiHandler(console, alerts)), file, nil
}

func closeSessionManager(logger *slog.Logger, manager *session.Manager) {
	if manager == nil {
		return
	}
	if err := manager.Close(); err != nil && logger != nil {
		logger.Warn("failed to close session manager", "error", err)
	}
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
