package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	BaseURL     string `env:"BASE_URL" validate:"omitempty,url"`
	Port        string `env:"PORT" envDefault:"8080"`

	// TrustProxyHeaders takes the client IP from X-Forwarded-For when the
	// server runs behind a load balancer.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	LogLevel     slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat    string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	AlertLogPath string     `env:"ALERT_LOG_PATH"`
	SentryDSN    string     `env:"SENTRY_DSN" validate:"omitempty,url"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	SessionStoreProvider  string `env:"SESSION_STORE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis,required_if=SessionStoreProvider redis"`

	EncryptionKey string `env:"ENCRYPTION_KEY,required" validate:"required,len=32"`

	AdminUsername     string `env:"ADMIN_USERNAME,required" validate:"required"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH,required" validate:"required"`
	AdminTokenSecret  string `env:"ADMIN_TOKEN_SECRET,required" validate:"required,min=32"`

	StripeSecretKey     string        `env:"STRIPE_SECRET_KEY,required" validate:"required"`
	StripeWebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET"`
	PaymentTimeout      time.Duration `env:"PAYMENT_TIMEOUT" envDefault:"15s" validate:"gt=0"`
	PendingOrderTTL     time.Duration `env:"PENDING_ORDER_TTL" envDefault:"30m" validate:"gt=0"`

	EmailProvider string `env:"EMAIL_PROVIDER" validate:"omitempty,oneof=resend postmark mailgun"`
	EmailAPIKey   string `env:"EMAIL_API_KEY"`
	EmailFrom     string `env:"EMAIL_FROM"`
	EmailDomain   string `env:"EMAIL_DOMAIN"`
	AdminEmail    string `env:"ADMIN_EMAIL" validate:"omitempty,email"`

	UploadDir      string `env:"UPLOAD_DIR" envDefault:"./uploads" validate:"required"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"5242880" validate:"gt=0"`
}

var configValidator = validator.New()

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// EmailEnabled reports whether outbound mail is configured.
func (c *Config) EmailEnabled() bool {
	return strings.TrimSpace(c.EmailProvider) != ""
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	if _, err := bcrypt.Cost([]byte(c.AdminPasswordHash)); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD_HASH must be a bcrypt hash: %w", err)
	}

	if c.PendingOrderTTL <= c.PaymentTimeout {
		return fmt.Errorf("PENDING_ORDER_TTL must be longer than PAYMENT_TIMEOUT")
	}

	hasProvider := c.EmailEnabled()
	hasAPIKey := strings.TrimSpace(c.EmailAPIKey) != ""
	hasFrom := strings.TrimSpace(c.EmailFrom) != ""
	if hasProvider != hasAPIKey || hasProvider != hasFrom {
		return fmt.Errorf("EMAIL_PROVIDER, EMAIL_API_KEY and EMAIL_FROM must be set together")
	}
	if c.EmailProvider == "mailgun" && strings.TrimSpace(c.EmailDomain) == "" {
		return fmt.Errorf("EMAIL_DOMAIN is required for mailgun")
	}

	baseURL := strings.TrimSpace(c.BaseURL)
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil || parsed.Hostname() == "" {
			return fmt.Errorf("BASE_URL must be a valid absolute URL")
		}
		if !isLocalHost(parsed.Hostname()) && !strings.EqualFold(parsed.Scheme, "https") {
			return fmt.Errorf("BASE_URL must use https outside local development")
		}
	}

	return nil
}

func isLocalHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
