package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/shopspring/decimal"

	"github.com/triplebarrelracing/storefront/internal/cache"
	"github.com/triplebarrelracing/storefront/internal/catalog"
	"github.com/triplebarrelracing/storefront/internal/db"
	"github.com/triplebarrelracing/storefront/internal/logging"
	"github.com/triplebarrelracing/storefront/internal/models"
)

const saleSettingsCacheTTL = 5 * time.Second

// SaleService reads and updates the store-wide sale configuration. Reads go
// through a short-lived cache that is dropped on every update.
type SaleService struct {
	repo      SaleSettingsRepository
	cache     cache.Provider
	validator *catalog.Validator
	logger    *slog.Logger
}

func NewSaleService(repo SaleSettingsRepository, cacheProvider cache.Provider, logger *slog.Logger) *SaleService {
	return &SaleService{
		repo:      repo,
		cache:     cacheProvider,
		validator: catalog.NewValidator(),
		logger:    logger,
	}
}

func (s *SaleService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// Current returns the active settings. Callers read it once per request and
// price everything in that request against the same snapshot.
func (s *SaleService) Current(ctx context.Context) (*models.SaleSettings, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cache.SaleSettingsKey); err == nil {
			var settings models.SaleSettings
			if json.Unmarshal([]byte(raw), &settings) == nil {
				return &settings, nil
			}
		} else if !errors.Is(err, cache.ErrNotFound) {
			s.loggerFromContext(ctx).Warn("sale settings cache read failed", "error", err)
		}
	}

	settings, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return &models.SaleSettings{CategoryPercent: map[string]decimal.Decimal{}}, nil
		}
		return nil, fmt.Errorf("failed to load sale settings: %w", err)
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(settings); err == nil {
			if err := s.cache.Set(ctx, cache.SaleSettingsKey, string(encoded), saleSettingsCacheTTL); err != nil {
				s.loggerFromContext(ctx).Warn("sale settings cache write failed", "error", err)
			}
		}
	}
	return settings, nil
}

type UpdateSaleSettingsInput struct {
	SiteWideEnabled bool                       `json:"site_wide_sale"`
	SiteWidePercent decimal.Decimal            `json:"site_wide_discount_percent"`
	CategoryPercent map[string]decimal.Decimal `json:"category_sales"`
}

func (s *SaleService) Update(ctx context.Context, input UpdateSaleSettingsInput) (*models.SaleSettings, error) {
	span := sentry.StartSpan(
		ctx,
		"service.sales.update",
		sentry.WithOpName("service.sales"),
		sentry.WithDescription("Update"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	settings := &models.SaleSettings{
		SiteWideEnabled: input.SiteWideEnabled,
		SiteWidePercent: input.SiteWidePercent,
		CategoryPercent: input.CategoryPercent,
	}
	if settings.CategoryPercent == nil {
		settings.CategoryPercent = map[string]decimal.Decimal{}
	}
	if err := s.validator.ValidateSaleSettings(settings); err != nil {
		return nil, invalid("sales_settings", err.Error())
	}

	if err := s.repo.Update(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to update sale settings: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, cache.SaleSettingsKey); err != nil {
			s.loggerFromContext(ctx).Warn("failed to drop cached sale settings", "error", err)
		}
	}

	s.loggerFromContext(ctx).Info("sale settings updated",
		"version", settings.Version,
		"site_wide_enabled", settings.SiteWideEnabled,
		"site_wide_percent", settings.SiteWidePercent.String(),
		"categories", len(settings.CategoryPercent),
	)
	return settings, nil
}
