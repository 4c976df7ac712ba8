package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type SaleSettingsStore struct {
	pool *pgxpool.Pool
}

func NewSaleSettingsStore(pool *pgxpool.Pool) *SaleSettingsStore {
	return &SaleSettingsStore{pool: pool}
}

func (s *SaleSettingsStore) Get(ctx context.Context) (*SaleSettings, error) {
	var (
		settings   SaleSettings
		siteWide   pgtype.Numeric
		categories []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT site_wide_enabled, site_wide_percent, category_percent, version, updated_at
		FROM sale_settings WHERE id = 1
	`).Scan(&settings.SiteWideEnabled, &siteWide, &categories, &settings.Version, &settings.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "sale settings")
	}

	settings.SiteWidePercent = fromNumeric(siteWide)
	settings.CategoryPercent = map[string]decimal.Decimal{}
	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &settings.CategoryPercent); err != nil {
			return nil, fmt.Errorf("decode category sales: %w", err)
		}
	}
	return &settings, nil
}

// Update replaces the settings and bumps the version. The caller's Version
// and UpdatedAt are overwritten with the stored values.
func (s *SaleSettingsStore) Update(ctx context.Context, settings *SaleSettings) error {
	categories := settings.CategoryPercent
	if categories == nil {
		categories = map[string]decimal.Decimal{}
	}
	encoded, err := json.Marshal(categories)
	if err != nil {
		return err
	}

	err = s.pool.QueryRow(ctx, `
		UPDATE sale_settings
		SET site_wide_enabled = $1, site_wide_percent = $2, category_percent = $3,
		    version = version + 1, updated_at = NOW()
		WHERE id = 1
		RETURNING version, updated_at
	`, settings.SiteWideEnabled, toNumeric(settings.SiteWidePercent), encoded).Scan(&settings.Version, &settings.UpdatedAt)
	return notFound(err, "sale settings")
}
