package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleSettings is the store-wide sale configuration. A category with no
// entry in CategoryPercent has no category sale; an entry of 0 is an
// explicit 0% sale.
type SaleSettings struct {
	SiteWideEnabled bool                       `json:"site_wide_sale"`
	SiteWidePercent decimal.Decimal            `json:"site_wide_discount_percent"`
	CategoryPercent map[string]decimal.Decimal `json:"category_sales"`
	Version         int64                      `json:"version"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

func (s *SaleSettings) CategorySale(category string) (decimal.Decimal, bool) {
	if s == nil || s.CategoryPercent == nil {
		return decimal.Zero, false
	}
	pct, ok := s.CategoryPercent[category]
	return pct, ok
}
