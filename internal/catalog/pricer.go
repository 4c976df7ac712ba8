package catalog

// Package catalog resolves sale prices and loads seed catalogs.

import (
	"github.com/shopspring/decimal"

	"github.com/triplebarrelracing/storefront/internal/models"
)

// DiscountSource names the rule that produced an effective price.
type DiscountSource string

const (
	SourceNone     DiscountSource = "none"
	SourceItem     DiscountSource = "item"
	SourceCategory DiscountSource = "category"
	SourceSiteWide DiscountSource = "site_wide"
)

// PartsCategory is the category key consulted for part pricing.
const PartsCategory = "Parts"

var (
	hundred = decimal.NewFromInt(100)
)

// Price is the outcome of sale resolution for a single item.
type Price struct {
	Base            decimal.Decimal
	Effective       decimal.Decimal
	DiscountPercent decimal.Decimal
	Source          DiscountSource
}

func (p Price) Discounted() bool {
	return p.Effective.LessThan(p.Base)
}

type Pricer struct{}

func NewPricer() *Pricer {
	return &Pricer{}
}

// Resolve returns the effective price of a product under the given sale
// settings. The first matching rule wins: item override, then category,
// then site-wide, then the base price.
func (p *Pricer) Resolve(product *models.Product, settings *models.SaleSettings) Price {
	return p.ResolveAmount(product.BasePrice, product.SalePercent, product.Category, settings)
}

// ResolvePart prices a part. Parts have no item override.
func (p *Pricer) ResolvePart(part *models.Part, settings *models.SaleSettings) Price {
	return p.ResolveAmount(part.Price, nil, PartsCategory, settings)
}

func (p *Pricer) ResolveAmount(base decimal.Decimal, itemPercent *decimal.Decimal, category string, settings *models.SaleSettings) Price {
	pct, source := selectDiscount(itemPercent, category, settings)
	if source == SourceNone {
		return Price{Base: base, Effective: base, DiscountPercent: decimal.Zero, Source: SourceNone}
	}

	pct = clampPercent(pct)
	return Price{
		Base:            base,
		Effective:       ApplyDiscount(base, pct),
		DiscountPercent: pct,
		Source:          source,
	}
}

func selectDiscount(itemPercent *decimal.Decimal, category string, settings *models.SaleSettings) (decimal.Decimal, DiscountSource) {
	if itemPercent != nil {
		return *itemPercent, SourceItem
	}
	if pct, ok := settings.CategorySale(category); ok {
		return pct, SourceCategory
	}
	if settings != nil && settings.SiteWideEnabled {
		return settings.SiteWidePercent, SourceSiteWide
	}
	return decimal.Zero, SourceNone
}

// ApplyDiscount computes base × (1 − pct/100) rounded half-up to cents.
func ApplyDiscount(base, pct decimal.Decimal) decimal.Decimal {
	effective := base.Mul(hundred.Sub(pct)).Div(hundred).Round(2)
	if effective.GreaterThan(base) {
		return base
	}
	if effective.IsNegative() {
		return decimal.Zero
	}
	return effective
}

func clampPercent(pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// ValidPercent reports whether pct is within [0, 100].
func ValidPercent(pct decimal.Decimal) bool {
	return !pct.IsNegative() && !pct.GreaterThan(hundred)
}
