package catalog

// Catalog validation shared by the admin API and the seed loader.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/triplebarrelracing/storefront/internal/models"
)

var (
	ErrNameRequired     = errors.New("name is required")
	ErrCategoryRequired = errors.New("category is required")
	ErrPriceNotPositive = errors.New("price must be positive")
	ErrPercentRange     = errors.New("percent must be between 0 and 100")
	ErrNegativeStock    = errors.New("stock must be zero or positive")
	ErrEmptySizeName    = errors.New("size names cannot be empty")
)

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) ValidateProduct(product *models.Product) error {
	if strings.TrimSpace(product.Name) == "" {
		return ErrNameRequired
	}
	if strings.TrimSpace(product.Category) == "" {
		return ErrCategoryRequired
	}
	if !product.BasePrice.IsPositive() {
		return ErrPriceNotPositive
	}
	if !product.BasePrice.Equal(product.BasePrice.Round(2)) {
		return fmt.Errorf("price %s has more than two decimal places", product.BasePrice)
	}
	if product.SalePercent != nil && !ValidPercent(*product.SalePercent) {
		return fmt.Errorf("sale_percent: %w", ErrPercentRange)
	}
	if product.Stock < 0 {
		return ErrNegativeStock
	}
	for size, qty := range product.Sizes {
		if strings.TrimSpace(size) == "" {
			return ErrEmptySizeName
		}
		if qty < 0 {
			return fmt.Errorf("size %s: %w", size, ErrNegativeStock)
		}
	}

	return nil
}

func (v *Validator) ValidateSaleSettings(settings *models.SaleSettings) error {
	if !ValidPercent(settings.SiteWidePercent) {
		return fmt.Errorf("site_wide_discount_percent: %w", ErrPercentRange)
	}
	for category, pct := range settings.CategoryPercent {
		if strings.TrimSpace(category) == "" {
			return ErrCategoryRequired
		}
		if !ValidPercent(pct) {
			return fmt.Errorf("category %s: %w", category, ErrPercentRange)
		}
	}

	return nil
}

// Validate checks a seed catalog and converts it into domain records.
func (v *Validator) Validate(seed *SeedCatalog) (*Catalog, error) {
	out := &Catalog{}

	sales, err := buildSales(&seed.Sales)
	if err != nil {
		return nil, fmt.Errorf("sales validation failed: %w", err)
	}
	if err := v.ValidateSaleSettings(sales); err != nil {
		return nil, fmt.Errorf("sales validation failed: %w", err)
	}
	out.Sales = sales

	names := make(map[string]bool)
	for i := range seed.Products {
		product, err := buildProduct(&seed.Products[i])
		if err != nil {
			return nil, fmt.Errorf("product %d validation failed: %w", i, err)
		}
		if err := v.ValidateProduct(product); err != nil {
			return nil, fmt.Errorf("product %d validation failed: %w", i, err)
		}
		if names[product.Name] {
			return nil, fmt.Errorf("duplicate product name: %s", product.Name)
		}
		names[product.Name] = true
		out.Products = append(out.Products, product)
	}

	for i, seedEvent := range seed.Events {
		price, err := ParseAmount(seedEvent.TicketPrice)
		if err != nil {
			return nil, fmt.Errorf("event %d validation failed: %w", i, err)
		}
		if strings.TrimSpace(seedEvent.Name) == "" {
			return nil, fmt.Errorf("event %d validation failed: %w", i, ErrNameRequired)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("event %d validation failed: ticket price cannot be negative", i)
		}
		out.Events = append(out.Events, &models.Event{
			Name:        seedEvent.Name,
			Description: seedEvent.Description,
			Date:        seedEvent.Date,
			Location:    seedEvent.Location,
			ImageURL:    seedEvent.ImageURL,
			TicketPrice: price,
		})
	}

	for i, seedPart := range seed.Parts {
		price, err := ParseAmount(seedPart.Price)
		if err != nil {
			return nil, fmt.Errorf("part %d validation failed: %w", i, err)
		}
		if strings.TrimSpace(seedPart.Name) == "" {
			return nil, fmt.Errorf("part %d validation failed: %w", i, ErrNameRequired)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("part %d validation failed: %w", i, ErrPriceNotPositive)
		}
		if seedPart.Stock < 0 {
			return nil, fmt.Errorf("part %d validation failed: %w", i, ErrNegativeStock)
		}
		out.Parts = append(out.Parts, &models.Part{
			Name:        seedPart.Name,
			Description: seedPart.Description,
			Price:       price,
			CarModel:    seedPart.CarModel,
			Year:        seedPart.Year,
			Category:    seedPart.Category,
			Condition:   seedPart.Condition,
			ImageURL:    seedPart.ImageURL,
			Stock:       seedPart.Stock,
		})
	}

	return out, nil
}

// Catalog is a validated seed ready to be written to storage.
type Catalog struct {
	Sales    *models.SaleSettings
	Products []*models.Product
	Events   []*models.Event
	Parts    []*models.Part
}

func buildSales(seed *SeedSales) (*models.SaleSettings, error) {
	siteWide, err := ParseAmount(seed.SiteWidePercent)
	if err != nil {
		return nil, err
	}

	settings := &models.SaleSettings{
		SiteWideEnabled: seed.SiteWideEnabled,
		SiteWidePercent: siteWide,
		CategoryPercent: make(map[string]decimal.Decimal, len(seed.Categories)),
	}
	for category, raw := range seed.Categories {
		pct, err := ParseAmount(raw)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}
		settings.CategoryPercent[category] = pct
	}

	return settings, nil
}

func buildProduct(seed *SeedProduct) (*models.Product, error) {
	price, err := ParseAmount(seed.Price)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:        seed.Name,
		Description: seed.Description,
		Category:    seed.Category,
		BasePrice:   price,
		Stock:       seed.Stock,
		Sizes:       seed.Sizes,
		Featured:    seed.Featured,
		ImageURLs:   seed.Images,
	}
	if seed.SalePercent != nil {
		pct, err := ParseAmount(*seed.SalePercent)
		if err != nil {
			return nil, fmt.Errorf("sale_percent: %w", err)
		}
		product.SalePercent = &pct
	}
	product.NormalizeStock()

	return product, nil
}
