package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/triplebarrelracing/storefront/internal/catalog"
	"github.com/triplebarrelracing/storefront/internal/db"
	"github.com/triplebarrelracing/storefront/internal/inventory"
	"github.com/triplebarrelracing/storefront/internal/logging"
	"github.com/triplebarrelracing/storefront/internal/models"
)

// PriceView is the resolved price shown next to an item.
type PriceView struct {
	EffectivePrice  decimal.Decimal        `json:"effective_price"`
	DiscountPercent decimal.Decimal        `json:"discount_percent"`
	DiscountSource  catalog.DiscountSource `json:"discount_source"`
	OnSale          bool                   `json:"on_sale"`
}

func newPriceView(p catalog.Price) PriceView {
	return PriceView{
		EffectivePrice:  p.Effective,
		DiscountPercent: p.DiscountPercent,
		DiscountSource:  p.Source,
		OnSale:          p.Discounted(),
	}
}

type PricedProduct struct {
	*models.Product
	PriceView
	InStock bool `json:"in_stock"`
}

type PricedPart struct {
	*models.Part
	PriceView
}

type PricedEvent struct {
	*models.Event
	PriceView
}

type CatalogService struct {
	products  ProductRepository
	sales     *SaleService
	pricer    *catalog.Pricer
	validator *catalog.Validator
	logger    *slog.Logger
}

func NewCatalogService(products ProductRepository, sales *SaleService, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		products:  products,
		sales:     sales,
		pricer:    catalog.NewPricer(),
		validator: catalog.NewValidator(),
		logger:    logger,
	}
}

func (s *CatalogService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

func (s *CatalogService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]PricedProduct, error) {
	settings, err := s.sales.Current(ctx)
	if err != nil {
		return nil, err
	}

	products, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	priced := make([]PricedProduct, 0, len(products))
	for _, product := range products {
		priced = append(priced, s.priceProduct(product, settings))
	}
	return priced, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*PricedProduct, error) {
	settings, err := s.sales.Current(ctx)
	if err != nil {
		return nil, err
	}

	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "failed to get product")
	}

	priced := s.priceProduct(product, settings)
	return &priced, nil
}

func (s *CatalogService) priceProduct(product *models.Product, settings *models.SaleSettings) PricedProduct {
	return PricedProduct{
		Product:   product,
		PriceView: newPriceView(s.pricer.Resolve(product, settings)),
		InStock:   product.TotalStock() > 0,
	}
}

// PriceParts prices parts against one settings snapshot.
func (s *CatalogService) PriceParts(ctx context.Context, parts []*models.Part) ([]PricedPart, error) {
	settings, err := s.sales.Current(ctx)
	if err != nil {
		return nil, err
	}
	priced := make([]PricedPart, 0, len(parts))
	for _, part := range parts {
		priced = append(priced, PricedPart{Part: part, PriceView: newPriceView(s.pricer.ResolvePart(part, settings))})
	}
	return priced, nil
}

// PriceEvents attaches ticket prices. Events are never discounted.
func (s *CatalogService) PriceEvents(events []*models.Event) []PricedEvent {
	priced := make([]PricedEvent, 0, len(events))
	for _, event := range events {
		price := catalog.Price{Base: event.TicketPrice, Effective: event.TicketPrice, Source: catalog.SourceNone}
		priced = append(priced, PricedEvent{Event: event, PriceView: newPriceView(price)})
	}
	return priced
}

func (s *CatalogService) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	product.ID = uuid.Nil
	product.NormalizeStock()
	if err := s.validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.loggerFromContext(ctx).Info("product created", "product_id", product.ID, "name", product.Name)
	return product, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, patch *ProductPatch) (*models.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "failed to get product")
	}

	patch.apply(product)
	if err := s.validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.products.Update(ctx, product); err != nil {
		return nil, notFoundOr(err, "failed to update product")
	}

	s.loggerFromContext(ctx).Info("product updated", "product_id", product.ID, "stock_model", product.StockModel())
	return product, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return notFoundOr(err, "failed to delete product")
	}
	s.loggerFromContext(ctx).Info("product deleted", "product_id", id)
	return nil
}

func (s *CatalogService) validateProduct(product *models.Product) error {
	err := s.validator.ValidateProduct(product)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, catalog.ErrNameRequired):
		return invalid("name", "is required")
	case errors.Is(err, catalog.ErrCategoryRequired):
		return invalid("category", "is required")
	case errors.Is(err, catalog.ErrPriceNotPositive):
		return invalid("price", "must be positive")
	case errors.Is(err, catalog.ErrPercentRange):
		return invalid("sale_percent", "must be between 0 and 100")
	case errors.Is(err, catalog.ErrNegativeStock), errors.Is(err, catalog.ErrEmptySizeName):
		return invalid("stock", err.Error())
	default:
		return invalid("product", err.Error())
	}
}

// Nullable distinguishes an absent JSON field from an explicit null.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// ProductPatch is a partial product update. Absent fields are left alone.
// "sizes": null switches the product back to flat stock and
// "sale_percent": null removes the item override.
type ProductPatch struct {
	Name        *string                   `json:"name"`
	Description *string                   `json:"description"`
	Category    *string                   `json:"category"`
	Price       *decimal.Decimal          `json:"price"`
	SalePercent Nullable[decimal.Decimal] `json:"sale_percent"`
	Stock       *int                      `json:"stock"`
	Sizes       Nullable[map[string]int]  `json:"sizes"`
	Featured    *bool                     `json:"featured"`
	ImageURLs   Nullable[[]string]        `json:"image_urls"`
}

func (p *ProductPatch) apply(product *models.Product) {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.Price != nil {
		product.BasePrice = *p.Price
	}
	if p.SalePercent.Set {
		product.SalePercent = p.SalePercent.Value
	}
	if p.Featured != nil {
		product.Featured = *p.Featured
	}
	if p.ImageURLs.Set {
		product.ImageURLs = nil
		if p.ImageURLs.Value != nil {
			product.ImageURLs = *p.ImageURLs.Value
		}
	}

	if p.Sizes.Set {
		product.Sizes = nil
		if p.Sizes.Value != nil {
			product.Sizes = *p.Sizes.Value
		}
	}
	if p.Stock != nil && product.StockModel() == models.StockFlat {
		product.Stock = *p.Stock
	}
	product.NormalizeStock()
}

// checkAvailability maps inventory errors onto service errors.
func checkAvailability(product *models.Product, size string) error {
	err := inventory.Check(product, size)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, inventory.ErrSizeRequired):
		return invalid("size", "is required for this product")
	case errors.Is(err, inventory.ErrUnknownSize):
		return invalid("size", fmt.Sprintf("%q is not offered for this product", size))
	default:
		return err
	}
}

// notFoundOr converts storage not-found errors and wraps everything else.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}
