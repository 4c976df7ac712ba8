package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type StockModel string

const (
	StockFlat  StockModel = "flat"
	StockSized StockModel = "sized"
)

// Product is a merch item. A product carries either a single flat stock
// count or per-size stock, never both.
type Product struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	BasePrice   decimal.Decimal  `json:"price"`
	SalePercent *decimal.Decimal `json:"sale_percent"`
	Stock       int              `json:"stock"`
	Sizes       map[string]int   `json:"sizes"`
	Featured    bool             `json:"featured"`
	ImageURLs   []string         `json:"image_urls"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (p *Product) StockModel() StockModel {
	if len(p.Sizes) > 0 {
		return StockSized
	}
	return StockFlat
}

// NormalizeStock enforces the single active stock model: sized products
// carry no flat count and flat products carry no size map.
func (p *Product) NormalizeStock() {
	if len(p.Sizes) == 0 {
		p.Sizes = nil
		return
	}
	p.Stock = 0
}

// TotalStock sums every size for sized products.
func (p *Product) TotalStock() int {
	if p.StockModel() == StockFlat {
		return p.Stock
	}
	total := 0
	for _, qty := range p.Sizes {
		total += qty
	}
	return total
}

// SizeNames returns the product's sizes in a stable order.
func (p *Product) SizeNames() []string {
	names := make([]string, 0, len(p.Sizes))
	for size := range p.Sizes {
		names = append(names, size)
	}
	sort.Strings(names)
	return names
}

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	Category     string
	FeaturedOnly bool
}
