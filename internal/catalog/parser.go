package catalog

// Seed catalog parsing.

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type SeedCatalog struct {
	Sales    SeedSales     `yaml:"sales"`
	Products []SeedProduct `yaml:"products"`
	Events   []SeedEvent   `yaml:"events"`
	Parts    []SeedPart    `yaml:"parts"`
}

type SeedSales struct {
	SiteWideEnabled bool              `yaml:"site_wide_enabled"`
	SiteWidePercent string            `yaml:"site_wide_percent"`
	Categories      map[string]string `yaml:"categories"`
}

type SeedProduct struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Category    string         `yaml:"category"`
	Price       string         `yaml:"price"`
	SalePercent *string        `yaml:"sale_percent"`
	Stock       int            `yaml:"stock"`
	Sizes       map[string]int `yaml:"sizes"`
	Featured    bool           `yaml:"featured"`
	Images      []string       `yaml:"images"`
}

type SeedEvent struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Date        time.Time `yaml:"date"`
	Location    string    `yaml:"location"`
	ImageURL    string    `yaml:"image_url"`
	TicketPrice string    `yaml:"ticket_price"`
}

type SeedPart struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	CarModel    string `yaml:"car_model"`
	Year        string `yaml:"year"`
	Category    string `yaml:"category"`
	Condition   string `yaml:"condition"`
	ImageURL    string `yaml:"image_url"`
	Stock       int    `yaml:"stock"`
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(content []byte) (*SeedCatalog, error) {
	var seed SeedCatalog
	if err := yaml.Unmarshal(content, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &seed, nil
}

func (p *Parser) ParseFromString(content string) (*SeedCatalog, error) {
	return p.Parse([]byte(content))
}

// ParseAmount reads a decimal written as a YAML string. Empty means zero.
func ParseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return amount, nil
}
