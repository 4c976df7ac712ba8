package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Content kinds stored as documents.
const (
	KindEvent   = "event"
	KindPart    = "part"
	KindDriver  = "driver"
	KindCar     = "car"
	KindBlog    = "blog"
	KindSponsor = "sponsor"
)

// Meta is embedded by every content document.
type Meta struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Meta) SetMeta(id uuid.UUID, createdAt, updatedAt time.Time) {
	m.ID = id
	m.CreatedAt = createdAt
	m.UpdatedAt = updatedAt
}

func (m *Meta) DocumentID() uuid.UUID {
	return m.ID
}

type Event struct {
	Meta
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Date        time.Time       `json:"date" validate:"required"`
	Location    string          `json:"location" validate:"required,max=200"`
	ImageURL    string          `json:"image_url" validate:"omitempty,max=2048"`
	TicketPrice decimal.Decimal `json:"ticket_price"`
}

type Part struct {
	Meta
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Price       decimal.Decimal `json:"price"`
	CarModel    string          `json:"car_model" validate:"max=120"`
	Year        string          `json:"year" validate:"max=20"`
	Category    string          `json:"category" validate:"max=120"`
	Condition   string          `json:"condition" validate:"omitempty,oneof=new used refurbished"`
	ImageURL    string          `json:"image_url" validate:"omitempty,max=2048"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

type Driver struct {
	Meta
	Name     string `json:"name" validate:"required,max=120"`
	Bio      string `json:"bio" validate:"max=5000"`
	CarName  string `json:"car_name" validate:"max=120"`
	Email    string `json:"email" validate:"omitempty,email"`
	ImageURL string `json:"image_url" validate:"omitempty,max=2048"`
}

type Car struct {
	Meta
	Name       string            `json:"name" validate:"required,max=120"`
	Year       string            `json:"year" validate:"max=20"`
	Make       string            `json:"make" validate:"max=120"`
	Model      string            `json:"model" validate:"max=120"`
	Specs      map[string]string `json:"specs"`
	DriverName string            `json:"driver_name" validate:"max=120"`
	ImageURLs  []string          `json:"image_urls"`
}

type BlogPost struct {
	Meta
	Title    string   `json:"title" validate:"required,max=200"`
	Content  string   `json:"content" validate:"required"`
	Category string   `json:"category" validate:"max=120"`
	Author   string   `json:"author" validate:"max=120"`
	Images   []string `json:"images"`
}

type Sponsor struct {
	Meta
	Name         string `json:"name" validate:"required,max=200"`
	Description  string `json:"description" validate:"max=5000"`
	LogoURL      string `json:"logo_url" validate:"omitempty,max=2048"`
	WebsiteURL   string `json:"website_url" validate:"omitempty,url"`
	InstagramURL string `json:"instagram_url" validate:"omitempty,url"`
	FacebookURL  string `json:"facebook_url" validate:"omitempty,url"`
}
