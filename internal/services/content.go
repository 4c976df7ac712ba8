package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/triplebarrelracing/storefront/internal/db"
	"github.com/triplebarrelracing/storefront/internal/logging"
	"github.com/triplebarrelracing/storefront/internal/models"
)

var contentValidator = newContentValidator()

// newContentValidator reports fields by their JSON names.
func newContentValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ContentService manages one kind of site content: events, parts, drivers,
// cars, blog posts or sponsors.
type ContentService[T any, PT db.Document[T]] struct {
	repo   DocumentRepository[T, PT]
	check  func(PT) error
	logger *slog.Logger
}

// NewContentService builds a service over repo. check runs after struct
// tag validation and may be nil.
func NewContentService[T any, PT db.Document[T]](repo DocumentRepository[T, PT], check func(PT) error, logger *slog.Logger) *ContentService[T, PT] {
	return &ContentService[T, PT]{repo: repo, check: check, logger: logger}
}

func (s *ContentService[T, PT]) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

func (s *ContentService[T, PT]) Kind() string {
	return s.repo.Kind()
}

func (s *ContentService[T, PT]) List(ctx context.Context) ([]PT, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.repo.Kind(), err)
	}
	return docs, nil
}

func (s *ContentService[T, PT]) Get(ctx context.Context, id uuid.UUID) (PT, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "failed to get "+s.repo.Kind())
	}
	return doc, nil
}

func (s *ContentService[T, PT]) Create(ctx context.Context, doc PT) (PT, error) {
	doc.SetMeta(uuid.Nil, time.Time{}, time.Time{})
	if err := s.validate(doc); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", s.repo.Kind(), err)
	}

	s.loggerFromContext(ctx).Info("content created", "kind", s.repo.Kind(), "id", doc.DocumentID())
	return doc, nil
}

// Update applies a partial JSON document on top of the stored one. Fields
// absent from patch keep their current values.
func (s *ContentService[T, PT]) Update(ctx context.Context, id uuid.UUID, patch []byte) (PT, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "failed to get "+s.repo.Kind())
	}

	if err := json.Unmarshal(patch, doc); err != nil {
		return nil, invalid("body", "invalid JSON: "+err.Error())
	}
	doc.SetMeta(id, time.Time{}, time.Time{})

	if err := s.validate(doc); err != nil {
		return nil, err
	}

	if err := s.repo.Replace(ctx, id, doc); err != nil {
		return nil, notFoundOr(err, "failed to update "+s.repo.Kind())
	}

	s.loggerFromContext(ctx).Info("content updated", "kind", s.repo.Kind(), "id", id)
	return doc, nil
}

func (s *ContentService[T, PT]) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFoundOr(err, "failed to delete "+s.repo.Kind())
	}
	s.loggerFromContext(ctx).Info("content deleted", "kind", s.repo.Kind(), "id", id)
	return nil
}

func (s *ContentService[T, PT]) validate(doc PT) error {
	if err := contentValidator.Struct(doc); err != nil {
		return fromValidator(err)
	}
	if s.check != nil {
		return s.check(doc)
	}
	return nil
}

// CheckPart rejects parts without a positive price.
func CheckPart(part *models.Part) error {
	if !part.Price.IsPositive() {
		return invalid("price", "must be positive")
	}
	if !part.Price.Equal(part.Price.Round(2)) {
		return invalid("price", "must have at most two decimal places")
	}
	return nil
}

// CheckEvent rejects negative ticket prices. Free events are allowed.
func CheckEvent(event *models.Event) error {
	if event.TicketPrice.IsNegative() {
		return invalid("ticket_price", "cannot be negative")
	}
	return nil
}
