package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/triplebarrelracing/storefront/internal/catalog"
	"github.com/triplebarrelracing/storefront/internal/inventory"
	"github.com/triplebarrelracing/storefront/internal/logging"
	"github.com/triplebarrelracing/storefront/internal/models"
	"github.com/triplebarrelracing/storefront/internal/observability"
)

const (
	maxInquiryMessageLength = 5000
	defaultInquiryListLimit = 100
	maxInquiryListLimit     = 500
)

// InquiryService records contact requests and notifies staff.
type InquiryService struct {
	inquiries InquiryRepository
	products  ProductRepository
	parts     DocumentRepository[models.Part, *models.Part]
	events    DocumentRepository[models.Event, *models.Event]
	drivers   DocumentRepository[models.Driver, *models.Driver]
	sales     *SaleService
	pricer    *catalog.Pricer
	notifier  Notifier
	logger    *slog.Logger
}

type InquiryDeps struct {
	Inquiries InquiryRepository
	Products  ProductRepository
	Parts     DocumentRepository[models.Part, *models.Part]
	Events    DocumentRepository[models.Event, *models.Event]
	Drivers   DocumentRepository[models.Driver, *models.Driver]
	Sales     *SaleService
	Notifier  Notifier
}

func NewInquiryService(deps InquiryDeps, logger *slog.Logger) *InquiryService {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &InquiryService{
		inquiries: deps.Inquiries,
		products:  deps.Products,
		parts:     deps.Parts,
		events:    deps.Events,
		drivers:   deps.Drivers,
		sales:     deps.Sales,
		pricer:    catalog.NewPricer(),
		notifier:  notifier,
		logger:    logger,
	}
}

func (s *InquiryService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// ItemRef points an inquiry at a catalog item. The stored snapshot is built
// from the catalog, never from client-supplied names or prices.
type ItemRef struct {
	Kind models.ItemKind `json:"kind"`
	ID   uuid.UUID       `json:"id"`
	Size string          `json:"size"`
}

// SubmitInquiryInput is the public contact form. EventName is accepted from
// older clients and ignored; the stored name comes from the event itself.
type SubmitInquiryInput struct {
	models.Contact
	Type      models.InquiryType `json:"inquiry_type"`
	Message   string             `json:"message"`
	Item      *ItemRef           `json:"item"`
	EventID   *uuid.UUID         `json:"event_id"`
	EventName string             `json:"event_name"`
}

func (s *InquiryService) Submit(ctx context.Context, input SubmitInquiryInput) (*models.Inquiry, error) {
	if input.Type == "" {
		input.Type = models.InquiryGeneral
	}
	if !input.Type.Valid() {
		return nil, invalid("inquiry_type", fmt.Sprintf("unknown inquiry type %q", input.Type))
	}

	inquiry, err := s.newInquiry(input.Type, input.Contact, input.Message)
	if err != nil {
		return nil, err
	}

	if input.Item != nil {
		snapshot, err := s.snapshot(ctx, *input.Item)
		if err != nil {
			return nil, err
		}
		inquiry.Item = snapshot
	}

	if input.EventID != nil {
		if err := s.attachEvent(ctx, inquiry, *input.EventID); err != nil {
			return nil, err
		}
	}

	return s.store(ctx, inquiry)
}

// attachEvent records the event an inquiry is about. It must exist and, if
// the inquiry also carries an event item, be the same event.
func (s *InquiryService) attachEvent(ctx context.Context, inquiry *models.Inquiry, eventID uuid.UUID) error {
	if eventID == uuid.Nil {
		return invalid("event_id", "must be a valid event id")
	}
	if inquiry.Item != nil && inquiry.Item.Kind == models.ItemEvent && inquiry.Item.ID != eventID {
		return invalid("event_id", "does not match the event item")
	}
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return notFoundOr(err, "failed to get event")
	}
	inquiry.EventID = &event.ID
	inquiry.EventName = event.Name
	return nil
}

type DriverContactInput struct {
	models.Contact
	DriverID uuid.UUID `json:"driver_id"`
	Message  string    `json:"message"`
}

// SubmitDriverContact records a general inquiry addressed to a team driver.
func (s *InquiryService) SubmitDriverContact(ctx context.Context, input DriverContactInput) (*models.Inquiry, error) {
	if input.DriverID == uuid.Nil {
		return nil, invalid("driver_id", "is required")
	}
	driver, err := s.drivers.Get(ctx, input.DriverID)
	if err != nil {
		return nil, notFoundOr(err, "failed to get driver")
	}

	inquiry, err := s.newInquiry(models.InquiryGeneral, input.Contact, input.Message)
	if err != nil {
		return nil, err
	}
	inquiry.DriverID = &driver.ID
	inquiry.Message = fmt.Sprintf("[For driver %s] %s", driver.Name, inquiry.Message)

	return s.store(ctx, inquiry)
}

func (s *InquiryService) newInquiry(kind models.InquiryType, raw models.Contact, message string) (*models.Inquiry, error) {
	contact, err := normalizeContact(raw, inquiryContactFields)
	if err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, invalid("message", "is required")
	}
	if len(message) > maxInquiryMessageLength {
		return nil, invalid("message", fmt.Sprintf("must be at most %d characters", maxInquiryMessageLength))
	}

	return &models.Inquiry{
		Type:    kind,
		Contact: contact,
		Message: message,
		Status:  models.InquiryPending,
	}, nil
}

func (s *InquiryService) snapshot(ctx context.Context, ref ItemRef) (*models.ItemSnapshot, error) {
	if ref.ID == uuid.Nil {
		return nil, invalid("item.id", "is required")
	}

	switch ref.Kind {
	case models.ItemProduct:
		product, err := s.products.GetByID(ctx, ref.ID)
		if err != nil {
			return nil, notFoundOr(err, "failed to get product")
		}
		size := inventory.NormalizeSize(product, ref.Size)
		if size != "" {
			if _, ok := product.Sizes[size]; !ok {
				return nil, invalid("item.size", fmt.Sprintf("%q is not offered for this product", size))
			}
		}
		settings, err := s.sales.Current(ctx)
		if err != nil {
			return nil, err
		}
		price := s.pricer.Resolve(product, settings)
		return &models.ItemSnapshot{Kind: ref.Kind, ID: product.ID, Name: product.Name, Size: size, Price: price.Effective}, nil

	case models.ItemPart:
		part, err := s.parts.Get(ctx, ref.ID)
		if err != nil {
			return nil, notFoundOr(err, "failed to get part")
		}
		settings, err := s.sales.Current(ctx)
		if err != nil {
			return nil, err
		}
		price := s.pricer.ResolvePart(part, settings)
		return &models.ItemSnapshot{Kind: ref.Kind, ID: part.ID, Name: part.Name, Price: price.Effective}, nil

	case models.ItemEvent:
		event, err := s.events.Get(ctx, ref.ID)
		if err != nil {
			return nil, notFoundOr(err, "failed to get event")
		}
		return &models.ItemSnapshot{Kind: ref.Kind, ID: event.ID, Name: event.Name, Price: event.TicketPrice}, nil

	default:
		return nil, invalid("item.kind", fmt.Sprintf("unknown item kind %q", ref.Kind))
	}
}

func (s *InquiryService) store(ctx context.Context, inquiry *models.Inquiry) (*models.Inquiry, error) {
	logger := s.loggerFromContext(ctx)

	if err := s.inquiries.Create(ctx, inquiry); err != nil {
		return nil, fmt.Errorf("failed to create inquiry: %w", err)
	}

	observability.Count(ctx, "inquiry.created", "type", string(inquiry.Type))
	logger.Info("inquiry created", "inquiry_id", inquiry.ID, "type", inquiry.Type)

	if err := s.notifier.NotifyInquiry(context.WithoutCancel(ctx), inquiry); err != nil {
		logger.Warn("failed to notify staff about inquiry", "error", err, "inquiry_id", inquiry.ID)
	}
	return inquiry, nil
}

func (s *InquiryService) List(ctx context.Context, limit int) ([]*models.Inquiry, error) {
	inquiries, err := s.inquiries.List(ctx, clampLimit(limit, defaultInquiryListLimit, maxInquiryListLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list inquiries: %w", err)
	}
	return inquiries, nil
}

// UpdateStatus is the only way an inquiry's status changes.
func (s *InquiryService) UpdateStatus(ctx context.Context, id uuid.UUID, status models.InquiryStatus) (*models.Inquiry, error) {
	if !status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown status %q", status))
	}
	if err := s.inquiries.UpdateStatus(ctx, id, status); err != nil {
		return nil, notFoundOr(err, "failed to update inquiry")
	}
	s.loggerFromContext(ctx).Info("inquiry status updated", "inquiry_id", id, "status", status)

	inquiry, err := s.inquiries.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "failed to get inquiry")
	}
	return inquiry, nil
}

func (s *InquiryService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.inquiries.Delete(ctx, id); err != nil {
		return notFoundOr(err, "failed to delete inquiry")
	}
	return nil
}
