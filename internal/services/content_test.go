package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/triplebarrelracing/storefront/internal/logging"
	"github.com/triplebarrelracing/storefront/internal/models"
)

func TestContentService_CreateAndUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemoryDocuments[models.Event, *models.Event](models.KindEvent)
	service := NewContentService[models.Event, *models.Event](repo, CheckEvent, logging.Discard())

	created, err := service.Create(ctx, &models.Event{
		Meta:        models.Meta{ID: uuid.New()},
		Name:        "Spring Series Round 1",
		Date:        time.Date(2026, 4, 12, 9, 0, 0, 0, time.UTC),
		Location:    "Ponoka Stampede Grounds",
		TicketPrice: dec("20.00"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatal("expected assigned ID")
	}

	updated, err := service.Update(ctx, created.ID, []byte(`{"id":"`+uuid.NewString()+`","location":"Red Deer Westerner Park"}`))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID {
		t.Fatalf("update changed id to %s", updated.ID)
	}

	stored, err := service.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Location != "Red Deer Westerner Park" || stored.Name != "Spring Series Round 1" || !stored.TicketPrice.Equal(dec("20")) {
		t.Fatalf("unexpected stored event: %+v", stored)
	}

	list, err := service.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %d, %v", len(list), err)
	}
}

func TestContentService_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	parts := NewContentService[models.Part, *models.Part](newMemoryDocuments[models.Part, *models.Part](models.KindPart), CheckPart, logging.Discard())

	tests := []struct {
		name      string
		part      *models.Part
		wantField string
	}{
		{name: "missing name", part: &models.Part{Price: dec("10.00")}, wantField: "name"},
		{name: "zero price", part: &models.Part{Name: "Rim", Price: dec("0")}, wantField: "price"},
		{name: "sub-cent price", part: &models.Part{Name: "Rim", Price: dec("10.005")}, wantField: "price"},
		{name: "bad condition", part: &models.Part{Name: "Rim", Price: dec("10.00"), Condition: "broken"}, wantField: "condition"},
	}

	for _, tt := range tests {
		_, err := parts.Create(ctx, tt.part)
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) || validationErr.Field != tt.wantField {
			t.Fatalf("%s: error = %v, want validation error on %s", tt.name, err, tt.wantField)
		}
	}

	part, err := parts.Create(ctx, &models.Part{Name: "Rim", Price: dec("10.00")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := parts.Update(ctx, part.ID, []byte(`{"price":"-1"}`)); err == nil {
		t.Fatal("expected validation error on update")
	}
	if _, err := parts.Update(ctx, uuid.New(), []byte(`{}`)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing = %v, want ErrNotFound", err)
	}
	if err := parts.Delete(ctx, part.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := parts.Get(ctx, part.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted = %v, want ErrNotFound", err)
	}
}
