package observability

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestStringAttrs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tags []string
		want int
	}{
		{name: "none", tags: nil, want: 0},
		{name: "pairs", tags: []string{"source", "webhook", "type", "sponsor"}, want: 2},
		{name: "dangling key dropped", tags: []string{"source", "webhook", "orphan"}, want: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := len(stringAttrs(tt.tags)); got != tt.want {
				t.Fatalf("len(stringAttrs) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeterHelpersWithoutClient(t *testing.T) {
	t.Parallel()

	ctx := WithMeter(context.Background(), nil)
	if MeterFromContext(ctx) == nil {
		t.Fatalf("expected meter from context")
	}
	Count(ctx, "order.created", "discount_source", "category")
	ObservePayment(ctx, decimal.RequireFromString("45.50"), "usd")
}
