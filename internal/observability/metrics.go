package observability

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/shopspring/decimal"
)

type meterContextKey struct{}

// WithMeter returns a context carrying the provided meter.
func WithMeter(ctx context.Context, meter sentry.Meter) context.Context {
	if meter == nil {
		meter = sentry.NewMeter(ctx)
	}
	return context.WithValue(ctx, meterContextKey{}, meter.WithCtx(ctx))
}

// MeterFromContext returns the request-scoped meter from context or a new
// one bound to ctx.
func MeterFromContext(ctx context.Context) sentry.Meter {
	if meter, ok := ctx.Value(meterContextKey{}).(sentry.Meter); ok && meter != nil {
		return meter.WithCtx(ctx)
	}
	return sentry.NewMeter(ctx).WithCtx(ctx)
}

// Count increments a counter. tags are key/value pairs; a trailing key
// without a value is dropped.
func Count(ctx context.Context, name string, tags ...string) {
	MeterFromContext(ctx).Count(name, 1, sentry.WithAttributes(stringAttrs(tags)...))
}

// ObservePayment records a captured amount in minor units per currency.
func ObservePayment(ctx context.Context, amount decimal.Decimal, currency string) {
	MeterFromContext(ctx).Distribution("payment.amount", float64(amount.Shift(2).IntPart()),
		sentry.WithAttributes(attribute.String("currency", currency)),
	)
}

func stringAttrs(tags []string) []attribute.Builder {
	attrs := make([]attribute.Builder, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		attrs = append(attrs, attribute.String(tags[i], tags[i+1]))
	}
	return attrs
}
