package db

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5"
)

const slowQueryThreshold = 250 * time.Millisecond

type queryTraceKey struct{}

type queryTrace struct {
	span    *sentry.Span
	sql     string
	started time.Time
}

// queryTracer opens a Sentry span per statement when the caller is already
// traced and logs statements slower than slowQueryThreshold.
type queryTracer struct {
	logger *slog.Logger
}

func newQueryTracer(logger *slog.Logger) *queryTracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &queryTracer{logger: logger.With("component", "db")}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	trace := &queryTrace{sql: compactSQL(data.SQL), started: time.Now()}

	if sentry.SpanFromContext(ctx) != nil {
		span := sentry.StartSpan(ctx, "db.query",
			sentry.WithDescription(trace.sql),
			sentry.WithSpanOrigin(sentry.SpanOriginManual),
		)
		span.SetData("db.system", "postgresql")
		if verb := statementVerb(trace.sql); verb != "" {
			span.SetData("db.operation", verb)
		}
		trace.span = span
		ctx = span.Context()
	}

	return context.WithValue(ctx, queryTraceKey{}, trace)
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	trace, _ := ctx.Value(queryTraceKey{}).(*queryTrace)
	if trace == nil {
		return
	}

	elapsed := time.Since(trace.started)
	if elapsed >= slowQueryThreshold {
		t.logger.Warn("slow query",
			"operation", statementVerb(trace.sql),
			"duration_ms", elapsed.Milliseconds(),
			"rows_affected", data.CommandTag.RowsAffected(),
		)
	}

	if trace.span == nil {
		return
	}
	if data.Err != nil {
		trace.span.Status = sentry.SpanStatusInternalError
		trace.span.SetData("db.error", data.Err.Error())
	} else {
		trace.span.Status = sentry.SpanStatusOK
	}
	trace.span.SetData("db.rows_affected", data.CommandTag.RowsAffected())
	trace.span.Finish()
}

func compactSQL(sql string) string {
	compact := strings.Join(strings.Fields(sql), " ")
	if compact == "" {
		return "sql.query"
	}
	const maxLen = 512
	if len(compact) > maxLen {
		return compact[:maxLen]
	}
	return compact
}

func statementVerb(sql string) string {
	verb, _, _ := strings.Cut(sql, " ")
	return strings.ToUpper(verb)
}
