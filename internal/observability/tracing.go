package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a tracer for the given name
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartDBSpan starts a span for a database operation against dbSystem
// ("sqlite" or "postgresql")
func StartDBSpan(ctx context.Context, dbSystem, operation, table string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("DB %s %s", operation, table),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", dbSystem),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", table),
		),
	)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Ingest outcomes recorded on photonix.ingest.items
const (
	OutcomeNew       = "new"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// IngestionMetrics holds the counters of the ingestion, pre-check, job and
// sync paths. A nil *IngestionMetrics is valid and records nothing.
type IngestionMetrics struct {
	ingestItems   metric.Int64Counter
	raceLost      metric.Int64Counter
	ingestBytes   metric.Int64Counter
	precheckItems metric.Int64Counter
	jobsCompleted metric.Int64Counter
	syncRuns      metric.Int64Counter
}

// NewIngestionMetrics creates the ingestion metric instruments
func NewIngestionMetrics() (*IngestionMetrics, error) {
	meter := otel.Meter(instrumentationName)

	ingestItems, err := meter.Int64Counter(
		"photonix.ingest.items",
		metric.WithDescription("Ingested items by outcome"),
		metric.WithUnit("{items}"),
	)
	if err != nil {
		return nil, err
	}

	raceLost, err := meter.Int64Counter(
		"photonix.ingest.race_lost",
		metric.WithDescription("Inserts that lost the active-checksum race and resolved to a duplicate"),
		metric.WithUnit("{items}"),
	)
	if err != nil {
		return nil, err
	}

	ingestBytes, err := meter.Int64Counter(
		"photonix.ingest.bytes",
		metric.WithDescription("Bytes written to the content store"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	precheckItems, err := meter.Int64Counter(
		"photonix.precheck.hashes",
		metric.WithDescription("Hashes checked by the bulk pre-check"),
		metric.WithUnit("{hashes}"),
	)
	if err != nil {
		return nil, err
	}

	jobsCompleted, err := meter.Int64Counter(
		"photonix.jobs.completed",
		metric.WithDescription("Downstream jobs finished"),
		metric.WithUnit("{jobs}"),
	)
	if err != nil {
		return nil, err
	}

	syncRuns, err := meter.Int64Counter(
		"photonix.sync.runs",
		metric.WithDescription("Recorded album auto-sync runs"),
		metric.WithUnit("{runs}"),
	)
	if err != nil {
		return nil, err
	}

	return &IngestionMetrics{
		ingestItems:   ingestItems,
		raceLost:      raceLost,
		ingestBytes:   ingestBytes,
		precheckItems: precheckItems,
		jobsCompleted: jobsCompleted,
		syncRuns:      syncRuns,
	}, nil
}

// RecordIngest records the outcome of one ingested item
func (m *IngestionMetrics) RecordIngest(ctx context.Context, outcome string, size int64) {
	if m == nil {
		return
	}
	m.ingestItems.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if outcome == OutcomeNew && size > 0 {
		m.ingestBytes.Add(ctx, size)
	}
}

// RecordRaceLost records an insert resolved through the unique index
func (m *IngestionMetrics) RecordRaceLost(ctx context.Context) {
	if m == nil {
		return
	}
	m.raceLost.Add(ctx, 1)
}

// RecordPreCheck records a pre-check call
func (m *IngestionMetrics) RecordPreCheck(ctx context.Context, checked, existing int) {
	if m == nil {
		return
	}
	m.precheckItems.Add(ctx, int64(checked), metric.WithAttributes(attribute.Int("existing", existing)))
}

// RecordJob records a finished downstream job
func (m *IngestionMetrics) RecordJob(ctx context.Context, kind string, success bool) {
	if m == nil {
		return
	}
	m.jobsCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("success", success),
	))
}

// RecordSyncRun records a reported album sync
func (m *IngestionMetrics) RecordSyncRun(ctx context.Context, syncedCount int) {
	if m == nil {
		return
	}
	m.syncRuns.Add(ctx, 1, metric.WithAttributes(attribute.Int("synced_count", syncedCount)))
}
