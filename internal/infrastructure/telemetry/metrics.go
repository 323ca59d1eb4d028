package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	AttrDirection = attribute.Key("direction")
	AttrOperation = attribute.Key("operation")
	AttrOutcome   = attribute.Key("outcome")
	AttrErrorCode = attribute.Key("error_code")
	AttrTxType    = attribute.Key("transaction_type")
	AttrEventType = attribute.Key("event_type")
)

// OperationDurationBuckets are histogram boundaries in seconds
var OperationDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Counter wraps an Int64Counter
type Counter struct {
	counter metric.Int64Counter
}

// NewCounter creates a counter on meter
func NewCounter(meter metric.Meter, name, description, unit string) (*Counter, error) {
	c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", name, err)
	}
	return &Counter{counter: c}, nil
}

// Inc adds one
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// Add adds n
func (c *Counter) Add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, n, metric.WithAttributes(attrs...))
}

// Histogram wraps a Float64Histogram
type Histogram struct {
	histogram metric.Float64Histogram
}

// NewHistogram creates a histogram with explicit bucket boundaries
func NewHistogram(meter metric.Meter, name, description, unit string, buckets []float64) (*Histogram, error) {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(description),
		metric.WithUnit(unit),
	}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := meter.Float64Histogram(name, opts...)
	if err != nil {
		return nil, fmt.Errorf("create histogram %s: %w", name, err)
	}
	return &Histogram{histogram: h}, nil
}

// RecordDuration records d in seconds
func (h *Histogram) RecordDuration(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	h.histogram.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

// SetoffMetrics holds the business instruments of the setoff service.
// A nil *SetoffMetrics is valid and records nothing.
type SetoffMetrics struct {
	documentsCreated   *Counter
	documentsVoided    *Counter
	allocationRejected *Counter
	ledgerPostings     *Counter
	prepaymentUsages   *Counter
	conflicts          *Counter
	outboxDispatched   *Counter
	operationDuration  *Histogram
}

// NewSetoffMetrics registers the instruments on meter. When meter is nil the
// global meter provider is used.
func NewSetoffMetrics(meter metric.Meter) (*SetoffMetrics, error) {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(TracerName)
	}
	m := &SetoffMetrics{}
	var err error
	if m.documentsCreated, err = NewCounter(meter, "setoff_documents_created_total", "Setoff documents committed", "{document}"); err != nil {
		return nil, err
	}
	if m.documentsVoided, err = NewCounter(meter, "setoff_documents_voided_total", "Setoff documents voided", "{document}"); err != nil {
		return nil, err
	}
	if m.allocationRejected, err = NewCounter(meter, "setoff_allocation_rejected_total", "Setoff requests rejected by business rules", "{request}"); err != nil {
		return nil, err
	}
	if m.ledgerPostings, err = NewCounter(meter, "ledger_postings_total", "Financial transactions appended to the ledger", "{entry}"); err != nil {
		return nil, err
	}
	if m.prepaymentUsages, err = NewCounter(meter, "prepayment_usages_total", "Prepayment credit consumptions", "{usage}"); err != nil {
		return nil, err
	}
	if m.conflicts, err = NewCounter(meter, "setoff_concurrency_conflicts_total", "Optimistic lock conflicts", "{conflict}"); err != nil {
		return nil, err
	}
	if m.outboxDispatched, err = NewCounter(meter, "outbox_events_dispatched_total", "Outbox events handed to the bus", "{event}"); err != nil {
		return nil, err
	}
	if m.operationDuration, err = NewHistogram(meter, "setoff_operation_duration_seconds", "Duration of setoff service operations", "s", OperationDurationBuckets); err != nil {
		return nil, err
	}
	return m, nil
}

// DocumentCreated counts a committed document
func (m *SetoffMetrics) DocumentCreated(ctx context.Context, direction string) {
	if m == nil {
		return
	}
	m.documentsCreated.Inc(ctx, AttrDirection.String(direction))
}

// DocumentVoided counts a voided document
func (m *SetoffMetrics) DocumentVoided(ctx context.Context, direction string) {
	if m == nil {
		return
	}
	m.documentsVoided.Inc(ctx, AttrDirection.String(direction))
}

// Rejected counts a request refused with the given error code
func (m *SetoffMetrics) Rejected(ctx context.Context, operation, code string) {
	if m == nil {
		return
	}
	m.allocationRejected.Inc(ctx, AttrOperation.String(operation), AttrErrorCode.String(code))
	if code == "CONCURRENCY_CONFLICT" {
		m.conflicts.Inc(ctx, AttrOperation.String(operation))
	}
}

// LedgerPosted counts an appended ledger entry
func (m *SetoffMetrics) LedgerPosted(ctx context.Context, txType string) {
	if m == nil {
		return
	}
	m.ledgerPostings.Inc(ctx, AttrTxType.String(txType))
}

// PrepaymentUsed counts a consumption of prepayment credit
func (m *SetoffMetrics) PrepaymentUsed(ctx context.Context) {
	if m == nil {
		return
	}
	m.prepaymentUsages.Inc(ctx)
}

// OutboxDispatched counts an outbox event by outcome
func (m *SetoffMetrics) OutboxDispatched(ctx context.Context, eventType string, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.outboxDispatched.Inc(ctx, AttrEventType.String(eventType), AttrOutcome.String(outcome))
}

// ObserveOperation records how long operation took
func (m *SetoffMetrics) ObserveOperation(ctx context.Context, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operationDuration.RecordDuration(ctx, time.Since(start),
		AttrOperation.String(operation), AttrOutcome.String(outcome))
}
