package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/setoff/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(context.Background(), config.TelemetryConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, p.LogCore("svc", zapcore.InfoLevel))
	p.EnableSpanProfiles()
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestStartServiceSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx, span := StartServiceSpan(context.Background(), "setoff", "create", SpanAttrDirection, "RECEIVABLE", "lines", 2)
	assert.NotEmpty(t, TraceID(ctx))
	SetAttributes(span, SpanAttrDocumentCode, "SO-1", 42, "skipped")
	AddEvent(span, "lines_locked", "count", 2)
	RecordError(span, errors.New("over settlement"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "setoff.create", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Len(t, ended[0].Attributes(), 3)
	assert.Len(t, ended[0].Events(), 2)
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
}

func TestSetoffMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewSetoffMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.DocumentCreated(ctx, "RECEIVABLE")
	m.DocumentCreated(ctx, "PAYABLE")
	m.Rejected(ctx, "create", "CONCURRENCY_CONFLICT")
	m.LedgerPosted(ctx, "SETOFF_RECEIPT")
	m.ObserveOperation(ctx, "create", time.Now().Add(-10*time.Millisecond), nil)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	totals := map[string]int64{}
	for _, md := range rm.ScopeMetrics[0].Metrics {
		if sum, ok := md.Data.(metricdata.Sum[int64]); ok {
			for _, dp := range sum.DataPoints {
				totals[md.Name] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), totals["setoff_documents_created_total"])
	assert.Equal(t, int64(1), totals["setoff_allocation_rejected_total"])
	assert.Equal(t, int64(1), totals["setoff_concurrency_conflicts_total"])
	assert.Equal(t, int64(1), totals["ledger_postings_total"])
}

func TestSetoffMetrics_NilIsSafe(t *testing.T) {
	var m *SetoffMetrics
	assert.NotPanics(t, func() {
		m.DocumentCreated(context.Background(), "RECEIVABLE")
		m.ObserveOperation(context.Background(), "void", time.Now(), errors.New("x"))
	})
}

func TestStartProfiler_Disabled(t *testing.T) {
	p, err := StartProfiler(config.ProfilerConfig{}, "setoff", zap.NewNop())
	require.NoError(t, err)
	assert.False(t, p.Active())
	assert.NoError(t, p.Stop())

	_, err = StartProfiler(config.ProfilerConfig{Enabled: true}, "setoff", zap.NewNop())
	assert.Error(t, err)
}
