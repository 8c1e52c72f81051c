// Package metrics holds the OpenTelemetry instruments recorded by the
// service. Metrics are exported for scraping through the Prometheus bridge
// installed by InitProvider; tests build their own Metrics from a
// MeterProvider of their choosing.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/windfall/poplingo_service"

// latencyBuckets are tuned for generative-AI calls, which take seconds.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40,
}

// Metrics holds every instrument. Safe for concurrent use.
type Metrics struct {
	// ProviderRequests counts AI provider calls by provider, kind and status.
	ProviderRequests metric.Int64Counter
	// ProviderDuration tracks AI provider latency by provider and kind.
	ProviderDuration metric.Float64Histogram
	// Lookups counts dictionary lookups by outcome ("hit", "miss", "error").
	Lookups metric.Int64Counter
	// NotebookChanges counts saved and removed entries.
	NotebookChanges metric.Int64Counter
	// HTTPRequestDuration tracks request time by method and route.
	HTTPRequestDuration metric.Float64Histogram
}

// New builds the instruments from mp.
func New(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ProviderRequests, err = m.Int64Counter("poplingo.provider.requests",
		metric.WithDescription("AI provider calls."),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("poplingo.provider.duration",
		metric.WithDescription("Latency of AI provider calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Lookups, err = m.Int64Counter("poplingo.lookups",
		metric.WithDescription("Dictionary lookups by outcome."),
	); err != nil {
		return nil, err
	}
	if met.NotebookChanges, err = m.Int64Counter("poplingo.notebook.changes",
		metric.WithDescription("Notebook entries saved or removed."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("poplingo.http.request.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// Nop returns instruments that record nothing.
func Nop() *Metrics {
	m, _ := New(noop.NewMeterProvider())
	return m
}

// RecordProviderCall records one provider call.
func (m *Metrics) RecordProviderCall(ctx context.Context, provider, kind string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	statusValue := "ok"
	if err != nil {
		statusValue = "error"
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", statusValue),
	))
	m.ProviderDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}

// RecordLookup records a lookup outcome.
func (m *Metrics) RecordLookup(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.Lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordNotebookChange records a save ("saved") or removal ("removed").
func (m *Metrics) RecordNotebookChange(ctx context.Context, change string) {
	if m == nil {
		return
	}
	m.NotebookChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("change", change)))
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	))
}
