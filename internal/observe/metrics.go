// Package observe provides OpenTelemetry metrics for the recitation
// pipeline and the HTTP endpoint that exposes them to Prometheus together
// with liveness and readiness checks.
package observe

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/escalopa/quran-recite-feedback"

// Analysis outcomes recorded on AnalysisRequests.
const (
	OutcomeOK        = "ok"
	OutcomeEmpty     = "empty"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"
	OutcomeMalformed = "malformed"
)

// Metrics holds the metric instruments. All fields are safe for concurrent use.
type Metrics struct {
	// AnalysisDuration tracks analysis latency, fallbacks included.
	AnalysisDuration metric.Float64Histogram

	// AnalysisRequests counts analyses. Use with attribute.String("outcome", ...).
	AnalysisRequests metric.Int64Counter

	// ContentLoadDuration tracks verse set loads and refreshes.
	ContentLoadDuration metric.Float64Histogram

	// ContentFacetErrors counts failed facet fetches. Use with
	// attribute.String("facet", ...).
	ContentFacetErrors metric.Int64Counter

	// Recordings counts finalized recordings.
	Recordings metric.Int64Counter

	// ActiveSessions tracks live practice sessions.
	ActiveSessions metric.Int64UpDownCounter
}

var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.AnalysisDuration, err = m.Float64Histogram("recite.analysis.duration",
		metric.WithDescription("Latency of recitation analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalysisRequests, err = m.Int64Counter("recite.analysis.requests",
		metric.WithDescription("Recitation analyses by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ContentLoadDuration, err = m.Float64Histogram("recite.content.load.duration",
		metric.WithDescription("Latency of verse set loads."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ContentFacetErrors, err = m.Int64Counter("recite.content.facet.errors",
		metric.WithDescription("Failed content facet fetches by facet."),
	); err != nil {
		return nil, err
	}
	if met.Recordings, err = m.Int64Counter("recite.recordings",
		metric.WithDescription("Finalized user recordings."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("recite.sessions.active",
		metric.WithDescription("Live practice sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// NopMetrics returns instruments that record nothing.
func NopMetrics() *Metrics {
	met, _ := NewMetrics(noop.NewMeterProvider())
	return met
}
