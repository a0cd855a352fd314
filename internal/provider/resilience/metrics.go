package resilience

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/stationpulse/stationpulse/internal/provider/resilience"

// Metrics holds the instruments for upstream provider calls.
type Metrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
}

// NewMetrics creates metrics for monitoring upstream provider calls.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}, nil
}

// RecordRequest records one upstream call, including retried ones that
// eventually failed.
func (m *Metrics) RecordRequest(provider string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("provider.name", provider),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Background context so a cancelled request still gets counted.
	ctx := context.Background()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

var (
	sharedMetricsOnce sync.Once
	sharedMetrics     *Metrics
)

// defaultMetrics returns the process-wide instruments. Instrument creation
// only fails on malformed names, so a nil result just disables recording.
func defaultMetrics() *Metrics {
	sharedMetricsOnce.Do(func() {
		if m, err := NewMetrics(); err == nil {
			sharedMetrics = m
		}
	})
	return sharedMetrics
}
