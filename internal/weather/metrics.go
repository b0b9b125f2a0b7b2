package weather

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/i474232898/weather-monitoring/internal/weather"

// metrics holds the OpenTelemetry instruments shared by the pipeline,
// aggregator and alert evaluator. With no meter provider installed they are
// no-ops.
type metrics struct {
	observations     metric.Int64Counter
	upstreamFailures metric.Int64Counter
	cacheLookups     metric.Int64Counter
	summaries        metric.Int64Counter
	alerts           metric.Int64Counter
}

func newMetrics() *metrics {
	meter := otel.Meter(instrumentationName)
	return &metrics{
		observations:     counter(meter, "weather.observations.persisted", "Observations written by the fetch pipeline"),
		upstreamFailures: counter(meter, "weather.upstream.failures", "Failed upstream fetches"),
		cacheLookups:     counter(meter, "weather.cache.lookups", "Cache lookups by result"),
		summaries:        counter(meter, "weather.summaries.upserted", "Daily summaries upserted"),
		alerts:           counter(meter, "weather.alerts.created", "Alerts persisted"),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

func (m *metrics) cacheLookup(ctx context.Context, kind Kind, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("result", result),
	))
}

func cityAttr(city string) metric.AddOption {
	return metric.WithAttributes(attribute.String("city", city))
}
