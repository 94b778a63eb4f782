package observability

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const metricNamespace = "github.com/dido-commerce/api/internal/platform/observability"

var (
	metricsOnce     sync.Once
	requestCounter  metric.Int64Counter
	requestLatency  metric.Float64Histogram
	metricsDisabled bool
)

func initRequestMetrics() {
	meter := otel.GetMeterProvider().Meter(metricNamespace)

	counter, counterErr := meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("Count of HTTP requests handled by the API"),
	)
	latency, latencyErr := meter.Float64Histogram(
		"http.server.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds for HTTP requests"),
	)
	if counterErr != nil || latencyErr != nil {
		metricsDisabled = true
		return
	}
	requestCounter = counter
	requestLatency = latency
}

func recordRequestMetrics(ctx context.Context, method, route string, status int, latency time.Duration) {
	metricsOnce.Do(initRequestMetrics)
	if metricsDisabled {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	)
	requestCounter.Add(ctx, 1, attrs)
	requestLatency.Record(ctx, float64(latency)/float64(time.Millisecond), attrs)
}
