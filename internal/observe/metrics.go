// Package observe provides application-wide observability primitives for the
// orchestrator: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all orchestrator metrics.
const meterName = "github.com/shushunyam/eyeofterror"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// RouteDuration tracks end-to-end /route processing latency.
	RouteDuration metric.Float64Histogram

	// StepDuration tracks single plan-step latency. Use with attribute:
	//   attribute.String("kind", "tool"|"model")
	StepDuration metric.Float64Histogram

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// ModelCalls counts worker-model invocations. Use with attributes:
	//   attribute.String("route", ...), attribute.String("status", ...)
	ModelCalls metric.Int64Counter

	// ControllerFallbacks counts planning phases served by the deterministic
	// planner instead of the controller. Use with attribute:
	//   attribute.String("reason", ...)
	ControllerFallbacks metric.Int64Counter

	// RouteErrors counts failed /route requests by error kind.
	RouteErrors metric.Int64Counter

	// ActiveRoutes tracks the number of /route requests in flight.
	ActiveRoutes metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Synthesis
// steps can legitimately run for tens of seconds, hence the long tail.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RouteDuration, err = m.Float64Histogram("eyeofterror.route.duration",
		metric.WithDescription("End-to-end /route processing latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StepDuration, err = m.Float64Histogram("eyeofterror.step.duration",
		metric.WithDescription("Plan step latency by step kind."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ToolCalls, err = m.Int64Counter("eyeofterror.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.ModelCalls, err = m.Int64Counter("eyeofterror.model.calls",
		metric.WithDescription("Total worker-model invocations by route and status."),
	); err != nil {
		return nil, err
	}
	if met.ControllerFallbacks, err = m.Int64Counter("eyeofterror.controller.fallbacks",
		metric.WithDescription("Planning phases served by the deterministic fallback planner."),
	); err != nil {
		return nil, err
	}
	if met.RouteErrors, err = m.Int64Counter("eyeofterror.route.errors",
		metric.WithDescription("Failed /route requests by error kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveRoutes, err = m.Int64UpDownCounter("eyeofterror.active_routes",
		metric.WithDescription("Number of /route requests currently in flight."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("eyeofterror.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordToolCall records a tool invocation with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordModelCall records a worker-model invocation with the standard
// attribute set.
func (m *Metrics) RecordModelCall(ctx context.Context, route, status string) {
	m.ModelCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("route", route),
			attribute.String("status", status),
		),
	)
}

// RecordFallback records a planning phase that was served by the fallback
// planner.
func (m *Metrics) RecordFallback(ctx context.Context, reason string) {
	m.ControllerFallbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordRouteError records a failed /route request by error kind.
func (m *Metrics) RecordRouteError(ctx context.Context, kind string) {
	m.RouteErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}
