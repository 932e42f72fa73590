package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type engineMetrics struct {
	operations   metric.Int64Counter
	cacheLookups metric.Int64Counter
}

func newEngineMetrics() *engineMetrics {
	meter := otel.Meter(instrumentationName)
	m := &engineMetrics{}

	var err error
	m.operations, err = meter.Int64Counter("taskd.engine.operations",
		metric.WithDescription("Engine operations by name and outcome"),
		metric.WithUnit("{operation}"))
	if err != nil {
		m.operations = noop.Int64Counter{}
	}
	m.cacheLookups, err = meter.Int64Counter("taskd.cache.lookups",
		metric.WithDescription("Derived cache lookups by scope and result"),
		metric.WithUnit("{lookup}"))
	if err != nil {
		m.cacheLookups = noop.Int64Counter{}
	}
	return m
}

func (m *engineMetrics) cacheHit(ctx context.Context, scope string, hit bool) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.scope", scope),
		attribute.Bool("cache.hit", hit),
	))
}

func metricAttrs(op, outcome string) metric.AddOption {
	return metric.WithAttributes(
		attribute.String("engine.operation", op),
		attribute.String("engine.outcome", outcome),
	)
}

// errorKind classifies err for metrics and spans.
func errorKind(err error) string {
	switch {
	case IsNotFound(err):
		return "not_found"
	case IsValidation(err):
		return "validation"
	case IsQueue(err):
		return "queue"
	case IsStorage(err):
		return "storage"
	default:
		return "error"
	}
}
