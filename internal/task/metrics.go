package task

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/phrazzld/taskd/internal/task"

// jobMetrics holds the instruments recorded by the worker pool and sweeper.
// They come from the global provider and are no-ops until telemetry is set up.
type jobMetrics struct {
	processed metric.Int64Counter
	swept     metric.Int64Counter
	duration  metric.Float64Histogram
}

func newJobMetrics() *jobMetrics {
	meter := otel.Meter(instrumentationName)
	m := &jobMetrics{}

	var err error
	m.processed, err = meter.Int64Counter("taskd.jobs.processed",
		metric.WithDescription("Jobs handled by the worker pool, by kind and outcome"),
		metric.WithUnit("{job}"))
	if err != nil {
		m.processed = noop.Int64Counter{}
	}
	m.swept, err = meter.Int64Counter("taskd.sweeper.enqueued",
		metric.WithDescription("Overdue notification jobs enqueued by the sweeper"),
		metric.WithUnit("{job}"))
	if err != nil {
		m.swept = noop.Int64Counter{}
	}
	m.duration, err = meter.Float64Histogram("taskd.jobs.duration",
		metric.WithDescription("Time spent processing one job"),
		metric.WithUnit("s"))
	if err != nil {
		m.duration = noop.Float64Histogram{}
	}
	return m
}
