// Package telemetry installs the global OpenTelemetry tracer, meter and
// logger providers. All three export to a writer (stdout in production) so
// the service has no collector dependency.
package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Options configures Setup.
type Options struct {
	ServiceName string

	// Writer receives every exported span, metric and log record.
	Writer io.Writer

	// MetricInterval is the export period of the metric reader.
	// Zero means one minute.
	MetricInterval time.Duration
}

// Provider holds the installed providers. The zero value is not usable;
// create one with Setup.
type Provider struct {
	handler   slog.Handler
	shutdowns []func(context.Context) error
}

// Setup creates the providers, installs them as the otel globals and returns
// a Provider whose Shutdown flushes them. On error every provider created so
// far has already been shut down.
func Setup(ctx context.Context, opts Options) (*Provider, error) {
	if opts.Writer == nil {
		return nil, errors.New("telemetry writer cannot be nil")
	}
	if opts.MetricInterval <= 0 {
		opts.MetricInterval = time.Minute
	}

	p := &Provider{}
	fail := func(err error) (*Provider, error) {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}

	res := resource.NewSchemaless(attribute.String("service.name", opts.ServiceName))

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(opts.Writer))
	if err != nil {
		return fail(err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	p.shutdowns = append(p.shutdowns, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(opts.Writer))
	if err != nil {
		return fail(err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(opts.MetricInterval))),
		sdkmetric.WithResource(res),
	)
	p.shutdowns = append(p.shutdowns, meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	logExporter, err := stdoutlog.New(stdoutlog.WithWriter(opts.Writer))
	if err != nil {
		return fail(err)
	}
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)
	p.shutdowns = append(p.shutdowns, loggerProvider.Shutdown)
	global.SetLoggerProvider(loggerProvider)

	p.handler = otelslog.NewHandler(opts.ServiceName, otelslog.WithLoggerProvider(loggerProvider))

	return p, nil
}

// LogHandler returns an slog.Handler that forwards records to the otel log
// pipeline. Pass it to logger.Setup as an extra handler.
func (p *Provider) LogHandler() slog.Handler {
	return p.handler
}

// Shutdown flushes and stops every provider, in reverse creation order.
func (p *Provider) Shutdown(ctx context.Context) error {
	var err error
	for i := len(p.shutdowns) - 1; i >= 0; i-- {
		err = errors.Join(err, p.shutdowns[i](ctx))
	}
	p.shutdowns = nil
	return err
}
