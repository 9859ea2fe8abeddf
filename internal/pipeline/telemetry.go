package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/voxlate/voxlate/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

// setupTelemetry installs the global meter provider, and a tracer provider
// when an OTLP endpoint is configured. Without an endpoint spans stay
// no-ops; a batch run's progress is already on stdout as structured logs,
// so there is no local span exporter. Returns a combined shutdown func and
// the Prometheus scrape handler (nil if the exporter failed to build).
func setupTelemetry(cfg config.Config, logger *slog.Logger) (func(context.Context) error, http.Handler, error) {
	ctx := context.Background()
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.AppName),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	var shutdowns []func(context.Context) error

	handler, err := installMetrics(res, &shutdowns, logger)
	if err != nil {
		return nil, nil, err
	}

	if endpoint := strings.TrimSpace(cfg.Telemetry.OTLPEndpoint); endpoint != "" {
		if err := installTracing(ctx, endpoint, cfg.Telemetry.OTLPInsecure, res, &shutdowns); err != nil {
			return nil, nil, err
		}
		logger.Info("trace export enabled", slog.String("endpoint", endpoint))
	}

	shutdown := func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdowns {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return shutdown, handler, nil
}

func installMetrics(res *resource.Resource, shutdowns *[]func(context.Context) error, logger *slog.Logger) (http.Handler, error) {
	promExporter, err := prometheus.New()
	if err != nil {
		// Counters still work against a reader-less provider; only the
		// scrape endpoint is lost.
		logger.Warn("failed to initialize prometheus exporter", slog.String("error", err.Error()))
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
		otel.SetMeterProvider(mp)
		*shutdowns = append(*shutdowns, mp.Shutdown)
		return nil, nil
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	*shutdowns = append(*shutdowns, mp.Shutdown)
	return promhttp.Handler(), nil
}

func installTracing(ctx context.Context, endpoint string, insecure bool, res *resource.Resource, shutdowns *[]func(context.Context) error) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	*shutdowns = append(*shutdowns, tp.Shutdown)
	return nil
}
