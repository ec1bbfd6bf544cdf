package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Metrics exporters selectable with METRICS_EXPORTER
const (
	ExporterScraper = "scraper"
	ExporterGRPC    = "grpc"
	ExporterNone    = "none"
)

// Telemetry owns the meter provider and, for the scraper exporter, the
// metrics HTTP server
type Telemetry struct {
	server   *http.Server          // only for the scraper exporter
	registry *promclient.Registry  // only for the scraper exporter
	Provider *metric.MeterProvider // always set
	meter    api.Meter
	exporter string
}

// InitMetrics builds the meter provider for the chosen exporter and installs
// it as the global provider
func InitMetrics(ctx context.Context, exporter, meterName, metricsPort string) (*Telemetry, error) {
	t := &Telemetry{exporter: exporter}

	switch exporter {
	case ExporterScraper:
		slog.Info("Starting metrics with scraper exporter", "metrics_port", metricsPort)
		if err := t.initScrapeMetrics(metricsPort); err != nil {
			return nil, err
		}
	case ExporterGRPC:
		slog.Info("Starting metrics with grpc exporter")
		if err := t.initGRPCMetrics(ctx); err != nil {
			return nil, err
		}
	case ExporterNone, "":
		slog.Info("Metrics export disabled")
		t.exporter = ExporterNone
		t.Provider = metric.NewMeterProvider()
	default:
		return nil, fmt.Errorf("unknown metrics exporter %q", exporter)
	}

	otel.SetMeterProvider(t.Provider)
	t.meter = t.Provider.Meter(meterName)
	return t, nil
}

// Meter returns the meter instruments are created from
func (t *Telemetry) Meter() api.Meter {
	return t.meter
}

// Exporter returns the active exporter name
func (t *Telemetry) Exporter() string {
	return t.exporter
}

// MetricsHandler serves the Prometheus exposition format. It is nil unless
// the scraper exporter is active.
func (t *Telemetry) MetricsHandler() http.Handler {
	if t.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// ServeMetrics runs the metrics server until Shutdown. It returns nil
// immediately when no server is needed.
func (t *Telemetry) ServeMetrics() error {
	if t.server == nil {
		return nil
	}

	slog.Info("Serving metrics", "addr", t.server.Addr, "path", "/metrics")
	err := t.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		slog.Info("Metrics server stopped")
		return nil
	}
	return err
}

// Shutdown stops the metrics server and flushes the provider
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.server != nil {
		if err := t.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if t.Provider != nil {
		if err := t.Provider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider flush: %w", err))
		}
		if err := t.Provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// The endpoint comes from OTEL_EXPORTER_OTLP_METRICS_ENDPOINT, localhost:4317 by default.
func (t *Telemetry) initGRPCMetrics(ctx context.Context) error {
	exporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		slog.Error("Creating GRPC exporter", "error", err)
		return fmt.Errorf("failed to create grpc exporter: %w", err)
	}

	t.Provider = metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(exporter)))
	return nil
}

func (t *Telemetry) initScrapeMetrics(metricsPort string) error {
	t.registry = promclient.NewRegistry()

	// The exporter is both an OpenTelemetry reader and a Prometheus collector
	exporter, err := prometheus.New(prometheus.WithRegisterer(t.registry))
	if err != nil {
		slog.Error("Creating HTML scrape exporter", "error", err)
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	t.Provider = metric.NewMeterProvider(metric.WithReader(exporter))

	mux := http.NewServeMux()
	mux.Handle("/metrics", t.MetricsHandler())
	t.server = &http.Server{
		Addr:    ":" + metricsPort,
		Handler: mux,
	}
	return nil
}
