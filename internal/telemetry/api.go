package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"inventory-view-sync/internal/fetch"
)

// ViewTelemetry records fetch outcomes of the view engine and requests to
// the view API
type ViewTelemetry struct {
	meter metric.Meter

	fetchCounter  metric.Int64Counter
	fetchDuration metric.Float64Histogram

	requestCounter    metric.Int64Counter
	errorCounter      metric.Int64Counter
	durationHistogram metric.Float64Histogram
}

// RequestMetrics contains the telemetry data for a view API request
type RequestMetrics struct {
	Method       string
	Endpoint     string
	StatusCode   int
	Duration     time.Duration
	ErrorMessage string
	ClientIP     string // logged only
	ClientIPType string // "internal", "external", "localhost", ...
}

// NewViewTelemetry creates every instrument on meter
func NewViewTelemetry(meter metric.Meter) (*ViewTelemetry, error) {
	t := &ViewTelemetry{meter: meter}

	var err error
	t.fetchCounter, err = meter.Int64Counter(
		"inventory_view_fetches_total",
		metric.WithDescription("Fetches issued by the inventory view, by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch counter: %w", err)
	}

	t.fetchDuration, err = meter.Float64Histogram(
		"inventory_view_fetch_duration_seconds",
		metric.WithDescription("Time from issuing a fetch to its resolution"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch duration histogram: %w", err)
	}

	t.requestCounter, err = meter.Int64Counter(
		"inventory_view_api_requests_total",
		metric.WithDescription("Total number of requests to the view API"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	t.errorCounter, err = meter.Int64Counter(
		"inventory_view_api_errors_total",
		metric.WithDescription("Total number of failed requests to the view API"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	t.durationHistogram, err = meter.Float64Histogram(
		"inventory_view_api_request_duration_seconds",
		metric.WithDescription("Duration of requests to the view API"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	slog.Info("View telemetry initialized")
	return t, nil
}

// RecordFetch implements fetch.Recorder
func (t *ViewTelemetry) RecordFetch(ctx context.Context, fetcher string, outcome fetch.Outcome, duration time.Duration) {
	t.fetchCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("fetcher", fetcher),
		attribute.String("outcome", string(outcome)),
	))
	t.fetchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("fetcher", fetcher),
	))
}

// RegisterRequestReceived records a successful request
func (t *ViewTelemetry) RegisterRequestReceived(ctx context.Context, m RequestMetrics) {
	t.requestCounter.Add(ctx, 1, metric.WithAttributes(requestAttributes(m)...))

	slog.Debug("Recorded view API request",
		"method", m.Method,
		"endpoint", m.Endpoint,
		"status_code", m.StatusCode,
		"client_ip", m.ClientIP,
		"duration_ms", m.Duration.Milliseconds())
}

// RegisterRequestError records a failed request
func (t *ViewTelemetry) RegisterRequestError(ctx context.Context, m RequestMetrics) {
	attrs := append(requestAttributes(m), attribute.String("error_type", categorizeError(m.ErrorMessage)))
	t.errorCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	slog.Debug("Recorded view API error",
		"method", m.Method,
		"endpoint", m.Endpoint,
		"status_code", m.StatusCode,
		"client_ip", m.ClientIP,
		"error", m.ErrorMessage)
}

// RegisterRequestDuration records the duration of a request
func (t *ViewTelemetry) RegisterRequestDuration(ctx context.Context, m RequestMetrics) {
	t.durationHistogram.Record(ctx, m.Duration.Seconds(), metric.WithAttributes(requestAttributes(m)...))
}

// low-cardinality attributes only
func requestAttributes(m RequestMetrics) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("method", m.Method),
		attribute.String("endpoint", m.Endpoint),
		attribute.Int("status_code", m.StatusCode),
	}
	if m.ClientIPType != "" {
		attrs = append(attrs, attribute.String("client_ip_type", m.ClientIPType))
	}
	return attrs
}

// categorizeError groups similar errors to keep cardinality low
func categorizeError(errorMessage string) string {
	msg := strings.ToLower(errorMessage)
	switch {
	case msg == "":
		return "unknown"
	case strings.Contains(msg, "not found"):
		return "not_found"
	case strings.Contains(msg, "unauthorized"):
		return "unauthorized"
	case strings.Contains(msg, "bad request"), strings.Contains(msg, "unprocessable"):
		return "bad_request"
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "bad gateway"), strings.Contains(msg, "unavailable"):
		return "upstream"
	case strings.Contains(msg, "internal"):
		return "internal_error"
	default:
		return "other"
	}
}

// GetEndpointFromPath replaces view ids and SKUs with placeholders. Used when
// the router did not match a route template.
func GetEndpointFromPath(path string) string {
	const prefix = "/v1/views/"
	if !strings.HasPrefix(path, prefix) {
		return path
	}

	parts := strings.Split(strings.TrimPrefix(path, prefix), "/")
	parts[0] = "{id}"
	if len(parts) >= 3 && parts[1] == "items" {
		parts[2] = "{sku}"
	}
	return prefix + strings.Join(parts, "/")
}

// NormalizeClientIP categorizes client IPs to control cardinality
func NormalizeClientIP(clientIP string) string {
	if clientIP == "" {
		return "unknown"
	}

	ip := net.ParseIP(clientIP)
	if ip == nil {
		return "invalid"
	}
	if ip.IsLoopback() {
		return "localhost"
	}
	if ip.IsPrivate() || ip.IsLinkLocalUnicast() {
		return "internal"
	}
	return "external"
}
