package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"inventory-view-sync/internal/fetch"
)

func newManualTelemetry(t *testing.T) (*ViewTelemetry, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	vt, err := NewViewTelemetry(provider.Meter("test"))
	require.NoError(t, err)
	return vt, reader
}

func collectSum(t *testing.T, reader *sdkmetric.ManualReader, name string) []metricdata.DataPoint[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var out []metricdata.DataPoint[int64]
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			out = append(out, sum.DataPoints...)
		}
	}
	return out
}

func valueFor(points []metricdata.DataPoint[int64], attrs ...attribute.KeyValue) int64 {
	want := attribute.NewSet(attrs...)
	for _, dp := range points {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestViewTelemetry_RecordFetch(t *testing.T) {
	vt, reader := newManualTelemetry(t)
	ctx := context.Background()

	vt.RecordFetch(ctx, "items", fetch.OutcomeSuccess, 10*time.Millisecond)
	vt.RecordFetch(ctx, "items", fetch.OutcomeSuperseded, 20*time.Millisecond)
	vt.RecordFetch(ctx, "items", fetch.OutcomeSuccess, 5*time.Millisecond)
	vt.RecordFetch(ctx, "dashboard", fetch.OutcomeAuth, time.Millisecond)

	points := collectSum(t, reader, "inventory_view_fetches_total")

	assert.Equal(t, int64(2), valueFor(points, attribute.String("fetcher", "items"), attribute.String("outcome", "success")))
	assert.Equal(t, int64(1), valueFor(points, attribute.String("fetcher", "items"), attribute.String("outcome", "superseded")))
	assert.Equal(t, int64(1), valueFor(points, attribute.String("fetcher", "dashboard"), attribute.String("outcome", "auth")))
}

func TestTelemetryMiddleware_UsesRouteTemplate(t *testing.T) {
	vt, reader := newManualTelemetry(t)

	router := mux.NewRouter()
	router.Use(NewTelemetryMiddleware(vt).Middleware)
	router.HandleFunc("/v1/views/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	router.HandleFunc("/v1/views/{id}/page", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}).Methods(http.MethodPost)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/v1/views/abc", nil),
		httptest.NewRequest(http.MethodGet, "/v1/views/def", nil),
		httptest.NewRequest(http.MethodPost, "/v1/views/abc/page", nil),
	} {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	requests := collectSum(t, reader, "inventory_view_api_requests_total")
	require.Len(t, requests, 1, "both GETs share the templated endpoint")
	assert.Equal(t, int64(2), requests[0].Value)
	endpoint, _ := requests[0].Attributes.Value("endpoint")
	assert.Equal(t, "/v1/views/{id}", endpoint.AsString())

	errs := collectSum(t, reader, "inventory_view_api_errors_total")
	require.Len(t, errs, 1)
	assert.Equal(t, int64(1), errs[0].Value)
	errorType, _ := errs[0].Attributes.Value("error_type")
	assert.Equal(t, "bad_request", errorType.AsString())
}

func TestGetEndpointFromPath(t *testing.T) {
	cases := map[string]string{
		"/health":                             "/health",
		"/v1/views":                           "/v1/views",
		"/v1/views/abc":                       "/v1/views/{id}",
		"/v1/views/abc/page":                  "/v1/views/{id}/page",
		"/v1/views/abc/items/SKU-1":           "/v1/views/{id}/items/{sku}",
		"/v1/views/abc/items/SKU-1/movements": "/v1/views/{id}/items/{sku}/movements",
	}
	for path, want := range cases {
		assert.Equal(t, want, GetEndpointFromPath(path), path)
	}
}

func TestNormalizeClientIP(t *testing.T) {
	assert.Equal(t, "unknown", NormalizeClientIP(""))
	assert.Equal(t, "invalid", NormalizeClientIP("not-an-ip"))
	assert.Equal(t, "localhost", NormalizeClientIP("127.0.0.1"))
	assert.Equal(t, "internal", NormalizeClientIP("10.1.2.3"))
	assert.Equal(t, "internal", NormalizeClientIP("192.168.1.10"))
	assert.Equal(t, "external", NormalizeClientIP("8.8.8.8"))
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:1234"
	assert.Equal(t, "10.0.0.5", getClientIP(r))

	r.Header.Set("X-Real-IP", "172.16.0.9")
	assert.Equal(t, "172.16.0.9", getClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", getClientIP(r))
}

func TestInitMetrics_Scraper(t *testing.T) {
	tel, err := InitMetrics(context.Background(), ExporterScraper, "test", "0")
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())

	vt, err := NewViewTelemetry(tel.Meter())
	require.NoError(t, err)
	vt.RecordFetch(context.Background(), "items", fetch.OutcomeSuccess, time.Millisecond)

	handler := tel.MetricsHandler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), "inventory_view_fetches")
}

func TestInitMetrics_None(t *testing.T) {
	tel, err := InitMetrics(context.Background(), ExporterNone, "test", "0")
	require.NoError(t, err)
	defer tel.Shutdown(context.Background())

	assert.Nil(t, tel.MetricsHandler())
	assert.NoError(t, tel.ServeMetrics())
	assert.NotNil(t, tel.Meter())
}

func TestInitMetrics_Unknown(t *testing.T) {
	_, err := InitMetrics(context.Background(), "carrier-pigeon", "test", "0")
	assert.Error(t, err)
}
