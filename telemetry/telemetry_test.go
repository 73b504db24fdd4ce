package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pvlbzn/aws-stack-application/logging"
)

func withManualReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	prev := otel.GetMeterProvider()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = mp.Shutdown(context.Background())
	})
	return reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestMiddlewarePreservesResponse(t *testing.T) {
	reader := withManualReader(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "Hey from myhost in prod\n")
	})
	h := Middleware("server_http", next)

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodHead} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(method, "/x", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "text/plain", rr.Header().Get("Content-Type"))
		assert.Equal(t, "Hey from myhost in prod\n", rr.Body.String())
	}

	metrics := collect(t, reader)
	require.Contains(t, metrics, "http_server_requests")
	require.Contains(t, metrics, "http_server_latency")

	sum, ok := metrics["http_server_requests"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.EqualValues(t, 3, total)
}

func TestRecordClientLatency(t *testing.T) {
	reader := withManualReader(t)

	RecordClientLatency(context.Background(), "http://myhost:8080/", "http1.1", 15*time.Millisecond)

	metrics := collect(t, reader)
	require.Contains(t, metrics, "http_client_latency")
	hist, ok := metrics["http_client_latency"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.EqualValues(t, 1, hist.DataPoints[0].Count)
	assert.Equal(t, 15.0, hist.DataPoints[0].Sum)
}

func TestInitMeterProviderWithUnknownExporter(t *testing.T) {
	_, err := InitMeterProviderWith(context.Background(), []string{"statsd"}, ApplicationResource{ServiceName: "test"})
	assert.ErrorContains(t, err, "statsd")
}

func TestInitMeterProviderWithPrometheus(t *testing.T) {
	prev := otel.GetMeterProvider()
	mp, err := InitMeterProviderWith(context.Background(), []string{"prometheus"}, ApplicationResource{
		ServiceName: "server_http",
		Version:     "test",
		Env:         "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = mp.Shutdown(context.Background())
	})

	h := Middleware("server_http", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	rr := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "http_server_requests")
}

func TestServeExposesMetrics(t *testing.T) {
	prev := otel.GetMeterProvider()
	m, err := Serve(context.Background(), "127.0.0.1:0", ApplicationResource{ServiceName: "server_http"}, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		assert.NoError(t, m.Close(context.Background()))
	})

	h := Middleware("server_http", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	resp, err := http.Get("http://" + m.Listener.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(b), "http_server_requests")
}

func TestServeLogsServeErrors(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	prev := otel.GetMeterProvider()
	m, err := Serve(context.Background(), "127.0.0.1:0", ApplicationResource{ServiceName: "server_http"}, zap.New(core))
	require.NoError(t, err)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = m.Close(context.Background())
	})

	// closing the listener behind the server's back ends Serve with an error
	require.NoError(t, m.Listener.Close())

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("metrics server stopped").Len() == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServeBindError(t *testing.T) {
	prev := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	_, err := Serve(context.Background(), "127.0.0.1:99999", ApplicationResource{ServiceName: "server_http"}, logging.NewNop())
	assert.ErrorContains(t, err, "listen on 127.0.0.1:99999")
}
