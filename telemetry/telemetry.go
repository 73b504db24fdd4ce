package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelMetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.25.0"
	"go.uber.org/zap"
)

const meterName = "github.com/pvlbzn/aws-stack-application"

type ApplicationResource struct {
	ServiceName string
	Version     string
	Env         string
}

// newResource describes the process. Detector and merge failures degrade to
// the application attributes alone.
func newResource(ctx context.Context, rs ApplicationResource) *sdkresource.Resource {
	applicationResource := sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(rs.ServiceName),
		semconv.ServiceVersionKey.String(rs.Version),
		attribute.String("environment", rs.Env),
		attribute.String("application", rs.ServiceName),
	)
	extraResources, err := sdkresource.New(
		ctx,
		sdkresource.WithOS(),
		sdkresource.WithProcess(),
		sdkresource.WithHost(),
	)
	if err != nil && !errors.Is(err, sdkresource.ErrPartialResource) {
		return applicationResource
	}
	svcResource, err := sdkresource.Merge(extraResources, applicationResource)
	if err != nil {
		return applicationResource
	}
	merged, err := sdkresource.Merge(sdkresource.Default(), svcResource)
	if err != nil {
		return svcResource
	}
	return merged
}

// InitMeterProviderWith installs a global meter provider reading through
// the named exporters. Only "prometheus" is known.
func InitMeterProviderWith(ctx context.Context, exporters []string, rs ApplicationResource) (*sdkmetric.MeterProvider, error) {
	var opts []sdkmetric.Option
	for _, exporterName := range exporters {
		switch exporterName {
		case "prometheus":
			promExporter, err := prometheus.New()
			if err != nil {
				return nil, fmt.Errorf("failed to initialize prometheus exporter: %w", err)
			}
			opts = append(opts, sdkmetric.WithReader(promExporter))
		default:
			return nil, fmt.Errorf("unknown metrics exporter %q", exporterName)
		}
	}

	opts = append(opts, sdkmetric.WithResource(newResource(ctx, rs)))

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// MetricsHandler exposes the default prometheus registry, which the
// prometheus exporter registers with.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Middleware counts requests and records their latency in milliseconds.
// The response itself is left untouched.
func Middleware(serviceName string, next http.Handler) http.Handler {
	meter := otel.GetMeterProvider().Meter(meterName)
	requests, _ := meter.Int64Counter(
		"http_server_requests",
		otelMetric.WithDescription("Requests answered by the responder."))
	latency, _ := meter.Float64Histogram(
		"http_server_latency",
		otelMetric.WithUnit("ms"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		attrs := otelMetric.WithAttributes(
			attribute.String("name", serviceName),
			attribute.String("method", r.Method),
			attribute.String("scheme", scheme),
		)
		requests.Add(r.Context(), 1, attrs)
		latency.Record(r.Context(), float64(time.Since(start).Microseconds())/1000, attrs)
	})
}

// RecordClientLatency records one client round trip against url.
func RecordClientLatency(ctx context.Context, url, name string, d time.Duration) {
	meter := otel.GetMeterProvider().Meter(meterName)
	latencyRecorder, _ := meter.Float64Histogram(
		"http_client_latency",
		otelMetric.WithUnit("ms"))
	latencyRecorder.Record(ctx,
		float64(d.Milliseconds()),
		otelMetric.WithAttributes(
			attribute.String("url", url),
			attribute.String("name", name),
		))
}

// Metrics is a running /metrics endpoint and the meter provider behind it.
type Metrics struct {
	Provider *sdkmetric.MeterProvider
	Listener net.Listener
	server   *http.Server
}

// Serve initializes a prometheus-backed meter provider and exposes it on
// addr at /metrics in the background. Bind errors are returned directly;
// later serve errors are logged.
func Serve(ctx context.Context, addr string, rs ApplicationResource, log *zap.Logger) (*Metrics, error) {
	mp, err := InitMeterProviderWith(ctx, []string{"prometheus"}, rs)
	if err != nil {
		return nil, err
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())
	m := &Metrics{
		Provider: mp,
		Listener: l,
		server:   &http.Server{Handler: mux},
	}
	go func() {
		if err := m.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.String("addr", l.Addr().String()), zap.Error(err))
		}
	}()
	return m, nil
}

func (m *Metrics) Close(ctx context.Context) error {
	return errors.Join(m.server.Close(), m.Provider.Shutdown(ctx))
}
