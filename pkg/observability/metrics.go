package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics and Prometheus integration
type MetricsProvider struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	registry      *prometheus.Registry

	rpcCallsTotal       metric.Int64Counter
	rpcCallDuration     metric.Float64Histogram
	adapterCyclesTotal  metric.Int64Counter
	adapterCycleErrors  metric.Int64Counter
	riskComputeTotal    metric.Int64Counter
	riskComputeDuration metric.Float64Histogram
	alertsEmittedTotal  metric.Int64Counter
	circuitBreakerTrips metric.Int64Counter
	positionsTracked    metric.Int64UpDownCounter
	oracleConfidence    metric.Float64Gauge
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	Namespace      string
	Port           int
	Enabled        bool
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg MetricsConfig) (*MetricsProvider, error) {
	if !cfg.Enabled {
		return &MetricsProvider{}, nil
	}

	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithNamespace(cfg.Namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(cfg.ServiceName)

	mp := &MetricsProvider{
		meterProvider: meterProvider,
		meter:         meter,
		registry:      registry,
	}

	if err := mp.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return mp, nil
}

func (mp *MetricsProvider) initializeMetrics() error {
	var err error

	mp.rpcCallsTotal, err = mp.meter.Int64Counter(
		"chain_rpc_calls_total",
		metric.WithDescription("Total number of chain RPC calls"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create chain_rpc_calls_total counter: %w", err)
	}

	mp.rpcCallDuration, err = mp.meter.Float64Histogram(
		"chain_rpc_call_duration_seconds",
		metric.WithDescription("Chain RPC call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return fmt.Errorf("failed to create chain_rpc_call_duration histogram: %w", err)
	}

	mp.adapterCyclesTotal, err = mp.meter.Int64Counter(
		"adapter_cycles_total",
		metric.WithDescription("Total number of protocol adapter ingestion cycles"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create adapter_cycles_total counter: %w", err)
	}

	mp.adapterCycleErrors, err = mp.meter.Int64Counter(
		"adapter_cycle_errors_total",
		metric.WithDescription("Total number of failed protocol adapter ingestion cycles"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create adapter_cycle_errors_total counter: %w", err)
	}

	mp.riskComputeTotal, err = mp.meter.Int64Counter(
		"risk_computations_total",
		metric.WithDescription("Total number of risk computations performed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create risk_computations_total counter: %w", err)
	}

	mp.riskComputeDuration, err = mp.meter.Float64Histogram(
		"risk_computation_duration_seconds",
		metric.WithDescription("Risk computation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5),
	)
	if err != nil {
		return fmt.Errorf("failed to create risk_computation_duration histogram: %w", err)
	}

	mp.alertsEmittedTotal, err = mp.meter.Int64Counter(
		"alerts_emitted_total",
		metric.WithDescription("Total number of alerts emitted"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create alerts_emitted_total counter: %w", err)
	}

	mp.circuitBreakerTrips, err = mp.meter.Int64Counter(
		"circuit_breaker_trips_total",
		metric.WithDescription("Total number of chain client circuit breaker trips"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create circuit_breaker_trips_total counter: %w", err)
	}

	mp.positionsTracked, err = mp.meter.Int64UpDownCounter(
		"positions_tracked",
		metric.WithDescription("Number of positions currently tracked"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create positions_tracked gauge: %w", err)
	}

	mp.oracleConfidence, err = mp.meter.Float64Gauge(
		"oracle_price_confidence",
		metric.WithDescription("Most recent oracle price confidence score"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create oracle_price_confidence gauge: %w", err)
	}

	return nil
}

// RecordRPCCall records a chain RPC call metric.
func (mp *MetricsProvider) RecordRPCCall(ctx context.Context, chain, method, status string, duration time.Duration) {
	if mp.rpcCallsTotal == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("chain", chain),
		attribute.String("method", method),
		attribute.String("status", status),
	}
	mp.rpcCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.rpcCallDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAdapterCycle records a protocol adapter ingestion cycle.
func (mp *MetricsProvider) RecordAdapterCycle(ctx context.Context, protocol string, chainID uint64, success bool) {
	if mp.adapterCyclesTotal == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("protocol", protocol),
		attribute.Int64("chain_id", int64(chainID)),
	}
	mp.adapterCyclesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if !success {
		mp.adapterCycleErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordRiskComputation records a risk computation.
func (mp *MetricsProvider) RecordRiskComputation(ctx context.Context, riskType, protocol string, duration time.Duration) {
	if mp.riskComputeTotal == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("risk_type", riskType),
		attribute.String("protocol", protocol),
	}
	mp.riskComputeTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.riskComputeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAlertEmitted records an alert being emitted.
func (mp *MetricsProvider) RecordAlertEmitted(ctx context.Context, metricName, severity string) {
	if mp.alertsEmittedTotal == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("metric", metricName),
		attribute.String("severity", severity),
	}
	mp.alertsEmittedTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCircuitBreakerTrip records a circuit breaker opening.
func (mp *MetricsProvider) RecordCircuitBreakerTrip(ctx context.Context, chain string) {
	if mp.circuitBreakerTrips == nil {
		return
	}
	mp.circuitBreakerTrips.Add(ctx, 1, metric.WithAttributes(attribute.String("chain", chain)))
}

// SetPositionsTracked adjusts the tracked-position gauge by delta.
func (mp *MetricsProvider) SetPositionsTracked(ctx context.Context, delta int64) {
	if mp.positionsTracked == nil {
		return
	}
	mp.positionsTracked.Add(ctx, delta)
}

// RecordOracleConfidence records the confidence of the most recent price validation.
func (mp *MetricsProvider) RecordOracleConfidence(ctx context.Context, token string, confidence float64) {
	if mp.oracleConfidence == nil {
		return
	}
	mp.oracleConfidence.Record(ctx, confidence, metric.WithAttributes(attribute.String("token", token)))
}

// StartMetricsServer starts the Prometheus metrics HTTP server
func (mp *MetricsProvider) StartMetricsServer(port int) error {
	if mp.registry == nil {
		return fmt.Errorf("metrics not enabled")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(mp.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	return server.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	if mp.meterProvider == nil {
		return nil
	}
	return mp.meterProvider.Shutdown(ctx)
}
