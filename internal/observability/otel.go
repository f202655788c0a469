package observability

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"skillwizard/internal/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ObservabilityConfig holds configuration for observability
type ObservabilityConfig struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool
	ConsoleOutput  bool
	PrettyPrint    bool
	SampleRate     float64
	Prometheus     PrometheusConfig
}

// ObservabilityManager manages OpenTelemetry setup
type ObservabilityManager struct {
	config           ObservabilityConfig
	fullConfig       *config.Config
	resource         *resource.Resource
	tracerProvider   *trace.TracerProvider
	meterProvider    *sdkmetric.MeterProvider
	metrics          *Metrics
	shutdownFuncs    []func(context.Context) error
	prometheusServer *http.Server
}

// NewObservabilityManager creates a new observability manager
func NewObservabilityManager(obsConfig ObservabilityConfig, fullConfig *config.Config) (*ObservabilityManager, error) {
	if !obsConfig.Enabled {
		return &ObservabilityManager{config: obsConfig, fullConfig: fullConfig}, nil
	}

	om := &ObservabilityManager{
		config:        obsConfig,
		fullConfig:    fullConfig,
		shutdownFuncs: make([]func(context.Context) error, 0),
	}

	if err := om.initResource(); err != nil {
		return nil, fmt.Errorf("failed to initialize resource: %w", err)
	}

	if err := om.initTracing(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := om.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return om, nil
}

// initResource creates the OpenTelemetry resource shared by traces and metrics
func (om *ObservabilityManager) initResource() error {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(om.config.ServiceName),
			semconv.ServiceVersion(om.config.ServiceVersion),
			attribute.String("service.instance.id", om.getServiceInstanceID()),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	om.resource = res
	return nil
}

// initTracing sets up OpenTelemetry tracing
func (om *ObservabilityManager) initTracing() error {
	var exporter trace.SpanExporter
	var err error

	if om.config.ConsoleOutput {
		opts := []stdouttrace.Option{}
		if om.config.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		exporter, err = stdouttrace.New(opts...)
	} else if om.fullConfig != nil && om.fullConfig.Observability.OTLP.Enabled {
		exporter, err = om.createOTLPExporter()
	} else {
		exporter = &noOpSpanExporter{}
	}

	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(om.resource),
		trace.WithSampler(trace.TraceIDRatioBased(om.config.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	om.tracerProvider = tp
	om.shutdownFuncs = append(om.shutdownFuncs, tp.Shutdown)

	return nil
}

// initMetrics sets up OpenTelemetry metrics
func (om *ObservabilityManager) initMetrics() error {
	readers, err := om.setupMetricReaders()
	if err != nil {
		return err
	}

	meterProviderOptions := []sdkmetric.Option{
		sdkmetric.WithResource(om.resource),
	}
	for _, reader := range readers {
		meterProviderOptions = append(meterProviderOptions, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(meterProviderOptions...)

	otel.SetMeterProvider(mp)
	om.meterProvider = mp
	om.shutdownFuncs = append(om.shutdownFuncs, mp.Shutdown)

	var custom config.CustomMetricsConfig
	if om.fullConfig != nil {
		custom = om.fullConfig.Observability.CustomMetrics
	} else {
		custom = defaultCustomMetrics()
	}

	om.metrics, err = newMetrics(mp.Meter(om.config.ServiceName), custom)
	return err
}

// setupMetricReaders sets up all metric readers based on configuration
func (om *ObservabilityManager) setupMetricReaders() ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader

	if err := om.setupConsoleReader(&readers); err != nil {
		return nil, err
	}

	if err := om.setupOTLPReader(&readers); err != nil {
		return nil, err
	}

	if err := om.setupPrometheusReader(&readers); err != nil {
		return nil, err
	}

	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}

	return readers, nil
}

// setupConsoleReader sets up console metric reader if enabled
func (om *ObservabilityManager) setupConsoleReader(readers *[]sdkmetric.Reader) error {
	if !om.config.ConsoleOutput {
		return nil
	}

	exporter, err := stdoutmetric.New()
	if err != nil {
		return fmt.Errorf("failed to create console metric exporter: %w", err)
	}

	interval := om.getMetricsCollectionInterval()
	*readers = append(*readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	return nil
}

// setupOTLPReader sets up OTLP metric reader if enabled
func (om *ObservabilityManager) setupOTLPReader(readers *[]sdkmetric.Reader) error {
	if om.fullConfig == nil || !om.fullConfig.Observability.OTLP.Enabled {
		return nil
	}

	otlpReader, err := om.createOTLPMetricsReader()
	if err != nil {
		return fmt.Errorf("failed to create OTLP metrics reader: %w", err)
	}
	if otlpReader != nil {
		*readers = append(*readers, otlpReader)
	}
	return nil
}

// setupPrometheusReader sets up Prometheus metric reader and its scrape server
func (om *ObservabilityManager) setupPrometheusReader(readers *[]sdkmetric.Reader) error {
	if !om.config.Prometheus.Enabled {
		return nil
	}

	prometheusReader, prometheusMux, err := SetupPrometheusExporter(om.config.Prometheus)
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}
	if prometheusReader != nil {
		*readers = append(*readers, prometheusReader)

		srv, err := StartPrometheusServer(prometheusMux, om.config.Prometheus.Port)
		if err != nil {
			return fmt.Errorf("failed to start Prometheus server: %w", err)
		}
		om.prometheusServer = srv
		if srv != nil {
			om.shutdownFuncs = append(om.shutdownFuncs, srv.Shutdown)
		}
	}
	return nil
}

// Metrics holds the wizard's custom instruments. A zero Metrics records nothing.
type Metrics struct {
	ActionCount        metric.Int64Counter
	ActionDuration     metric.Float64Histogram
	StaleResponses     metric.Int64Counter
	ValidationFailures metric.Int64Counter
	SessionsStarted    metric.Int64Counter
	RateLimitHits      metric.Int64Counter

	trackDuration bool
}

func defaultCustomMetrics() config.CustomMetricsConfig {
	return config.CustomMetricsConfig{
		Actions:        config.ActionMetricsConfig{Enabled: true, TrackDuration: true},
		Wizard:         config.WizardMetricsConfig{Enabled: true},
		Infrastructure: config.InfrastructureMetricsConfig{Enabled: true, TrackRateLimits: true},
	}
}

// newMetrics creates the instruments enabled by cfg; disabled groups stay nil
func newMetrics(meter metric.Meter, cfg config.CustomMetricsConfig) (*Metrics, error) {
	m := &Metrics{trackDuration: cfg.Actions.TrackDuration}
	var err error

	if cfg.Actions.Enabled {
		m.ActionCount, err = meter.Int64Counter(
			"skillwizard_actions_total",
			metric.WithDescription("Total number of wizard actions by outcome"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create action count metric: %w", err)
		}

		m.ActionDuration, err = meter.Float64Histogram(
			"skillwizard_action_duration_seconds",
			metric.WithDescription("Time spent completing wizard actions, including the backend call"),
			metric.WithUnit("s"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create action duration metric: %w", err)
		}

		m.StaleResponses, err = meter.Int64Counter(
			"skillwizard_stale_responses_total",
			metric.WithDescription("Backend responses discarded because a newer request superseded them"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create stale response metric: %w", err)
		}
	}

	if cfg.Wizard.Enabled {
		m.ValidationFailures, err = meter.Int64Counter(
			"skillwizard_validation_failures_total",
			metric.WithDescription("Intake steps rejected by validation"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create validation failure metric: %w", err)
		}

		m.SessionsStarted, err = meter.Int64Counter(
			"skillwizard_sessions_started_total",
			metric.WithDescription("Total number of wizard sessions started"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create sessions started metric: %w", err)
		}
	}

	if cfg.Infrastructure.Enabled && cfg.Infrastructure.TrackRateLimits {
		m.RateLimitHits, err = meter.Int64Counter(
			"skillwizard_rate_limit_hits_total",
			metric.WithDescription("Total number of rate limit hits"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limit hits metric: %w", err)
		}
	}

	return m, nil
}

// GetMetrics returns the metrics instance
func (om *ObservabilityManager) GetMetrics() *Metrics {
	if om.metrics == nil {
		return &Metrics{}
	}
	return om.metrics
}

// RecordAction counts a finished action and records how long it took
func (m *Metrics) RecordAction(ctx context.Context, action, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	)
	if m.ActionCount != nil {
		m.ActionCount.Add(ctx, 1, attrs)
	}
	if m.ActionDuration != nil && m.trackDuration {
		m.ActionDuration.Record(ctx, duration.Seconds(), attrs)
	}
}

// RecordStaleResponse counts a discarded backend response
func (m *Metrics) RecordStaleResponse(ctx context.Context, action string) {
	if m.StaleResponses != nil {
		m.StaleResponses.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
	}
}

// RecordValidationFailure counts a rejected intake step
func (m *Metrics) RecordValidationFailure(ctx context.Context, step int) {
	if m.ValidationFailures != nil {
		m.ValidationFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("step", strconv.Itoa(step))))
	}
}

// RecordSessionStarted counts a new wizard session
func (m *Metrics) RecordSessionStarted(ctx context.Context) {
	if m.SessionsStarted != nil {
		m.SessionsStarted.Add(ctx, 1)
	}
}

// RecordRateLimitHit counts a request rejected by the rate limiter
func (m *Metrics) RecordRateLimitHit(ctx context.Context, route string) {
	if m.RateLimitHits != nil {
		m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("route", route)))
	}
}

// HTTPMiddleware returns HTTP middleware with OpenTelemetry instrumentation
func (om *ObservabilityManager) HTTPMiddleware() func(http.Handler) http.Handler {
	if !om.config.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}

	return otelhttp.NewMiddleware(
		om.config.ServiceName,
		otelhttp.WithTracerProvider(om.tracerProvider),
		otelhttp.WithMeterProvider(om.meterProvider),
	)
}

// Tracer returns a tracer for the service
func (om *ObservabilityManager) Tracer(name string) oteltrace.Tracer {
	if !om.config.Enabled {
		return noop.NewTracerProvider().Tracer(name)
	}
	return otel.Tracer(name)
}

// Shutdown gracefully shuts down all observability components
func (om *ObservabilityManager) Shutdown(ctx context.Context) error {
	for _, shutdown := range om.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// No-op exporter for when neither console nor OTLP output is enabled
type noOpSpanExporter struct{}

func (n *noOpSpanExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	return nil
}

func (n *noOpSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}

// createOTLPExporter creates an OTLP HTTP trace exporter
func (om *ObservabilityManager) createOTLPExporter() (trace.SpanExporter, error) {
	if om.fullConfig == nil {
		return nil, fmt.Errorf("config not available for OTLP configuration")
	}

	otlpConfig := om.fullConfig.Observability.OTLP

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(otlpConfig.Endpoint),
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	return exporter, nil
}

// createOTLPMetricsReader creates an OTLP HTTP metrics reader
func (om *ObservabilityManager) createOTLPMetricsReader() (sdkmetric.Reader, error) {
	if om.fullConfig == nil {
		return nil, fmt.Errorf("config not available for OTLP configuration")
	}

	otlpConfig := om.fullConfig.Observability.OTLP

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpointURL(otlpConfig.Endpoint),
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	interval := om.getMetricsCollectionInterval()
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), nil
}

// getServiceInstanceID returns the service instance ID from config or a default
func (om *ObservabilityManager) getServiceInstanceID() string {
	if om.fullConfig != nil && om.fullConfig.Observability.ServiceInstance != "" {
		return om.fullConfig.Observability.ServiceInstance
	}
	return "skillwizard-1"
}

// getMetricsCollectionInterval returns the configured metrics collection interval
func (om *ObservabilityManager) getMetricsCollectionInterval() time.Duration {
	if om.fullConfig != nil && om.fullConfig.Observability.Metrics.CollectionInterval > 0 {
		return om.fullConfig.Observability.Metrics.CollectionInterval
	}
	return 15 * time.Second
}
