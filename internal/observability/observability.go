package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "tour-crawler/crawler"

// Config controls observability initialisation.
type Config struct {
	Enabled        bool
	ServiceName    string
	Environment    string
	OTLPEndpoint   string
	OTLPHeaders    map[string]string
	OTLPInsecure   bool
	MetricsAddress string
}

// Providers exposes configured telemetry providers.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Propagator     propagation.TextMapPropagator
	MetricsHandler http.Handler
	Shutdown       func(ctx context.Context) error
	Config         Config
}

var (
	initOnce sync.Once

	crawlTracer trace.Tracer

	fetchDuration metric.Float64Histogram
	pagesTotal    metric.Int64Counter
	recordsTotal  metric.Int64Counter
	crawlsTotal   metric.Int64Counter
	crawlDuration metric.Float64Histogram
)

// Init configures tracing and metrics exporters. When cfg.Enabled is false the function is a no-op.
func Init(ctx context.Context, cfg Config) (*Providers, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "tour-crawler"
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	var spanExporter sdktrace.SpanExporter
	if cfg.OTLPEndpoint != "" {
		clientOpts := []otlptracehttp.Option{
			getOTLPEndpointOption(cfg.OTLPEndpoint),
		}
		if cfg.OTLPInsecure {
			clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
		}
		if len(cfg.OTLPHeaders) > 0 {
			clientOpts = append(clientOpts, otlptracehttp.WithHeaders(cfg.OTLPHeaders))
		}

		exp, err := otlptracehttp.New(ctx, clientOpts...)
		if err != nil {
			// Crawls still run without tracing
			log.Warn().Err(err).Str("endpoint", cfg.OTLPEndpoint).Msg("Failed to create OTLP trace exporter, traces disabled")
		} else {
			spanExporter = exp
			log.Info().Str("endpoint", cfg.OTLPEndpoint).Msg("OTLP trace exporter initialised")
		}
	}

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}
	if spanExporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(spanExporter))
	}

	tracerProvider := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tracerProvider)

	prop := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(prop)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	promExporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx) // best-effort cleanup
		return nil, fmt.Errorf("create Prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)
	otel.SetMeterProvider(meterProvider)

	initOnce.Do(func() {
		crawlTracer = tracerProvider.Tracer(instrumentationName)
		if err := initCrawlerInstruments(meterProvider); err != nil {
			log.Warn().Err(err).Msg("Failed to create crawler instruments")
		}
	})

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		var allErr error
		if err := meterProvider.Shutdown(ctx); err != nil {
			allErr = errors.Join(allErr, fmt.Errorf("metric provider shutdown: %w", err))
		}
		if err := tracerProvider.Shutdown(ctx); err != nil {
			allErr = errors.Join(allErr, fmt.Errorf("trace provider shutdown: %w", err))
		}
		return allErr
	}

	return &Providers{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		Propagator:     prop,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Shutdown:       shutdown,
		Config:         cfg,
	}, nil
}

func getOTLPEndpointOption(endpoint string) otlptracehttp.Option {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return otlptracehttp.WithEndpointURL(endpoint)
	}
	return otlptracehttp.WithEndpoint(endpoint)
}

// WrapHandler applies OpenTelemetry instrumentation to an http.Handler when the providers are active.
func WrapHandler(handler http.Handler, prov *Providers) http.Handler {
	if prov == nil || prov.TracerProvider == nil {
		return handler
	}

	options := []otelhttp.Option{
		otelhttp.WithTracerProvider(prov.TracerProvider),
		otelhttp.WithPropagators(prov.Propagator),
		otelhttp.WithMeterProvider(prov.MeterProvider),
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
		}),
		// Scrapes and health checks are noise
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	}

	return otelhttp.NewHandler(handler, "http.server", options...)
}

func initCrawlerInstruments(meterProvider *sdkmetric.MeterProvider) error {
	if meterProvider == nil {
		return nil
	}

	meter := meterProvider.Meter(instrumentationName)

	var err error
	fetchDuration, err = meter.Float64Histogram(
		"tour.crawler.fetch.duration_ms",
		metric.WithUnit("ms"),
		metric.WithDescription("Time taken to fetch a page"),
	)
	if err != nil {
		return err
	}

	pagesTotal, err = meter.Int64Counter(
		"tour.crawler.pages.total",
		metric.WithDescription("Counts page fetches by outcome"),
	)
	if err != nil {
		return err
	}

	recordsTotal, err = meter.Int64Counter(
		"tour.crawler.records.total",
		metric.WithDescription("Counts package records extracted"),
	)
	if err != nil {
		return err
	}

	crawlsTotal, err = meter.Int64Counter(
		"tour.crawler.crawls.total",
		metric.WithDescription("Counts crawls by result"),
	)
	if err != nil {
		return err
	}

	crawlDuration, err = meter.Float64Histogram(
		"tour.crawler.crawl.duration_ms",
		metric.WithUnit("ms"),
		metric.WithDescription("Wall time of a whole crawl"),
	)
	return err
}

func tracer() trace.Tracer {
	if crawlTracer != nil {
		return crawlTracer
	}
	return otel.Tracer(instrumentationName)
}

// PageFetchMetrics describes one fetch for metric recording.
type PageFetchMetrics struct {
	Outcome  string
	Duration time.Duration
}

// CrawlMetrics describes a finished crawl.
type CrawlMetrics struct {
	SourceID  string
	Success   bool
	Visited   int
	Extracted int
	Failed    int
	Duration  time.Duration
}

// StartCrawlSpan starts the root span of a crawl.
func StartCrawlSpan(ctx context.Context, sourceID, seedURL string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "crawler.crawl", trace.WithAttributes(
		attribute.String("source.id", sourceID),
		attribute.String("source.seed_url", seedURL),
	))
}

// StartFetchSpan starts a span for a single page fetch.
func StartFetchSpan(ctx context.Context, pageURL string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "crawler.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("url.full", pageURL)),
	)
}

// RecordPageFetch emits fetch metrics when instrumentation is initialised.
func RecordPageFetch(ctx context.Context, m PageFetchMetrics) {
	attrs := metric.WithAttributes(attribute.String("outcome", m.Outcome))
	if fetchDuration != nil {
		fetchDuration.Record(ctx, float64(m.Duration.Milliseconds()), attrs)
	}
	if pagesTotal != nil {
		pagesTotal.Add(ctx, 1, attrs)
	}
}

// RecordCrawl emits crawl metrics and annotates the current span.
func RecordCrawl(ctx context.Context, m CrawlMetrics) {
	result := "completed"
	if !m.Success {
		result = "aborted"
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("crawl.result", result),
		attribute.Int("crawl.visited", m.Visited),
		attribute.Int("crawl.extracted", m.Extracted),
		attribute.Int("crawl.failed", m.Failed),
	)

	attrs := metric.WithAttributes(attribute.String("source.id", m.SourceID), attribute.String("result", result))
	if crawlsTotal != nil {
		crawlsTotal.Add(ctx, 1, attrs)
	}
	if crawlDuration != nil {
		crawlDuration.Record(ctx, float64(m.Duration.Milliseconds()), attrs)
	}
	if recordsTotal != nil && m.Extracted > 0 {
		recordsTotal.Add(ctx, int64(m.Extracted), metric.WithAttributes(attribute.String("source.id", m.SourceID)))
	}
}
