package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Harvey-AU/tour-crawler/internal/extract"
	"github.com/Harvey-AU/tour-crawler/internal/observability"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds process-wide settings read from the environment
type Config struct {
	Env                  string
	LogLevel             string
	SentryDSN            string
	ObservabilityEnabled bool
	MetricsAddr          string
	OTLPEndpoint         string
	OTLPHeaders          string
	OTLPInsecure         bool
	GazetteerPath        string

	// Defaults for ad-hoc --url crawls
	UserAgent     string
	MaxDepth      int
	MaxPages      int
	RequestDelay  time.Duration
	Timeout       time.Duration
	RespectRobots bool
}

func loadConfig() *Config {
	return &Config{
		Env:                  getEnvWithDefault("APP_ENV", "development"),
		LogLevel:             getEnvWithDefault("LOG_LEVEL", "info"),
		SentryDSN:            os.Getenv("SENTRY_DSN"),
		ObservabilityEnabled: getEnvWithDefault("OBSERVABILITY_ENABLED", "true") == "true",
		MetricsAddr:          getEnvWithDefault("METRICS_ADDR", ":9464"),
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPHeaders:          os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		OTLPInsecure:         getEnvWithDefault("OTEL_EXPORTER_OTLP_INSECURE", "false") == "true",
		GazetteerPath:        os.Getenv("GAZETTEER_PATH"),
		UserAgent:            os.Getenv("CRAWL_USER_AGENT"),
		MaxDepth:             getEnvInt("CRAWL_MAX_DEPTH", 3),
		MaxPages:             getEnvInt("CRAWL_MAX_PAGES", 50),
		RequestDelay:         getEnvDuration("CRAWL_REQUEST_DELAY_MS", time.Second),
		Timeout:              getEnvDuration("CRAWL_TIMEOUT_MS", 30*time.Second),
		RespectRobots:        getEnvWithDefault("CRAWL_RESPECT_ROBOTS", "false") == "true",
	}
}

func main() {
	// Load .env files - .env.local takes priority for development
	_ = godotenv.Load(".env.local", ".env")

	config := loadConfig()
	setupLogging(config)

	flushSentry := initSentry(config)
	stopTelemetry := startTelemetry(config)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	code := 0
	if err := NewRootCmd(config).ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		code = 1
	}

	stop()
	stopTelemetry()
	flushSentry()
	os.Exit(code)
}

// initSentry sets up error reporting and returns a flush func
func initSentry(config *Config) func() {
	if config.SentryDSN == "" {
		log.Debug().Msg("Sentry DSN not configured, error tracking disabled")
		return func() {}
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         config.SentryDSN,
		Environment: config.Env,
		TracesSampleRate: func() float64 {
			if config.Env == "production" {
				return 0.1 // 10% sampling in production
			}
			return 1.0
		}(),
		AttachStacktrace: true,
		Debug:            config.Env == "development",
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialise Sentry")
		return func() {}
	}

	log.Info().Str("environment", config.Env).Msg("Sentry initialised successfully")
	return func() { sentry.Flush(2 * time.Second) }
}

// startTelemetry initialises tracing and metrics and serves /metrics while
// the command runs. The returned func flushes and stops everything.
func startTelemetry(config *Config) func() {
	if !config.ObservabilityEnabled {
		return func() {}
	}

	providers, err := observability.Init(context.Background(), observability.Config{
		Enabled:        true,
		ServiceName:    "tour-crawler",
		Environment:    config.Env,
		OTLPEndpoint:   strings.TrimSpace(config.OTLPEndpoint),
		OTLPHeaders:    parseOTLPHeaders(config.OTLPHeaders),
		OTLPInsecure:   config.OTLPInsecure,
		MetricsAddress: config.MetricsAddr,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialise observability providers")
		return func() {}
	}

	var metricsSrv *http.Server
	if providers.MetricsHandler != nil && config.MetricsAddr != "" {
		metricsSrv = &http.Server{
			Addr:              config.MetricsAddr,
			Handler:           observability.WrapHandler(newMetricsMux(providers.MetricsHandler), providers),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			log.Info().Str("addr", config.MetricsAddr).Msg("Metrics server listening")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				sentry.CaptureException(err)
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn().Err(err).Msg("Graceful shutdown of metrics server failed")
			}
		}
		if err := providers.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to flush telemetry providers cleanly")
		}
	}
}

func newMetricsMux(metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// loadGazetteer returns the keyword resource, from GAZETTEER_PATH when set
func loadGazetteer(config *Config) (*extract.Gazetteer, error) {
	if config.GazetteerPath == "" {
		return extract.DefaultGazetteer(), nil
	}
	g, err := extract.LoadGazetteer(config.GazetteerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load gazetteer: %w", err)
	}
	return g, nil
}

// getEnvWithDefault retrieves an environment variable or returns a default value if not set
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns a default value if not set or invalid
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result int
	if _, err := fmt.Sscanf(value, "%d", &result); err != nil {
		log.Warn().
			Str("key", key).
			Str("value", value).
			Int("default", defaultValue).
			Msg("Invalid integer in environment variable, using default")
		return defaultValue
	}

	return result
}

// getEnvDuration reads a millisecond count from the environment
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	ms := getEnvInt(key, -1)
	if ms < 0 {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}

func parseOTLPHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return headers
	}

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}

	return headers
}

// setupLogging configures the logging system
func setupLogging(config *Config) {
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// stdout is reserved for command output
	if config.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stderr).
			With().
			Timestamp().
			Str("service", "tour-crawler").
			Logger()
	}
}
