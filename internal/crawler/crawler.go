package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Harvey-AU/tour-crawler/internal/observability"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// Fetcher performs single HTML page fetches for the crawl loop
type Fetcher struct {
	config *Config
	colly  *colly.Collector
}

// NewFetcher creates a Fetcher with the given configuration.
// If config is nil, default configuration is used
func NewFetcher(config *Config) *Fetcher {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultConfig().UserAgent
	}

	c := colly.NewCollector(
		colly.UserAgent(config.UserAgent),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(config.MaxBodySize),
	)

	baseTransport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	c.SetClient(&http.Client{
		Timeout:   config.Timeout,
		Transport: otelhttp.NewTransport(baseTransport),
	})
	c.SetRequestTimeout(config.Timeout)

	return &Fetcher{
		config: config,
		colly:  c,
	}
}

// validateFetchRequest checks the context and that the URL is absolute http(s)
func validateFetchRequest(ctx context.Context, targetURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	parsed, err := url.Parse(targetURL)
	if err != nil {
		return &FetchError{URL: targetURL, Kind: FailureInvalidURL, Err: err}
	}
	if parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return &FetchError{URL: targetURL, Kind: FailureInvalidURL, Err: fmt.Errorf("invalid URL format: %s", targetURL)}
	}
	return nil
}

// Fetch performs one GET of targetURL and returns the page on a 2xx response.
// Failures are returned as *FetchError; the request is never retried.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	if err := validateFetchRequest(ctx, targetURL); err != nil {
		return nil, err
	}

	ctx, span := observability.StartFetchSpan(ctx, targetURL)
	defer span.End()

	start := time.Now()
	page := &Page{URL: targetURL}
	var fetchErr error

	// Clone drops callbacks, so request headers are set per fetch
	clone := f.colly.Clone()
	clone.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", acceptHeader)
		if f.config.AcceptLanguage != "" {
			r.Headers.Set("Accept-Language", f.config.AcceptLanguage)
		}

		log.Debug().
			Str("url", r.URL.String()).
			Msg("Fetcher sending request")
	})

	clone.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		page.ContentType = r.Headers.Get("Content-Type")
		page.FinalURL = r.Request.URL.String()
		page.Body = r.Body
		page.Duration = time.Since(start)

		if r.StatusCode < 200 || r.StatusCode >= 300 {
			fetchErr = &FetchError{
				URL:        targetURL,
				Kind:       FailureStatus,
				StatusCode: r.StatusCode,
				Err:        fmt.Errorf("non-success status code: %d", r.StatusCode),
			}
		}
	})

	clone.OnError(func(r *colly.Response, err error) {
		kind := classifyError(err)
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = &FetchError{URL: targetURL, Kind: kind, StatusCode: status, Err: err}
	})

	done := make(chan error, 1)
	go func() {
		done <- clone.Visit(targetURL)
	}()

	select {
	case err := <-done:
		if err != nil && fetchErr == nil {
			fetchErr = &FetchError{URL: targetURL, Kind: classifyError(err), Err: err}
		}
	case <-ctx.Done():
		// The visit goroutine may still be writing to page; hand back a fresh error.
		err := &FetchError{URL: targetURL, Kind: FailureCancelled, Err: ctx.Err()}
		observability.RecordPageFetch(ctx, observability.PageFetchMetrics{
			Outcome:  "cancelled",
			Duration: time.Since(start),
		})
		span.RecordError(err)
		return nil, err
	}

	elapsed := time.Since(start)
	if fetchErr != nil {
		observability.RecordPageFetch(ctx, observability.PageFetchMetrics{
			Outcome:  "failed",
			Duration: elapsed,
		})
		span.RecordError(fetchErr)
		log.Debug().
			Err(fetchErr).
			Str("url", targetURL).
			Dur("duration", elapsed).
			Msg("Page fetch failed")
		return nil, fetchErr
	}

	observability.RecordPageFetch(ctx, observability.PageFetchMetrics{
		Outcome:  "success",
		Duration: elapsed,
	})
	log.Debug().
		Str("url", targetURL).
		Int("status_code", page.StatusCode).
		Int("bytes", len(page.Body)).
		Dur("duration", elapsed).
		Msg("Page fetched")

	return page, nil
}

// classifyError maps a transport error onto a failure kind
func classifyError(err error) FailureKind {
	if err == nil {
		return FailureNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	if errors.Is(err, context.Canceled) {
		return FailureCancelled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return FailureTimeout
	}
	return FailureNetwork
}
