package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Harvey-AU/tour-crawler/internal/cache"
	"github.com/rs/zerolog/log"
	"github.com/temoto/robotstxt"
)

// robotsMaxBytes limits robots.txt size to prevent memory exhaustion
const robotsMaxBytes = 512 * 1024

// RobotsChecker answers robots.txt questions for the sites a crawl visits.
// Rules are fetched once per scheme and host and kept in an in-memory cache.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	rules     *cache.Cache[*robotstxt.RobotsData]
}

// NewRobotsChecker creates a checker that identifies itself with userAgent
func NewRobotsChecker(userAgent string, timeout time.Duration) *RobotsChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RobotsChecker{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		rules:     cache.New[*robotstxt.RobotsData](),
	}
}

// Allowed reports whether pageURL may be fetched. Sites without a readable
// robots.txt allow everything.
func (rc *RobotsChecker) Allowed(ctx context.Context, pageURL string) bool {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return true
	}

	data := rc.load(ctx, parsed)
	if data == nil {
		return true
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.TestAgent(path, rc.agentName())
}

// CrawlDelay returns the Crawl-delay declared for our agent, or zero.
func (rc *RobotsChecker) CrawlDelay(ctx context.Context, siteURL string) time.Duration {
	parsed, err := url.Parse(siteURL)
	if err != nil || parsed.Host == "" {
		return 0
	}

	data := rc.load(ctx, parsed)
	if data == nil {
		return 0
	}
	if group := data.FindGroup(rc.agentName()); group != nil {
		return group.CrawlDelay
	}
	return 0
}

// agentName extracts the product token, e.g. "TourCrawler/1.0 (...)" -> "TourCrawler"
func (rc *RobotsChecker) agentName() string {
	return strings.TrimSpace(strings.Split(rc.userAgent, "/")[0])
}

func (rc *RobotsChecker) load(ctx context.Context, site *url.URL) *robotstxt.RobotsData {
	key := site.Scheme + "://" + strings.ToLower(site.Host)

	return rc.rules.GetOrLoad(ctx, key, func(ctx context.Context) *robotstxt.RobotsData {
		data, err := rc.fetch(ctx, key+"/robots.txt")
		if err != nil {
			log.Warn().
				Err(err).
				Str("site", key).
				Msg("Could not read robots.txt, treating site as unrestricted")
			return nil
		}
		return data
	})
}

func (rc *RobotsChecker) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	log.Debug().
		Str("robots_url", robotsURL).
		Msg("Fetching robots.txt")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		// A broken robots.txt endpoint should not block the whole crawl.
		return nil, fmt.Errorf("robots.txt returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read robots.txt: %w", err)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse robots.txt: %w", err)
	}
	return data, nil
}
