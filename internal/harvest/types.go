package harvest

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Harvey-AU/tour-crawler/internal/crawler"
)

// Source defaults
const (
	DefaultMaxDepth     = 3
	DefaultMaxPages     = 50
	DefaultRequestDelay = time.Second
	DefaultTimeout      = 30 * time.Second

	// SeedOnly as Source.MaxDepth crawls the seed page and follows no links.
	// A zero MaxDepth is unset and takes DefaultMaxDepth.
	SeedOnly = -1

	// progressEvery is how many dequeues pass between progress log entries
	progressEvery = 10
)

var (
	// ErrInvalidSource is returned for sources that cannot be crawled at all
	ErrInvalidSource = errors.New("invalid source")
	// ErrInactiveSource is returned when a disabled source is handed to the orchestrator
	ErrInactiveSource = errors.New("source is not active")
)

// Source describes one site to crawl and the bounds of the crawl
type Source struct {
	ID           string
	Name         string
	SeedURL      string
	Active       bool
	MaxDepth     int
	MaxPages     int
	RequestDelay time.Duration
	Timeout      time.Duration
	UserAgent    string

	// RespectRobots makes the crawl skip paths disallowed by robots.txt and
	// honour its Crawl-delay when that is longer than RequestDelay.
	RespectRobots bool
}

// WithDefaults returns a copy of s with unset tunables filled in
func (s Source) WithDefaults() Source {
	if s.MaxDepth == 0 {
		s.MaxDepth = DefaultMaxDepth
	}
	if s.MaxPages <= 0 {
		s.MaxPages = DefaultMaxPages
	}
	if s.RequestDelay <= 0 {
		s.RequestDelay = DefaultRequestDelay
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.UserAgent == "" {
		s.UserAgent = crawler.DefaultUserAgent
	}
	return s
}

// DepthLimit is the deepest link level the crawl follows; SeedOnly gives 0
func (s Source) DepthLimit() int {
	if s.MaxDepth < 0 {
		return 0
	}
	return s.MaxDepth
}

// DepthFromLimit converts a stored or configured depth limit, where 0 means
// the seed only, into a Source.MaxDepth value.
func DepthFromLimit(limit int) int {
	if limit <= 0 {
		return SeedOnly
	}
	return limit
}

// Validate checks the source can be crawled
func (s Source) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidSource)
	}
	parsed, err := url.Parse(s.SeedURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%w: seed url %q must be an absolute http(s) url", ErrInvalidSource, s.SeedURL)
	}
	if !s.Active {
		return fmt.Errorf("%w: %s", ErrInactiveSource, s.ID)
	}
	return nil
}

// QueueItem is a frontier entry
type QueueItem struct {
	URL       string
	Depth     int
	ParentURL string
}

// Outcome is the result of visiting a URL
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// VisitedEntry records what happened to one dequeued URL
type VisitedEntry struct {
	URL       string
	Depth     int
	Outcome   Outcome
	Extracted bool
	Error     string
}

// Summary holds the counters of a finished (or aborted) crawl
type Summary struct {
	SourceID  string
	Visited   int
	Extracted int
	Failed    int
	Skipped   int
	Queued    int
	Duration  time.Duration
}

// LogLevel is the severity of a crawl log entry
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)
