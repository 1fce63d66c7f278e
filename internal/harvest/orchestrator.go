package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Harvey-AU/tour-crawler/internal/crawler"
	"github.com/Harvey-AU/tour-crawler/internal/extract"
	"github.com/Harvey-AU/tour-crawler/internal/observability"
	"github.com/Harvey-AU/tour-crawler/internal/util"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PageFetcher fetches one page
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*crawler.Page, error)
}

// RobotsPolicy answers robots.txt questions for a crawl
type RobotsPolicy interface {
	Allowed(ctx context.Context, pageURL string) bool
	CrawlDelay(ctx context.Context, siteURL string) time.Duration
}

// Option customises an Orchestrator
type Option func(*Orchestrator)

// WithFetcher replaces the colly fetcher built from the source
func WithFetcher(f PageFetcher) Option {
	return func(o *Orchestrator) { o.fetcher = f }
}

// WithExtractor replaces the default extractor
func WithExtractor(e *extract.Extractor) Option {
	return func(o *Orchestrator) { o.extractor = e }
}

// WithGazetteer builds the extractor from g
func WithGazetteer(g *extract.Gazetteer) Option {
	return func(o *Orchestrator) { o.extractor = extract.New(g) }
}

// WithRobots sets the robots policy, enabling it regardless of Source.RespectRobots
func WithRobots(r RobotsPolicy) Option {
	return func(o *Orchestrator) { o.robots = r }
}

// WithThrottle replaces the per-crawl throttle built from Source.RequestDelay
func WithThrottle(t *crawler.Throttle) Option {
	return func(o *Orchestrator) { o.throttle = t }
}

// WithClock sets the time source used for timestamps and durations
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator runs one breadth-first crawl of one source. All crawl state
// lives here, so concurrent crawls each need their own Orchestrator.
type Orchestrator struct {
	source    Source
	sink      Sink
	fetcher   PageFetcher
	throttle  *crawler.Throttle
	extractor *extract.Extractor
	robots    RobotsPolicy
	now       func() time.Time

	seed     string
	frontier *frontier
	visited  map[string]int
	entries  []VisitedEntry
	enqueued []QueueItem
	dequeued int
	summary  Summary
	started  bool
}

// NewOrchestrator prepares a crawl of src. The source is validated after
// defaults are applied; inactive sources are refused with ErrInactiveSource.
func NewOrchestrator(src Source, sink Sink, opts ...Option) (*Orchestrator, error) {
	src = src.WithDefaults()
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, fmt.Errorf("%w: nil sink", ErrInvalidSource)
	}

	o := &Orchestrator{
		source:   src,
		sink:     sink,
		now:      time.Now,
		frontier: newFrontier(),
		visited:  make(map[string]int),
		summary:  Summary{SourceID: src.ID},
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.fetcher == nil {
		cfg := crawler.DefaultConfig()
		cfg.Timeout = src.Timeout
		cfg.UserAgent = src.UserAgent
		o.fetcher = crawler.NewFetcher(cfg)
	}
	if o.throttle == nil {
		o.throttle = crawler.NewThrottle(src.RequestDelay, crawler.DefaultMaxPending)
	}
	if o.extractor == nil {
		o.extractor = extract.New(nil)
	}
	if o.robots == nil && src.RespectRobots {
		o.robots = crawler.NewRobotsChecker(src.UserAgent, src.Timeout)
	}

	o.seed = util.NormaliseURL(src.SeedURL, "", src.SeedURL)
	return o, nil
}

// Crawl runs a crawl with a fresh Orchestrator. It returns false when the
// source is refused or the crawl aborts.
func Crawl(ctx context.Context, src Source, sink Sink, opts ...Option) bool {
	o, err := NewOrchestrator(src, sink, opts...)
	if err != nil {
		evt := log.Error()
		if errors.Is(err, ErrInactiveSource) {
			evt = log.Warn()
		}
		evt.Err(err).Str("source_id", src.ID).Msg("Crawl refused")
		return false
	}
	return o.Crawl(ctx)
}

// Source returns the source being crawled, with defaults applied
func (o *Orchestrator) Source() Source {
	return o.source
}

// Result returns the crawl counters
func (o *Orchestrator) Result() Summary {
	return o.summary
}

// Visited returns the visited entries in dequeue order
func (o *Orchestrator) Visited() []VisitedEntry {
	return append([]VisitedEntry(nil), o.entries...)
}

// Enqueued returns every item accepted into the frontier, in order
func (o *Orchestrator) Enqueued() []QueueItem {
	return append([]QueueItem(nil), o.enqueued...)
}

// Pending returns the items left in the frontier
func (o *Orchestrator) Pending() []QueueItem {
	return o.frontier.pending()
}

// Crawl runs the crawl to completion. It returns true when the crawl finished,
// even if some pages failed, and false when it was aborted by a sink error, a
// panic or cancellation of ctx. Records stored before an abort are kept.
// An Orchestrator crawls once.
func (o *Orchestrator) Crawl(ctx context.Context) (ok bool) {
	if o.started {
		log.Warn().Str("source_id", o.source.ID).Msg("Orchestrator already used, create a new one per crawl")
		return false
	}
	o.started = true

	start := o.now()
	ctx, span := observability.StartCrawlSpan(ctx, o.source.ID, o.seed)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			o.abort(ctx, fmt.Errorf("crawl panicked: %v", r))
			ok = false
		}
		o.summary.Queued = o.frontier.Len()
		o.summary.Duration = o.now().Sub(start)
		observability.RecordCrawl(ctx, observability.CrawlMetrics{
			SourceID:  o.source.ID,
			Success:   ok,
			Visited:   o.summary.Visited,
			Extracted: o.summary.Extracted,
			Failed:    o.summary.Failed,
			Duration:  o.summary.Duration,
		})
	}()

	if err := o.run(ctx, start); err != nil {
		o.abort(ctx, err)
		return false
	}
	return true
}

func (o *Orchestrator) run(ctx context.Context, start time.Time) error {
	src := o.source

	if err := o.sink.DeleteRecordsForSource(ctx, src.ID); err != nil {
		return fmt.Errorf("failed to clear records for source %s: %w", src.ID, err)
	}
	if err := o.appendLog(ctx, LogInfo, "Crawl started", map[string]any{
		"seed_url":      o.seed,
		"max_depth":     src.DepthLimit(),
		"max_pages":     src.MaxPages,
		"request_delay": src.RequestDelay.Milliseconds(),
	}); err != nil {
		return err
	}

	if o.robots != nil {
		if delay := o.robots.CrawlDelay(ctx, o.seed); delay > o.throttle.Interval() {
			log.Info().
				Str("source_id", src.ID).
				Dur("crawl_delay", delay).
				Msg("Using robots.txt crawl delay")
			o.throttle = crawler.NewThrottle(delay, crawler.DefaultMaxPending)
		}
	}

	o.enqueue(QueueItem{URL: o.seed, Depth: 0})

	for o.frontier.Len() > 0 && len(o.visited) < src.MaxPages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("crawl cancelled: %w", err)
		}

		item, _ := o.frontier.pop()
		if _, seen := o.visited[item.URL]; seen {
			o.summary.Skipped++
			continue
		}

		o.dequeued++
		if err := o.visit(ctx, item); err != nil {
			return err
		}

		if o.dequeued%progressEvery == 0 {
			if err := o.appendLog(ctx, LogInfo, "Crawl progress", map[string]any{
				"visited":   o.summary.Visited,
				"extracted": o.summary.Extracted,
				"failed":    o.summary.Failed,
				"queued":    o.frontier.Len(),
			}); err != nil {
				return err
			}
		}
	}

	finished := o.now()
	if err := o.sink.UpdateLastCrawled(ctx, src.ID, finished); err != nil {
		return fmt.Errorf("failed to update last crawled for source %s: %w", src.ID, err)
	}

	return o.appendLog(ctx, LogInfo, "Crawl completed", map[string]any{
		"visited":     o.summary.Visited,
		"extracted":   o.summary.Extracted,
		"failed":      o.summary.Failed,
		"skipped":     o.summary.Skipped,
		"queued":      o.frontier.Len(),
		"duration_ms": finished.Sub(start).Milliseconds(),
	})
}

// visit fetches, classifies and extracts one page. Page-level problems are
// recorded and swallowed; the returned error is always fatal.
func (o *Orchestrator) visit(ctx context.Context, item QueueItem) error {
	page, err := crawler.Throttled(ctx, o.throttle, func(ctx context.Context) (*crawler.Page, error) {
		return o.fetcher.Fetch(ctx, item.URL)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("crawl cancelled: %w", ctxErr)
		}
		return o.pageFailed(ctx, item, err)
	}

	if page.FinalURL != "" && !util.SameHost(page.FinalURL, o.seed) {
		return o.pageFailed(ctx, item, fmt.Errorf("redirected off site to %s", page.FinalURL))
	}

	if !page.IsHTML() {
		log.Debug().
			Str("url", item.URL).
			Str("content_type", page.ContentType).
			Msg("Skipping non-HTML page")
		o.record(VisitedEntry{URL: item.URL, Depth: item.Depth, Outcome: OutcomeSuccess})
		return nil
	}

	doc, err := o.extractor.Parse(item.URL, page.Body)
	if err != nil {
		return o.pageFailed(ctx, item, err)
	}

	entry := VisitedEntry{URL: item.URL, Depth: item.Depth, Outcome: OutcomeSuccess}
	if class := o.extractor.Classify(doc); class.IsPackage {
		rec, err := o.extractor.Extract(doc, o.source.ID)
		if err != nil {
			entry.Outcome = OutcomeFailed
			entry.Error = err.Error()
			if logErr := o.appendLog(ctx, LogWarn, "Package page skipped", map[string]any{
				"url":   item.URL,
				"error": err.Error(),
			}); logErr != nil {
				return logErr
			}
		} else {
			if err := o.sink.CreateRecord(ctx, rec); err != nil {
				return fmt.Errorf("failed to store record for %s: %w", item.URL, err)
			}
			entry.Extracted = true
			log.Info().
				Str("source_id", o.source.ID).
				Str("url", item.URL).
				Str("reason", class.Reason).
				Str("title", rec.Title).
				Msg("Stored package record")
		}
	}
	o.record(entry)

	base := item.URL
	if page.FinalURL != "" {
		base = page.FinalURL
	}
	o.discover(ctx, doc, item, base)
	return nil
}

// discover enqueues the page's same-site links one level deeper. Relative
// links resolve against base, the URL the page was finally served from.
func (o *Orchestrator) discover(ctx context.Context, doc *extract.Document, item QueueItem, base string) {
	depth := item.Depth + 1
	if depth > o.source.DepthLimit() {
		return
	}

	added := 0
	for _, href := range doc.Links() {
		if !util.IsCrawlableHref(href) {
			continue
		}
		next := util.NormaliseURL(href, base, o.seed)
		if util.SchemeAndHost(next) == "" || !util.SameHost(next, o.seed) {
			continue
		}
		if _, seen := o.visited[next]; seen || o.frontier.seen(next) {
			continue
		}
		if o.robots != nil && !o.robots.Allowed(ctx, next) {
			log.Debug().Str("url", next).Msg("Link disallowed by robots.txt")
			continue
		}
		if o.enqueue(QueueItem{URL: next, Depth: depth, ParentURL: item.URL}) {
			added++
		}
	}

	if added > 0 {
		log.Debug().
			Str("url", item.URL).
			Int("depth", depth).
			Int("added", added).
			Msg("Discovered links")
	}
}

func (o *Orchestrator) enqueue(item QueueItem) bool {
	if !o.frontier.push(item) {
		return false
	}
	o.enqueued = append(o.enqueued, item)
	return true
}

func (o *Orchestrator) record(entry VisitedEntry) {
	o.visited[entry.URL] = len(o.entries)
	o.entries = append(o.entries, entry)
	o.summary.Visited++
	switch {
	case entry.Outcome == OutcomeFailed:
		o.summary.Failed++
	case entry.Extracted:
		o.summary.Extracted++
	}
}

func (o *Orchestrator) pageFailed(ctx context.Context, item QueueItem, err error) error {
	o.record(VisitedEntry{URL: item.URL, Depth: item.Depth, Outcome: OutcomeFailed, Error: err.Error()})

	detail := map[string]any{"url": item.URL, "depth": item.Depth, "error": err.Error()}
	var fetchErr *crawler.FetchError
	if errors.As(err, &fetchErr) {
		detail["kind"] = string(fetchErr.Kind)
		if fetchErr.StatusCode != 0 {
			detail["status"] = fetchErr.StatusCode
		}
	}
	return o.appendLog(ctx, LogWarn, "Page fetch failed", detail)
}

// appendLog mirrors a crawl log entry to zerolog and hands it to the sink
func (o *Orchestrator) appendLog(ctx context.Context, level LogLevel, message string, detail map[string]any) error {
	evt := log.WithLevel(zerologLevel(level)).Str("source_id", o.source.ID)
	if len(detail) > 0 {
		evt = evt.Fields(detail)
	}
	evt.Msg(message)

	if err := o.sink.AppendLog(ctx, level, message, detail); err != nil {
		return fmt.Errorf("failed to append crawl log: %w", err)
	}
	return nil
}

// abort reports a fatal crawl failure. The sink is still told about it when
// it can be, using a context that outlives a cancelled crawl.
func (o *Orchestrator) abort(ctx context.Context, err error) {
	log.Error().
		Err(err).
		Str("source_id", o.source.ID).
		Int("visited", o.summary.Visited).
		Int("extracted", o.summary.Extracted).
		Msg("Crawl aborted")

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("source_id", o.source.ID)
		scope.SetContext("crawl", map[string]any{
			"seed_url":  o.seed,
			"visited":   o.summary.Visited,
			"extracted": o.summary.Extracted,
		})
		sentry.CaptureException(err)
	})

	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if logErr := o.sink.AppendLog(logCtx, LogError, "Crawl aborted", map[string]any{
		"error":     err.Error(),
		"visited":   o.summary.Visited,
		"extracted": o.summary.Extracted,
	}); logErr != nil {
		log.Error().Err(logErr).Str("source_id", o.source.ID).Msg("Failed to append abort log")
	}
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LogWarn:
		return zerolog.WarnLevel
	case LogError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
