package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/Harvey-AU/tour-crawler/internal/db"
	"github.com/Harvey-AU/tour-crawler/internal/harvest"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command
func NewCrawlCmd(config *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a single source",
		Long: `Crawl one source, replacing the records of its previous crawl.

Examples:
  # Crawl a source stored in the database
  tour-crawler crawl --source alpha-tours

  # Try a site without touching the database
  tour-crawler crawl --url https://tours.example --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawlCmd(cmd, config)
		},
	}

	cmd.Flags().StringP("source", "s", "", "ID of a source stored in the database")
	cmd.Flags().StringP("url", "u", "", "Seed URL of an ad-hoc source")
	cmd.Flags().String("id", "", "Source ID for an ad-hoc source (defaults to the seed host)")
	cmd.Flags().Bool("dry-run", false, "Keep results in memory and print them instead of storing them")
	cmd.Flags().IntP("max-depth", "d", config.MaxDepth, "Maximum link depth for an ad-hoc source (0 crawls the seed only)")
	cmd.Flags().IntP("max-pages", "p", config.MaxPages, "Maximum pages for an ad-hoc source")
	cmd.MarkFlagsMutuallyExclusive("source", "url")
	cmd.MarkFlagsOneRequired("source", "url")

	return cmd
}

// NewCrawlAllCmd creates the crawl-all command
func NewCrawlAllCmd(config *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl-all",
		Short: "Crawl every active source in turn",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := db.InitFromEnvWithRetry(ctx)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer store.Close()

			sources, err := store.ListActiveSources(ctx)
			if err != nil {
				return err
			}

			r, err := newRunner(config, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return r.crawlAll(ctx, sources, func(id string) harvest.Sink { return store.NewSink(id) })
		},
	}
}

func runCrawlCmd(cmd *cobra.Command, config *Config) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	sourceID, _ := flags.GetString("source")
	seedURL, _ := flags.GetString("url")
	adHocID, _ := flags.GetString("id")
	dryRun, _ := flags.GetBool("dry-run")
	maxDepth, _ := flags.GetInt("max-depth")
	maxPages, _ := flags.GetInt("max-pages")

	r, err := newRunner(config, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if dryRun {
		if seedURL == "" {
			return errors.New("--dry-run needs --url")
		}
		src, err := adHocSource(config, seedURL, adHocID, maxDepth, maxPages)
		if err != nil {
			return err
		}
		sink := harvest.NewMemorySink()
		ok := r.crawl(ctx, src, sink)
		if err := printRecords(r.out, sink.Records(src.ID)); err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("crawl of %s failed", src.ID)
		}
		return nil
	}

	store, err := db.InitFromEnvWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	var src harvest.Source
	if sourceID != "" {
		if src, err = store.GetSource(ctx, sourceID); err != nil {
			return err
		}
	} else {
		if src, err = adHocSource(config, seedURL, adHocID, maxDepth, maxPages); err != nil {
			return err
		}
		if err := store.UpsertSource(ctx, src); err != nil {
			return err
		}
	}

	if !r.crawl(ctx, src, store.NewSink(src.ID)) {
		return fmt.Errorf("crawl of %s failed", src.ID)
	}
	return nil
}

// adHocSource builds a source from flags and the CRAWL_* defaults
func adHocSource(config *Config, seedURL, id string, maxDepth, maxPages int) (harvest.Source, error) {
	parsed, err := url.Parse(seedURL)
	if err != nil || parsed.Host == "" {
		return harvest.Source{}, fmt.Errorf("%w: seed url %q must be absolute", harvest.ErrInvalidSource, seedURL)
	}
	if id == "" {
		id = strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	}

	return harvest.Source{
		ID:            id,
		Name:          parsed.Hostname(),
		SeedURL:       seedURL,
		Active:        true,
		MaxDepth:      harvest.DepthFromLimit(maxDepth),
		MaxPages:      maxPages,
		RequestDelay:  config.RequestDelay,
		Timeout:       config.Timeout,
		UserAgent:     config.UserAgent,
		RespectRobots: config.RespectRobots,
	}, nil
}

// runner crawls sources with shared extraction settings
type runner struct {
	opts []harvest.Option
	out  io.Writer
}

func newRunner(config *Config, out io.Writer) (*runner, error) {
	g, err := loadGazetteer(config)
	if err != nil {
		return nil, err
	}
	return &runner{opts: []harvest.Option{harvest.WithGazetteer(g)}, out: out}, nil
}

// crawl runs one source and prints its summary line
func (r *runner) crawl(ctx context.Context, src harvest.Source, sink harvest.Sink) bool {
	o, err := harvest.NewOrchestrator(src, sink, r.opts...)
	if err != nil {
		log.Warn().Err(err).Str("source_id", src.ID).Msg("Crawl refused")
		fmt.Fprintf(r.out, "%s\trefused\t%v\n", src.ID, err)
		return false
	}

	ok := o.Crawl(ctx)
	res := o.Result()
	status := "ok"
	if !ok {
		status = "failed"
	}
	fmt.Fprintf(r.out, "%s\t%s\tvisited=%d extracted=%d failed=%d queued=%d duration=%s\n",
		src.ID, status, res.Visited, res.Extracted, res.Failed, res.Queued, res.Duration.Round(time.Millisecond))
	return ok
}

// crawlAll crawls sources one after another, each with a fresh orchestrator
func (r *runner) crawlAll(ctx context.Context, sources []harvest.Source, sinkFor func(sourceID string) harvest.Sink) error {
	if len(sources) == 0 {
		log.Info().Msg("No active sources to crawl")
		return nil
	}

	failed := 0
	for _, src := range sources {
		if ctx.Err() != nil {
			return fmt.Errorf("crawl-all interrupted: %w", ctx.Err())
		}
		if !r.crawl(ctx, src, sinkFor(src.ID)) {
			failed++
		}
	}

	log.Info().
		Int("sources", len(sources)).
		Int("failed", failed).
		Msg("Finished crawling all sources")

	if failed > 0 {
		return fmt.Errorf("%d of %d crawls failed", failed, len(sources))
	}
	return nil
}

func printRecords(out io.Writer, records any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to print records: %w", err)
	}
	return nil
}
