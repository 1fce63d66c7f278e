package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Harvey-AU/tour-crawler/internal/extract"
	"github.com/Harvey-AU/tour-crawler/internal/harvest"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Sink persists one crawl run into PostgreSQL. Log entries written through
// it share a run id so a single crawl can be read back in order.
type Sink struct {
	db       *DB
	sourceID string
	runID    uuid.UUID
}

var _ harvest.Sink = (*Sink)(nil)

// NewSink starts a new run for sourceID
func (db *DB) NewSink(sourceID string) *Sink {
	return &Sink{db: db, sourceID: sourceID, runID: uuid.New()}
}

// RunID identifies the crawl_logs rows written by this sink
func (s *Sink) RunID() uuid.UUID {
	return s.runID
}

// DeleteRecordsForSource removes the records of the previous crawl
func (s *Sink) DeleteRecordsForSource(ctx context.Context, sourceID string) error {
	if _, err := s.db.client.ExecContext(ctx,
		`DELETE FROM tour_packages WHERE source_id = $1`, sourceID); err != nil {
		return fmt.Errorf("failed to delete records for source %s: %w", sourceID, err)
	}
	return nil
}

// CreateRecord inserts one extracted package
func (s *Sink) CreateRecord(ctx context.Context, rec *extract.Record) error {
	hotels := rec.Hotels
	if hotels == nil {
		hotels = []extract.Hotel{}
	}
	hotelsJSON, err := json.Marshal(hotels)
	if err != nil {
		return fmt.Errorf("failed to marshal hotels: %w", err)
	}

	_, err = s.db.client.ExecContext(ctx, `
		INSERT INTO tour_packages (
			id, source_id, title, description, price, duration, image_url, original_url,
			services, hotels, required_documents, cancellation_policy, destination, is_published
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		uuid.New(), rec.SourceID, rec.Title, rec.Description, rec.Price, rec.Duration,
		rec.ImageURL, rec.OriginalURL,
		pq.Array(nonNil(rec.Services)), hotelsJSON, pq.Array(nonNil(rec.RequiredDocuments)),
		rec.CancellationPolicy, string(rec.Destination), rec.IsPublished,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record %s: %w", rec.OriginalURL, err)
	}
	return nil
}

// UpdateLastCrawled stamps the source with the crawl completion time
func (s *Sink) UpdateLastCrawled(ctx context.Context, sourceID string, at time.Time) error {
	res, err := s.db.client.ExecContext(ctx,
		`UPDATE tour_sources SET last_crawled_at = $2 WHERE id = $1`, sourceID, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to update last crawled for source %s: %w", sourceID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update last crawled: %w: %s", ErrSourceNotFound, sourceID)
	}
	return nil
}

// AppendLog writes one crawl log entry
func (s *Sink) AppendLog(ctx context.Context, level harvest.LogLevel, message string, detail map[string]any) error {
	if detail == nil {
		detail = map[string]any{}
	}
	_, err := s.db.client.ExecContext(ctx, `
		INSERT INTO crawl_logs (source_id, run_id, level, message, detail)
		VALUES ($1, $2, $3, $4, $5)`,
		s.sourceID, s.runID, string(level), message, Serialise(detail),
	)
	if err != nil {
		return fmt.Errorf("failed to insert crawl log: %w", err)
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
