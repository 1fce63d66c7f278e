package harvest

import (
	"context"
	"time"

	"github.com/Harvey-AU/tour-crawler/internal/extract"
)

// Sink receives everything a crawl persists. Any error it returns aborts the crawl.
type Sink interface {
	DeleteRecordsForSource(ctx context.Context, sourceID string) error
	CreateRecord(ctx context.Context, rec *extract.Record) error
	UpdateLastCrawled(ctx context.Context, sourceID string, at time.Time) error
	AppendLog(ctx context.Context, level LogLevel, message string, detail map[string]any) error
}
