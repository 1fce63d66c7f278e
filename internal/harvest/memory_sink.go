package harvest

import (
	"context"
	"sync"
	"time"

	"github.com/Harvey-AU/tour-crawler/internal/extract"
)

// LogEntry is a crawl log line kept by MemorySink
type LogEntry struct {
	Level   LogLevel
	Message string
	Detail  map[string]any
}

// MemorySink keeps crawl output in memory. It is safe for concurrent use.
type MemorySink struct {
	mu          sync.Mutex
	records     map[string][]*extract.Record
	logs        []LogEntry
	lastCrawled map[string]time.Time
	deletes     map[string]int
}

// NewMemorySink creates an empty sink
func NewMemorySink() *MemorySink {
	return &MemorySink{
		records:     make(map[string][]*extract.Record),
		lastCrawled: make(map[string]time.Time),
		deletes:     make(map[string]int),
	}
}

func (m *MemorySink) DeleteRecordsForSource(_ context.Context, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, sourceID)
	m.deletes[sourceID]++
	return nil
}

func (m *MemorySink) CreateRecord(_ context.Context, rec *extract.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.SourceID] = append(m.records[rec.SourceID], rec)
	return nil
}

func (m *MemorySink) UpdateLastCrawled(_ context.Context, sourceID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCrawled[sourceID] = at
	return nil
}

func (m *MemorySink) AppendLog(_ context.Context, level LogLevel, message string, detail map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, LogEntry{Level: level, Message: message, Detail: detail})
	return nil
}

// Records returns the records stored for a source
func (m *MemorySink) Records(sourceID string) []*extract.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*extract.Record(nil), m.records[sourceID]...)
}

// Logs returns every appended log entry in order
func (m *MemorySink) Logs() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LogEntry(nil), m.logs...)
}

// LastCrawled returns the last-crawled time of a source
func (m *MemorySink) LastCrawled(sourceID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.lastCrawled[sourceID]
	return at, ok
}

// Deletes returns how many times records were cleared for a source
func (m *MemorySink) Deletes(sourceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes[sourceID]
}
