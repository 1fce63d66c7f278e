package mocks

import (
	"context"
	"time"

	"github.com/Harvey-AU/tour-crawler/internal/extract"
	"github.com/Harvey-AU/tour-crawler/internal/harvest"
	"github.com/stretchr/testify/mock"
)

// MockSink is a mock implementation of harvest.Sink
type MockSink struct {
	mock.Mock
}

// DeleteRecordsForSource mocks the DeleteRecordsForSource method
func (m *MockSink) DeleteRecordsForSource(ctx context.Context, sourceID string) error {
	args := m.Called(ctx, sourceID)
	return args.Error(0)
}

// CreateRecord mocks the CreateRecord method
func (m *MockSink) CreateRecord(ctx context.Context, rec *extract.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// UpdateLastCrawled mocks the UpdateLastCrawled method
func (m *MockSink) UpdateLastCrawled(ctx context.Context, sourceID string, at time.Time) error {
	args := m.Called(ctx, sourceID, at)
	return args.Error(0)
}

// AppendLog mocks the AppendLog method
func (m *MockSink) AppendLog(ctx context.Context, level harvest.LogLevel, message string, detail map[string]any) error {
	args := m.Called(ctx, level, message, detail)
	return args.Error(0)
}

var _ harvest.Sink = (*MockSink)(nil)
