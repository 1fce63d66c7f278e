package mocks

import (
	"context"
	"time"

	"github.com/Harvey-AU/tour-crawler/internal/crawler"
	"github.com/Harvey-AU/tour-crawler/internal/harvest"
	"github.com/stretchr/testify/mock"
)

// MockFetcher is a mock implementation of harvest.PageFetcher
type MockFetcher struct {
	mock.Mock
}

// Fetch mocks the Fetch method
func (m *MockFetcher) Fetch(ctx context.Context, url string) (*crawler.Page, error) {
	args := m.Called(ctx, url)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*crawler.Page), args.Error(1)
}

// MockRobots is a mock implementation of harvest.RobotsPolicy
type MockRobots struct {
	mock.Mock
}

// Allowed mocks the Allowed method
func (m *MockRobots) Allowed(ctx context.Context, pageURL string) bool {
	args := m.Called(ctx, pageURL)
	return args.Bool(0)
}

// CrawlDelay mocks the CrawlDelay method
func (m *MockRobots) CrawlDelay(ctx context.Context, siteURL string) time.Duration {
	args := m.Called(ctx, siteURL)
	return args.Get(0).(time.Duration)
}

var (
	_ harvest.PageFetcher  = (*MockFetcher)(nil)
	_ harvest.RobotsPolicy = (*MockRobots)(nil)
)
