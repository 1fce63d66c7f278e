package crawler

import (
	"time"
)

// DefaultUserAgent identifies the crawler to the sites it visits
const DefaultUserAgent = "TourCrawler/1.0 (+https://github.com/Harvey-AU/tour-crawler)"

// Config holds the configuration for a Fetcher instance
type Config struct {
	Timeout        time.Duration // Per-request timeout
	UserAgent      string        // User agent string for requests
	AcceptLanguage string        // Accept-Language header sent with requests
	MaxBodySize    int           // Largest response body read, in bytes
}

// DefaultConfig returns a Config instance with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:        30 * time.Second,
		UserAgent:      DefaultUserAgent,
		AcceptLanguage: "en-US,en;q=0.9",
		MaxBodySize:    10 * 1024 * 1024,
	}
}
