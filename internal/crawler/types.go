package crawler

import (
	"fmt"
	"mime"
	"strings"
	"time"
)

// Page is a successfully fetched document
type Page struct {
	URL         string        `json:"url"`
	FinalURL    string        `json:"final_url"`
	StatusCode  int           `json:"status_code"`
	ContentType string        `json:"content_type"`
	Body        []byte        `json:"-"`
	Duration    time.Duration `json:"duration"`
}

// IsHTML reports whether the response declared an HTML body. A missing
// Content-Type is treated as HTML.
func (p *Page) IsHTML() bool {
	if p.ContentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(p.ContentType)
	if err != nil {
		return strings.Contains(strings.ToLower(p.ContentType), "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// FailureKind classifies why a fetch did not produce a page
type FailureKind string

const (
	FailureNetwork    FailureKind = "network"
	FailureTimeout    FailureKind = "timeout"
	FailureStatus     FailureKind = "status"
	FailureInvalidURL FailureKind = "invalid_url"
	FailureCancelled  FailureKind = "cancelled"
)

// FetchError describes a failed fetch
type FetchError struct {
	URL        string
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FailureStatus {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
