package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// Page is one canned response served by a Site
type Page struct {
	Status      int
	ContentType string
	Body        string
	Delay       time.Duration
	RedirectTo  string
}

// Site is an httptest server serving fixed pages and counting hits per path
type Site struct {
	*httptest.Server

	mu    sync.Mutex
	pages map[string]Page
	hits  map[string]int
}

// NewSite starts a fixture site. Unknown paths return 404. The server is
// closed when the test ends.
func NewSite(t *testing.T, pages map[string]Page) *Site {
	t.Helper()

	s := &Site{pages: pages, hits: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Site) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	page, ok := s.pages[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if page.Delay > 0 {
		select {
		case <-time.After(page.Delay):
		case <-r.Context().Done():
			return
		}
	}
	if page.RedirectTo != "" {
		http.Redirect(w, r, page.RedirectTo, http.StatusFound)
		return
	}

	contentType := page.ContentType
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	status := page.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(page.Body))
}

// URL returns the absolute URL of path on this site
func (s *Site) URL(path string) string {
	return s.Server.URL + path
}

// Hits returns how many requests path received
func (s *Site) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// TotalHits returns the number of requests across all paths
func (s *Site) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}
