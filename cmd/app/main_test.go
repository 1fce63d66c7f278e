package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Harvey-AU/tour-crawler/internal/crawler"
	"github.com/Harvey-AU/tour-crawler/internal/harvest"
	"github.com/Harvey-AU/tour-crawler/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tourPage = `<html><head><title>Antalya Beach Holiday | Sun Travel</title></head>
<body>
	<h1 class="tour-title">Antalya Beach Holiday</h1>
	<span class="tour-price">from $1,200</span>
</body></html>`

func testConfig() *Config {
	return &Config{
		Env:          "test",
		MaxDepth:     0,
		MaxPages:     10,
		RequestDelay: time.Millisecond,
		Timeout:      2 * time.Second,
	}
}

func TestHealthEndpoint(t *testing.T) {
	mux := newMetricsMux(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	}))

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", rr.Body.String())
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TC_STRING", "value")
	t.Setenv("TC_INT", "42")
	t.Setenv("TC_BAD_INT", "forty")
	t.Setenv("TC_DELAY_MS", "250")

	assert.Equal(t, "value", getEnvWithDefault("TC_STRING", "default"))
	assert.Equal(t, "default", getEnvWithDefault("TC_MISSING", "default"))
	assert.Equal(t, 42, getEnvInt("TC_INT", 1))
	assert.Equal(t, 1, getEnvInt("TC_BAD_INT", 1))
	assert.Equal(t, 7, getEnvInt("TC_MISSING", 7))
	assert.Equal(t, 250*time.Millisecond, getEnvDuration("TC_DELAY_MS", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("TC_MISSING", time.Second))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("CRAWL_MAX_DEPTH", "1")
	t.Setenv("CRAWL_REQUEST_DELAY_MS", "0")
	t.Setenv("CRAWL_RESPECT_ROBOTS", "true")

	config := loadConfig()
	assert.Equal(t, 1, config.MaxDepth)
	assert.Equal(t, 50, config.MaxPages)
	assert.Zero(t, config.RequestDelay)
	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.True(t, config.RespectRobots)
}

func TestParseOTLPHeaders(t *testing.T) {
	headers := parseOTLPHeaders(" api-key = abc , broken, =novalue, x=1=2 ")
	assert.Equal(t, map[string]string{"api-key": "abc", "x": "1=2"}, headers)
	assert.Empty(t, parseOTLPHeaders(""))
}

func TestAdHocSource(t *testing.T) {
	config := testConfig()
	config.UserAgent = "bot/2.0"

	src, err := adHocSource(config, "https://www.Sun-Travel.example/tours", "", 2, 20)
	require.NoError(t, err)
	assert.Equal(t, "sun-travel.example", src.ID)
	assert.True(t, src.Active)
	assert.Equal(t, 2, src.MaxDepth)
	assert.Equal(t, 20, src.MaxPages)
	assert.Equal(t, "bot/2.0", src.UserAgent)

	src, err = adHocSource(config, "https://tours.example", "custom", 0, 5)
	require.NoError(t, err)
	assert.Equal(t, "custom", src.ID)
	assert.Equal(t, harvest.SeedOnly, src.MaxDepth)

	_, err = adHocSource(config, "/relative", "", 0, 5)
	assert.ErrorIs(t, err, harvest.ErrInvalidSource)
}

func TestCrawlAll(t *testing.T) {
	site := testutil.NewSite(t, map[string]testutil.Page{
		"/tour/antalya": {Body: tourPage},
	})

	var out bytes.Buffer
	r := &runner{
		opts: []harvest.Option{harvest.WithThrottle(crawler.NewThrottle(0, 0))},
		out:  &out,
	}
	sink := harvest.NewMemorySink()

	sources := []harvest.Source{
		{ID: "good", SeedURL: site.URL("/tour/antalya"), Active: true, Timeout: time.Second},
		{ID: "off", SeedURL: site.URL("/tour/antalya"), Active: false},
	}

	err := r.crawlAll(t.Context(), sources, func(string) harvest.Sink { return sink })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 crawls failed")

	assert.Len(t, sink.Records("good"), 1)
	assert.Empty(t, sink.Records("off"))
	assert.Contains(t, out.String(), "good\tok\tvisited=1 extracted=1")
	assert.Contains(t, out.String(), "off\trefused")
}

func TestCrawlAll_NoSources(t *testing.T) {
	r := &runner{out: &bytes.Buffer{}}
	assert.NoError(t, r.crawlAll(t.Context(), nil, func(string) harvest.Sink { return harvest.NewMemorySink() }))
}

func TestCrawlCommand_DryRun(t *testing.T) {
	site := testutil.NewSite(t, map[string]testutil.Page{
		"/tour/antalya": {Body: tourPage},
	})

	var out bytes.Buffer
	cmd := NewRootCmd(testConfig())
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"crawl", "--url", site.URL("/tour/antalya"), "--id", "sun", "--dry-run"})

	require.NoError(t, cmd.ExecuteContext(t.Context()))
	assert.Contains(t, out.String(), "sun\tok\tvisited=1 extracted=1")
	assert.Contains(t, out.String(), `"title": "Antalya Beach Holiday"`)
	assert.Contains(t, out.String(), `"destination": "foreign"`)
	assert.Equal(t, 1, site.Hits("/tour/antalya"))
}

func TestCrawlCommand_FlagValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no source", args: []string{"crawl"}},
		{name: "both source and url", args: []string{"crawl", "--source", "a", "--url", "https://x.example"}},
		{name: "dry run needs url", args: []string{"crawl", "--source", "a", "--dry-run"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRootCmd(testConfig())
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(tt.args)
			assert.Error(t, cmd.ExecuteContext(t.Context()))
		})
	}
}

func TestPrintSources(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printSources(&out, []harvest.Source{
		{ID: "alpha", Name: "Alpha Tours", SeedURL: "https://alpha.example", MaxDepth: 2, MaxPages: 20},
	}))

	assert.Contains(t, out.String(), "ID")
	assert.Contains(t, out.String(), "alpha")
	assert.Contains(t, out.String(), "https://alpha.example")
}
