package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormaliseDomain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "with_https", input: "https://example.com", expected: "example.com"},
		{name: "with_www", input: "www.example.com", expected: "example.com"},
		{name: "with_all_prefixes", input: "https://www.example.com/", expected: "example.com"},
		{name: "uppercase", input: "Example.COM", expected: "example.com"},
		{name: "with_port", input: "https://example.com:8080", expected: "example.com:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormaliseDomain(tt.input))
		})
	}
}

func TestNormaliseURL(t *testing.T) {
	const seed = "https://travel.example.com"

	tests := []struct {
		name     string
		href     string
		base     string
		expected string
	}{
		{
			name:     "absolute_strips_query_and_fragment",
			href:     "https://travel.example.com/tours/bali?utm=1#gallery",
			base:     "",
			expected: "https://travel.example.com/tours/bali",
		},
		{
			name:     "absolute_strips_trailing_slash",
			href:     "https://travel.example.com/tours/",
			expected: "https://travel.example.com/tours",
		},
		{
			name:     "root_relative_uses_base_host",
			href:     "/tour/dubai",
			base:     "https://travel.example.com/tours/asia/list",
			expected: "https://travel.example.com/tour/dubai",
		},
		{
			name:     "root_relative_falls_back_to_seed",
			href:     "/contacts/",
			base:     "",
			expected: "https://travel.example.com/contacts",
		},
		{
			name:     "root_only",
			href:     "/",
			base:     "https://travel.example.com/tours",
			expected: "https://travel.example.com",
		},
		{
			name:     "relative_resolves_against_base_directory",
			href:     "bali.html",
			base:     "https://travel.example.com/tours/asia/index.html",
			expected: "https://travel.example.com/tours/asia/bali.html",
		},
		{
			name:     "relative_with_dot_segments",
			href:     "../europe/rome",
			base:     "https://travel.example.com/tours/asia/list",
			expected: "https://travel.example.com/tours/europe/rome",
		},
		{
			name:     "relative_against_host_only_base",
			href:     "hotels",
			base:     "https://travel.example.com",
			expected: "https://travel.example.com/hotels",
		},
		{
			name:     "protocol_relative_takes_base_scheme",
			href:     "//cdn.example.net/img/a.jpg",
			base:     "https://travel.example.com/tours",
			expected: "https://cdn.example.net/img/a.jpg",
		},
		{
			name:     "query_only_points_at_base",
			href:     "?page=2",
			base:     "https://travel.example.com/tours/asia",
			expected: "https://travel.example.com/tours/asia",
		},
		{
			name:     "unparseable_returned_unchanged",
			href:     "http://[::1",
			base:     "https://travel.example.com",
			expected: "http://[::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormaliseURL(tt.href, tt.base, seed))
		})
	}
}

func TestNormaliseURLIdempotent(t *testing.T) {
	const seed = "https://travel.example.com"
	inputs := []string{
		"https://travel.example.com/tours/",
		"https://travel.example.com/tours//",
		"/tour/bali?x=1",
		"../a/b/",
		"relative/path.html#frag",
		"//cdn.example.net/x/",
		"https://travel.example.com",
		"https://travel.example.com/a%20b",
		"",
	}
	bases := []string{"", "https://travel.example.com/tours/asia/list", "https://travel.example.com"}

	for _, base := range bases {
		for _, in := range inputs {
			once := NormaliseURL(in, base, seed)
			twice := NormaliseURL(once, base, seed)
			assert.Equal(t, once, twice, "input %q base %q", in, base)
		}
	}
}

func TestIsCrawlableHref(t *testing.T) {
	tests := []struct {
		href     string
		expected bool
	}{
		{"", false},
		{"#", false},
		{"#section", false},
		{"javascript:void(0)", false},
		{"MAILTO:sales@example.com", false},
		{"tel:+100000000", false},
		{"/tours", true},
		{"https://example.com/tour/1", true},
		{"bali.html", true},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsCrawlableHref(tt.href))
		})
	}
}

func TestSameHost(t *testing.T) {
	assert.True(t, SameHost("https://example.com/a", "https://www.example.com/b"))
	assert.True(t, SameHost("https://EXAMPLE.com", "http://example.com/tours"))
	assert.False(t, SameHost("https://example.com", "https://other.com"))
	assert.False(t, SameHost("https://example.com", "https://cdn.example.com"))
	assert.False(t, SameHost("/relative", "/relative"))
}

func TestSchemeAndHost(t *testing.T) {
	assert.Equal(t, "https://example.com:8443", SchemeAndHost("https://example.com:8443/tours/x"))
	assert.Equal(t, "", SchemeAndHost("/tours"))
}
