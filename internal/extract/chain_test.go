package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChainRun(t *testing.T) {
	d := parseDoc(t, "https://example.com/", `<html><body></body></html>`)

	fixed := func(name, value string, ok bool) Strategy[string] {
		return Strategy[string]{Name: name, Fn: func(*Document) (string, bool) { return value, ok }}
	}

	tests := []struct {
		name          string
		strategies    []Strategy[string]
		wantValue     string
		wantStrategy  string
		wantDefaulted bool
	}{
		{
			name:         "first strategy wins",
			strategies:   []Strategy[string]{fixed("a", "alpha", true), fixed("b", "beta", true)},
			wantValue:    "alpha",
			wantStrategy: "a",
		},
		{
			name:         "skips strategy that found nothing",
			strategies:   []Strategy[string]{fixed("a", "", false), fixed("b", "beta", true)},
			wantValue:    "beta",
			wantStrategy: "b",
		},
		{
			name:         "skips invalid value",
			strategies:   []Strategy[string]{fixed("a", "x", true), fixed("b", "beta", true)},
			wantValue:    "beta",
			wantStrategy: "b",
		},
		{
			name:          "falls back to default",
			strategies:    []Strategy[string]{fixed("a", "x", true), fixed("b", "", false)},
			wantValue:     "fallback",
			wantStrategy:  "default",
			wantDefaulted: true,
		},
		{
			name:          "no strategies",
			wantValue:     "fallback",
			wantStrategy:  "default",
			wantDefaulted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Chain[string]{
				Field:      "test",
				Strategies: tt.strategies,
				Valid:      func(s string) bool { return len(s) > 1 },
				Default:    func(*Document) string { return "fallback" },
			}
			out := c.Run(d)
			assert.Equal(t, tt.wantValue, out.Value)
			assert.Equal(t, tt.wantStrategy, out.Strategy)
			assert.Equal(t, tt.wantDefaulted, out.Defaulted)
		})
	}
}

func TestChainWithoutValidatorOrDefault(t *testing.T) {
	d := parseDoc(t, "https://example.com/", `<html><body></body></html>`)

	c := Chain[[]int]{
		Field: "numbers",
		Strategies: []Strategy[[]int]{
			{Name: "none", Fn: func(*Document) ([]int, bool) { return nil, false }},
		},
	}
	out := c.Run(d)
	assert.True(t, out.Defaulted)
	assert.Nil(t, out.Value)
}
