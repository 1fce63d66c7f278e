package extract

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed gazetteer.yaml
var defaultGazetteerYAML []byte

// Gazetteer holds the keyword and place-name tables used by the classifier
// and field extractors. All entries are matched case-insensitively.
type Gazetteer struct {
	Domestic             []string `yaml:"domestic"`
	Foreign              []string `yaml:"foreign"`
	PackagePathMarkers   []string `yaml:"package_path_markers"`
	PackageTitleKeywords []string `yaml:"package_title_keywords"`
	PackageBodyKeywords  []string `yaml:"package_body_keywords"`
	CurrencyKeywords     []string `yaml:"currency_keywords"`
	DurationKeywords     []string `yaml:"duration_keywords"`
	DurationLabels       []string `yaml:"duration_labels"`
	ServiceHeadings      []string `yaml:"service_headings"`
	HotelKeywords        []string `yaml:"hotel_keywords"`
	DocumentHeadings     []string `yaml:"document_headings"`
	CancellationKeywords []string `yaml:"cancellation_keywords"`
}

var (
	defaultGazetteer     *Gazetteer
	defaultGazetteerOnce sync.Once
)

// DefaultGazetteer returns the built-in tables. The returned value is shared
// and must not be modified.
func DefaultGazetteer() *Gazetteer {
	defaultGazetteerOnce.Do(func() {
		g, err := ParseGazetteer(defaultGazetteerYAML)
		if err != nil {
			// The embedded file is part of the build; failing here is a programming error.
			panic(fmt.Sprintf("invalid embedded gazetteer: %v", err))
		}
		defaultGazetteer = g
	})
	return defaultGazetteer
}

// ParseGazetteer decodes a YAML gazetteer and lowercases every entry.
func ParseGazetteer(data []byte) (*Gazetteer, error) {
	var g Gazetteer
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to decode gazetteer: %w", err)
	}
	g.normalise()
	return &g, nil
}

// LoadGazetteer reads a gazetteer file. Lists missing from the file fall back
// to the built-in tables so a site-specific file only needs the lists it changes.
func LoadGazetteer(path string) (*Gazetteer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gazetteer %s: %w", path, err)
	}

	g, err := ParseGazetteer(data)
	if err != nil {
		return nil, err
	}
	g.fillFrom(DefaultGazetteer())

	log.Info().
		Str("path", path).
		Int("domestic", len(g.Domestic)).
		Int("foreign", len(g.Foreign)).
		Msg("Loaded gazetteer")

	return g, nil
}

func (g *Gazetteer) lists() []*[]string {
	return []*[]string{
		&g.Domestic, &g.Foreign, &g.PackagePathMarkers, &g.PackageTitleKeywords,
		&g.PackageBodyKeywords, &g.CurrencyKeywords, &g.DurationKeywords, &g.DurationLabels,
		&g.ServiceHeadings, &g.HotelKeywords, &g.DocumentHeadings, &g.CancellationKeywords,
	}
}

func (g *Gazetteer) normalise() {
	for _, list := range g.lists() {
		out := (*list)[:0]
		for _, entry := range *list {
			entry = strings.ToLower(strings.TrimSpace(entry))
			if entry != "" {
				out = append(out, entry)
			}
		}
		*list = out
	}
}

func (g *Gazetteer) fillFrom(def *Gazetteer) {
	own := g.lists()
	fallback := def.lists()
	for i, list := range own {
		if len(*list) == 0 {
			*list = append([]string(nil), (*fallback[i])...)
		}
	}
}

// Destination tells whether a package goes abroad or stays in the home country
type Destination string

const (
	DestinationDomestic Destination = "domestic"
	DestinationForeign  Destination = "foreign"
)

// ClassifyDestination labels a title foreign when it names a foreign place
// and no domestic one. Everything else is domestic.
func (g *Gazetteer) ClassifyDestination(title string) Destination {
	lower := strings.ToLower(title)
	if containsAny(lower, g.Domestic) {
		return DestinationDomestic
	}
	if containsAny(lower, g.Foreign) {
		return DestinationForeign
	}
	return DestinationDomestic
}

// containsAny reports whether lower contains one of the (lowercase) keywords
func containsAny(lower string, keywords []string) bool {
	return firstMatch(lower, keywords) != ""
}

// mentionsCurrency reports whether text names a currency. Symbols match
// anywhere. Latin keywords match whole words with an optional plural "s", so
// "Europe" and "Ruby" do not count. Other alphabetic keywords such as "руб"
// only have to start a word.
func (g *Gazetteer) mentionsCurrency(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range g.CurrencyKeywords {
		if kw != "" && containsCurrencyKeyword(lower, kw) {
			return true
		}
	}
	return false
}

func containsCurrencyKeyword(lower, kw string) bool {
	first, _ := utf8.DecodeRuneInString(kw)
	if !unicode.IsLetter(first) {
		return strings.Contains(lower, kw)
	}
	wholeWord := isLatinWord(kw)
	for i := 0; i < len(lower); {
		j := strings.Index(lower[i:], kw)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(kw)
		if !letterBefore(lower, start) && (!wholeWord || wordEndsAt(lower, end)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(lower[start:])
		i = start + size
	}
	return false
}

func isLatinWord(kw string) bool {
	for _, r := range kw {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// wordEndsAt allows a single plural "s" before the word boundary.
func wordEndsAt(s string, i int) bool {
	if i < len(s) && s[i] == 's' {
		i++
	}
	return !letterAt(s, i)
}

func letterBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return unicode.IsLetter(r)
}

func letterAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsLetter(r)
}

func firstMatch(lower string, keywords []string) string {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}
