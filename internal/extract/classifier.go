package extract

import (
	"strings"
)

// Classification explains why a page was or was not taken for a package page
type Classification struct {
	IsPackage bool
	Reason    string
	Match     string
}

// Classifier decides whether a page describes a sellable travel package.
// It is deliberately permissive: any one signal is enough.
type Classifier struct {
	gazetteer *Gazetteer
}

// NewClassifier creates a classifier backed by g (the built-in tables when nil).
func NewClassifier(g *Gazetteer) *Classifier {
	if g == nil {
		g = DefaultGazetteer()
	}
	return &Classifier{gazetteer: g}
}

// Classify checks the URL path markers, then the <title>, then the body text.
func (c *Classifier) Classify(d *Document) Classification {
	lowerURL := strings.ToLower(d.URL)
	if m := firstMatch(lowerURL, c.gazetteer.PackagePathMarkers); m != "" {
		return Classification{IsPackage: true, Reason: "url_marker", Match: m}
	}

	title := strings.ToLower(d.PageTitle())
	if m := firstMatch(title, c.gazetteer.PackageTitleKeywords); m != "" {
		return Classification{IsPackage: true, Reason: "title_keyword", Match: m}
	}

	if m := firstMatch(strings.ToLower(d.BodyText()), c.gazetteer.PackageBodyKeywords); m != "" {
		return Classification{IsPackage: true, Reason: "body_keyword", Match: m}
	}

	return Classification{IsPackage: false, Reason: "no_signal"}
}
