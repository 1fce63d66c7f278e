package extract

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ErrMissingTitle is returned when no strategy produced a usable package title
var ErrMissingTitle = errors.New("no package title found")

// Record is a tour package as extracted from one page
type Record struct {
	SourceID           string      `json:"source_id"`
	Title              string      `json:"title"`
	Description        string      `json:"description"`
	Price              string      `json:"price"`
	Duration           string      `json:"duration"`
	ImageURL           string      `json:"image_url"`
	OriginalURL        string      `json:"original_url"`
	Services           []string    `json:"services"`
	Hotels             []Hotel     `json:"hotels"`
	RequiredDocuments  []string    `json:"required_documents"`
	CancellationPolicy *string     `json:"cancellation_policy"`
	Destination        Destination `json:"destination"`
	IsPublished        bool        `json:"is_published"`
}

// Extractor turns package pages into records
type Extractor struct {
	gazetteer  *Gazetteer
	classifier *Classifier

	title        Chain[string]
	description  Chain[string]
	price        Chain[string]
	duration     Chain[string]
	image        Chain[string]
	services     Chain[[]string]
	hotels       Chain[[]Hotel]
	documents    Chain[[]string]
	cancellation Chain[string]
}

// New creates an extractor backed by g (the built-in tables when nil).
func New(g *Gazetteer) *Extractor {
	if g == nil {
		g = DefaultGazetteer()
	}
	return &Extractor{
		gazetteer:    g,
		classifier:   NewClassifier(g),
		title:        titleChain(),
		description:  descriptionChain(),
		price:        priceChain(g),
		duration:     durationChain(g),
		image:        imageChain(),
		services:     servicesChain(g),
		hotels:       hotelsChain(g),
		documents:    documentsChain(g),
		cancellation: cancellationChain(g),
	}
}

// Gazetteer returns the lookup tables the extractor was built with
func (e *Extractor) Gazetteer() *Gazetteer {
	return e.gazetteer
}

// Parse wraps an HTML body in a Document using the extractor's gazetteer
func (e *Extractor) Parse(pageURL string, body []byte) (*Document, error) {
	return NewDocument(pageURL, body, e.gazetteer)
}

// Classify reports whether d looks like a package page
func (e *Extractor) Classify(d *Document) Classification {
	return e.classifier.Classify(d)
}

// Extract reads every record field from d. Only a missing title fails the
// page; every other field falls back to its default.
func (e *Extractor) Extract(d *Document, sourceID string) (*Record, error) {
	title := e.title.Run(d)
	if title.Defaulted {
		return nil, fmt.Errorf("failed to extract %s: %w", d.URL, ErrMissingTitle)
	}
	d.Title = title.Value

	rec := &Record{
		SourceID:          sourceID,
		Title:             title.Value,
		Description:       truncateRunes(e.description.Value(d), maxDescriptionRunes),
		Price:             e.price.Value(d),
		Duration:          e.duration.Value(d),
		ImageURL:          e.image.Value(d),
		OriginalURL:       d.URL,
		Services:          e.services.Value(d),
		Hotels:            e.hotels.Value(d),
		RequiredDocuments: e.documents.Value(d),
		Destination:       e.gazetteer.ClassifyDestination(title.Value),
		IsPublished:       true,
	}
	if policy := e.cancellation.Value(d); policy != "" {
		rec.CancellationPolicy = &policy
	}

	log.Debug().
		Str("url", d.URL).
		Str("title", rec.Title).
		Str("destination", string(rec.Destination)).
		Int("hotels", len(rec.Hotels)).
		Msg("Extracted package record")

	return rec, nil
}
