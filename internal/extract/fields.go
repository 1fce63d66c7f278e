package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Field defaults
const (
	DefaultTitle       = "Untitled package"
	DefaultDescription = "Detailed information about this travel package is available on the operator's website."
	DefaultPrice       = "Price on request"

	maxDescriptionRunes   = 2000
	maxCancellationRunes  = 2000
	descriptionParagraphs = 3
)

// DefaultServices is used when a page lists no included services
var DefaultServices = []string{"Accommodation", "Travel insurance", "Airport transfer", "Guide services"}

// Default document lists by destination
var (
	DefaultForeignDocuments  = []string{"Passport", "Visa (if required)", "Travel insurance"}
	DefaultDomesticDocuments = []string{"National ID card"}
)

var (
	titleSuffixSeparators = []string{" | ", " — ", " – ", " - ", " :: "}

	durationPattern = regexp.MustCompile(`(?i)\b\d{1,3}\s*(?:-\s*\d{1,3}\s*)?(?:days?|nights?|дн(?:ей|я|ь)|ноч(?:ей|и|ь))`)
)

// Title ------------------------------------------------------------------------------------------

func titleChain() Chain[string] {
	return Chain[string]{
		Field: "title",
		Strategies: []Strategy[string]{
			{Name: "structural", Fn: func(d *Document) (string, bool) {
				return d.firstText(
					".tour-title", ".tour__title", ".product-title", ".package-title",
					"h1.title", "h1", "[itemprop=name]",
				)
			}},
			{Name: "meta", Fn: func(d *Document) (string, bool) {
				if t, ok := d.metaContent("meta[property='og:title']"); ok {
					return stripTitleSuffix(t), true
				}
				if t := d.PageTitle(); t != "" {
					return stripTitleSuffix(t), true
				}
				return "", false
			}},
		},
		Valid: func(s string) bool { return runeLen(s) > 3 },
		Default: func(*Document) string {
			return DefaultTitle
		},
	}
}

// stripTitleSuffix removes a trailing " | Site name" style suffix
func stripTitleSuffix(title string) string {
	for _, sep := range titleSuffixSeparators {
		if idx := strings.LastIndex(title, sep); idx > 0 {
			return strings.TrimSpace(title[:idx])
		}
	}
	return title
}

// Description ------------------------------------------------------------------------------------

func descriptionChain() Chain[string] {
	return Chain[string]{
		Field: "description",
		Strategies: []Strategy[string]{
			{Name: "structural", Fn: func(d *Document) (string, bool) {
				return d.firstText(
					".tour-description", ".tour__description", ".product-description",
					".package-description", "[itemprop=description]", ".description", ".tour-text",
				)
			}},
			{Name: "paragraphs", Fn: func(d *Document) (string, bool) {
				var parts []string
				d.Doc.Find("body p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
					if text := cleanText(s.Text()); runeLen(text) > 20 {
						parts = append(parts, text)
					}
					return len(parts) < descriptionParagraphs
				})
				return strings.Join(parts, " "), len(parts) > 0
			}},
			{Name: "meta", Fn: func(d *Document) (string, bool) {
				return d.metaContent("meta[name='description']", "meta[property='og:description']")
			}},
		},
		Valid: func(s string) bool { return runeLen(s) > 10 },
		Default: func(*Document) string {
			return DefaultDescription
		},
	}
}

// Price ------------------------------------------------------------------------------------------

func priceChain(g *Gazetteer) Chain[string] {
	return Chain[string]{
		Field: "price",
		Strategies: []Strategy[string]{
			{Name: "microdata", Fn: func(d *Document) (string, bool) {
				amount, ok := d.Doc.Find("[itemprop=price]").First().Attr("content")
				if !ok || strings.TrimSpace(amount) == "" {
					return "", false
				}
				currency, _ := d.Doc.Find("[itemprop=priceCurrency]").First().Attr("content")
				return cleanText(amount + " " + currency), true
			}},
			{Name: "structural", Fn: func(d *Document) (string, bool) {
				return d.firstText(
					".tour-price", ".tour__price", ".product-price", ".package-price",
					".price", "[itemprop=price]", ".cost", ".amount",
				)
			}},
			{Name: "currency_text", Fn: func(d *Document) (string, bool) {
				return d.shortTextMatching("span, strong, b, p, td, li, div, dd", g.mentionsCurrency, 80)
			}},
		},
		Valid: g.mentionsCurrency,
		Default: func(*Document) string {
			return DefaultPrice
		},
	}
}

// Duration ---------------------------------------------------------------------------------------

func durationChain(g *Gazetteer) Chain[string] {
	return Chain[string]{
		Field: "duration",
		Strategies: []Strategy[string]{
			{Name: "structural", Fn: func(d *Document) (string, bool) {
				return d.firstText(
					".tour-duration", ".tour__duration", ".duration", "[itemprop=duration]",
					".days", ".nights",
				)
			}},
			{Name: "labelled", Fn: func(d *Document) (string, bool) {
				var found string
				d.Doc.Find("li, p, dd, dt, td, span, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
					text := cleanText(s.Text())
					if text == "" || runeLen(text) > 120 {
						return true
					}
					lower := strings.ToLower(text)
					if !containsAny(lower, g.DurationLabels) || !containsAny(lower, g.DurationKeywords) {
						return true
					}
					found = stripLabel(text)
					return false
				})
				return found, found != ""
			}},
			{Name: "body_regex", Fn: func(d *Document) (string, bool) {
				match := durationPattern.FindString(d.BodyText())
				return strings.TrimSpace(match), match != ""
			}},
		},
		Valid: func(s string) bool { return containsAny(strings.ToLower(s), g.DurationKeywords) },
		Default: func(*Document) string {
			return ""
		},
	}
}

// stripLabel drops a leading "Duration:" style label
func stripLabel(text string) string {
	if idx := strings.Index(text, ":"); idx >= 0 && idx < len(text)-1 {
		return strings.TrimSpace(text[idx+1:])
	}
	return text
}

// Image ------------------------------------------------------------------------------------------

func imageChain() Chain[string] {
	return Chain[string]{
		Field: "image_url",
		Strategies: []Strategy[string]{
			{Name: "structural", Fn: func(d *Document) (string, bool) {
				for _, sel := range []string{
					".tour-image img", ".tour__image img", ".product-image img", ".main-image img",
					".gallery img", "img.tour-img", "img[itemprop=image]",
				} {
					if src := d.imageSource(d.Doc.Find(sel).First()); src != "" {
						return src, true
					}
				}
				return "", false
			}},
			{Name: "og_image", Fn: func(d *Document) (string, bool) {
				content, ok := d.Doc.Find("meta[property='og:image']").First().Attr("content")
				if !ok {
					return "", false
				}
				src := d.resolve(content)
				return src, src != ""
			}},
			{Name: "first_image", Fn: func(d *Document) (string, bool) {
				var src string
				d.Doc.Find("body img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
					src = d.imageSource(s)
					return src == ""
				})
				return src, src != ""
			}},
		},
		Valid: func(s string) bool { return s != "" },
		Default: func(*Document) string {
			return ""
		},
	}
}

// imageSource reads src, then lazy-loading attributes, resolved to an absolute URL
func (d *Document) imageSource(img *goquery.Selection) string {
	if img.Length() == 0 {
		return ""
	}
	for _, attr := range []string{"src", "data-src", "data-lazy-src", "data-original"} {
		if v, ok := img.Attr(attr); ok {
			if src := d.resolve(v); src != "" {
				return src
			}
		}
	}
	return ""
}

// Services ---------------------------------------------------------------------------------------

func servicesChain(g *Gazetteer) Chain[[]string] {
	return Chain[[]string]{
		Field: "services",
		Strategies: []Strategy[[]string]{
			{Name: "structural", Fn: func(d *Document) ([]string, bool) {
				return d.structuralList(
					".tour-includes", ".included", ".includes", ".inclusions", ".services",
					".tour-services", "[class*=include]",
				)
			}},
			{Name: "heading_list", Fn: func(d *Document) ([]string, bool) {
				return d.anchoredList(g.ServiceHeadings)
			}},
		},
		Valid: func(items []string) bool { return len(items) > 0 },
		Default: func(*Document) []string {
			return append([]string(nil), DefaultServices...)
		},
	}
}

// structuralList returns the li items under the first container that has any
func (d *Document) structuralList(selectors ...string) ([]string, bool) {
	for _, sel := range selectors {
		var items []string
		d.Doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			items = listItems(s)
			return len(items) == 0
		})
		if len(items) > 0 {
			return items, true
		}
	}
	return nil, false
}

// Required documents -----------------------------------------------------------------------------

func documentsChain(g *Gazetteer) Chain[[]string] {
	return Chain[[]string]{
		Field: "required_documents",
		Strategies: []Strategy[[]string]{
			{Name: "structural", Fn: func(d *Document) ([]string, bool) {
				return d.structuralList(
					".required-documents", ".documents", ".tour-documents", ".docs", "[class*=document]",
				)
			}},
			{Name: "heading_list", Fn: func(d *Document) ([]string, bool) {
				return d.anchoredList(g.DocumentHeadings)
			}},
		},
		Valid: func(items []string) bool { return len(items) > 0 },
		Default: func(d *Document) []string {
			if g.ClassifyDestination(d.Title) == DestinationForeign {
				return append([]string(nil), DefaultForeignDocuments...)
			}
			return append([]string(nil), DefaultDomesticDocuments...)
		},
	}
}

// Cancellation policy ----------------------------------------------------------------------------

func cancellationChain(g *Gazetteer) Chain[string] {
	valid := func(s string) bool {
		return runeLen(s) > 20 && containsAny(strings.ToLower(s), g.CancellationKeywords)
	}
	return Chain[string]{
		Field: "cancellation_policy",
		Strategies: []Strategy[string]{
			{Name: "structural", Fn: func(d *Document) (string, bool) {
				text, ok := d.firstText(
					".cancellation-policy", ".cancellation", ".cancel-policy", "#cancellation",
					"[class*=cancel]",
				)
				return truncateRunes(text, maxCancellationRunes), ok
			}},
			{Name: "keyword_paragraph", Fn: func(d *Document) (string, bool) {
				var found string
				d.Doc.Find("p, li, dd").EachWithBreak(func(_ int, s *goquery.Selection) bool {
					text := cleanText(s.Text())
					if valid(text) {
						found = truncateRunes(text, maxCancellationRunes)
						return false
					}
					return true
				})
				return found, found != ""
			}},
		},
		Valid: valid,
		Default: func(*Document) string {
			return ""
		},
	}
}

// shortTextMatching returns the first element text, in document order, that
// is at most maxRunes long and contains a keyword.
func (d *Document) shortTextMatching(selector string, match func(string) bool, maxRunes int) (string, bool) {
	var found string
	d.Doc.Find("body").Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		if text == "" || runeLen(text) > maxRunes {
			return true
		}
		if !match(text) {
			return true
		}
		found = text
		return false
	})
	return found, found != ""
}
