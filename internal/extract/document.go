package extract

import (
	"bytes"
	"fmt"
	"html"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// textPolicy strips any markup that survives in attribute values or text nodes
var textPolicy = bluemonday.StrictPolicy()

// headingSelector lists elements that commonly label a block of content
const headingSelector = "h1, h2, h3, h4, h5, h6, dt, strong, b, p, span, div.title, div.heading"

// Document is a parsed page handed to the classifier and the field strategies
type Document struct {
	URL       string
	Doc       *goquery.Document
	Gazetteer *Gazetteer

	// Title is filled in once the title chain has run so later fields can derive from it.
	Title string

	base     *url.URL
	bodyText *string
}

// NewDocument parses an HTML body fetched from pageURL.
func NewDocument(pageURL string, body []byte, g *Gazetteer) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return NewDocumentFromGoquery(pageURL, doc, g), nil
}

// NewDocumentFromGoquery wraps an already parsed document.
func NewDocumentFromGoquery(pageURL string, doc *goquery.Document, g *Gazetteer) *Document {
	if g == nil {
		g = DefaultGazetteer()
	}
	base, _ := url.Parse(pageURL)
	return &Document{
		URL:       pageURL,
		Doc:       doc,
		Gazetteer: g,
		base:      base,
	}
}

// Links returns the raw href of every anchor in the page, in document order.
func (d *Document) Links() []string {
	var links []string
	d.Doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			links = append(links, strings.TrimSpace(href))
		}
	})
	return links
}

// PageTitle returns the cleaned <title> text.
func (d *Document) PageTitle() string {
	return cleanText(d.Doc.Find("title").First().Text())
}

// BodyText returns the visible body text, whitespace collapsed, without scripts or styles.
func (d *Document) BodyText() string {
	if d.bodyText != nil {
		return *d.bodyText
	}

	body := d.Doc.Find("body").First()
	if body.Length() == 0 {
		body = d.Doc.Selection
	}
	clone := body.Clone()
	clone.Find("script, style, noscript, template").Remove()

	text := collapseSpace(clone.Text())
	d.bodyText = &text
	return text
}

// resolve turns an href or src into an absolute http(s) URL, keeping the query
// string so CDN image variants survive.
func (d *Document) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if d.base != nil {
		parsed = d.base.ResolveReference(parsed)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return parsed.String()
}

// firstText returns the first non-empty cleaned text among the selectors
func (d *Document) firstText(selectors ...string) (string, bool) {
	for _, sel := range selectors {
		var found string
		d.Doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = cleanText(s.Text())
			return found == ""
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

// metaContent returns the content attribute of the first matching meta tag
func (d *Document) metaContent(selectors ...string) (string, bool) {
	for _, sel := range selectors {
		if content, ok := d.Doc.Find(sel).First().Attr("content"); ok {
			if text := cleanText(content); text != "" {
				return text, true
			}
		}
	}
	return "", false
}

// anchoredList finds a heading mentioning one of the keywords and returns the
// items of the list that follows it.
func (d *Document) anchoredList(keywords []string) ([]string, bool) {
	var items []string
	d.Doc.Find(headingSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label := strings.ToLower(ownText(s))
		if label == "" || utf8.RuneCountInString(label) > 80 || !containsAny(label, keywords) {
			return true
		}
		for _, list := range []*goquery.Selection{
			s.NextAllFiltered("ul, ol").First(),
			s.Parent().NextAllFiltered("ul, ol").First(),
			s.Parent().Find("ul, ol").First(),
		} {
			if list.Length() == 0 {
				continue
			}
			if found := listItems(list); len(found) > 0 {
				items = found
				return false
			}
		}
		return true
	})
	return items, len(items) > 0
}

// listItems returns the cleaned, de-duplicated li texts of a list selection
func listItems(list *goquery.Selection) []string {
	var items []string
	list.Find("li").Each(func(_ int, li *goquery.Selection) {
		text := cleanText(li.Text())
		if text != "" && utf8.RuneCountInString(text) <= 300 {
			items = append(items, text)
		}
	})
	return dedupe(items)
}

// ownText returns the text of s without the text of nested block elements,
// falling back to the full text for inline-only elements.
func ownText(s *goquery.Selection) string {
	clone := s.Clone()
	clone.Children().Filter("ul, ol, div, table, section").Remove()
	return cleanText(clone.Text())
}

// cleanText strips markup, decodes entities and collapses whitespace
func cleanText(s string) string {
	if s == "" {
		return ""
	}
	s = textPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	return collapseSpace(s)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// dedupe removes case-insensitive duplicates while keeping the first spelling and order
func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// truncateRunes cuts s to at most n runes on a word boundary
func truncateRunes(s string, n int) string {
	if runeLen(s) <= n {
		return s
	}
	runes := []rune(s)[:n]
	cut := string(runes)
	if idx := strings.LastIndex(cut, " "); idx > n/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "…"
}
