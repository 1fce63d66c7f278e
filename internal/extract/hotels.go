package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Hotel is one accommodation option offered by a package
type Hotel struct {
	Name     string  `json:"name"`
	ImageURL string  `json:"image_url,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
	Stars    int     `json:"stars"`
	Price    string  `json:"price,omitempty"`
}

const (
	// DefaultHotelStars is assumed when a page does not state a category
	DefaultHotelStars = 4
	DefaultHotelName  = "Partner hotel"

	maxBodyHotels = 5
)

var (
	starsPattern     = regexp.MustCompile(`(?i)([1-5])\s*(?:\*+|★|stars?|зв[её]зд\p{L}*)`)
	starGlyphPattern = regexp.MustCompile(`★+`)
	ratingPattern    = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	hotelNamePattern = regexp.MustCompile(`(?:[Hh]otel|HOTEL|[Оо]тель|[Rr]esort)\s+(\p{Lu}[\p{L}\d'&.-]*(?:\s+\p{Lu}[\p{L}\d'&.-]*){0,4})(?:\s*([1-5])\s*\*)?`)

	hotelBlockSelectors = []string{
		".hotel-card", ".hotel-item", ".hotel__item", "[itemtype*='schema.org/Hotel']",
		".accommodation-item", ".hotel",
	}
	hotelNameSelectors = []string{
		".hotel-name", ".hotel__name", "[itemprop=name]", ".name", ".title", "h3", "h4", "h5", "strong", "a",
	}
)

func hotelsChain(g *Gazetteer) Chain[[]Hotel] {
	return Chain[[]Hotel]{
		Field: "hotels",
		Strategies: []Strategy[[]Hotel]{
			{Name: "blocks", Fn: func(d *Document) ([]Hotel, bool) {
				for _, sel := range hotelBlockSelectors {
					var hotels []Hotel
					d.Doc.Find(sel).Each(func(_ int, block *goquery.Selection) {
						if h, ok := d.hotelFromBlock(block, g); ok {
							hotels = append(hotels, h)
						}
					})
					if hotels = dedupeHotels(hotels); len(hotels) > 0 {
						return hotels, true
					}
				}
				return nil, false
			}},
			{Name: "heading_list", Fn: func(d *Document) ([]Hotel, bool) {
				items, ok := d.anchoredList(g.HotelKeywords)
				if !ok {
					return nil, false
				}
				hotels := make([]Hotel, 0, len(items))
				for _, item := range items {
					if h, ok := hotelFromText(item, g); ok {
						hotels = append(hotels, h)
					}
				}
				hotels = dedupeHotels(hotels)
				return hotels, len(hotels) > 0
			}},
			{Name: "body_regex", Fn: func(d *Document) ([]Hotel, bool) {
				var hotels []Hotel
				for _, m := range hotelNamePattern.FindAllStringSubmatch(d.BodyText(), -1) {
					h := Hotel{Name: strings.TrimRight(m[1], ".-"), Stars: DefaultHotelStars}
					if m[2] != "" {
						h.Stars, _ = strconv.Atoi(m[2])
					}
					hotels = append(hotels, h)
				}
				hotels = dedupeHotels(hotels)
				if len(hotels) > maxBodyHotels {
					hotels = hotels[:maxBodyHotels]
				}
				return hotels, len(hotels) > 0
			}},
			{Name: "title", Fn: func(d *Document) ([]Hotel, bool) {
				if d.Title == "" || d.Title == DefaultTitle {
					return nil, false
				}
				lower := strings.ToLower(d.Title)
				if !starsPattern.MatchString(d.Title) && !containsAny(lower, g.HotelKeywords) {
					return nil, false
				}
				h, ok := hotelFromText(d.Title, g)
				if !ok {
					return nil, false
				}
				return []Hotel{h}, true
			}},
		},
		Valid: func(hotels []Hotel) bool { return len(hotels) > 0 },
		Default: func(d *Document) []Hotel {
			name := DefaultHotelName
			if d.Title != "" && d.Title != DefaultTitle {
				name = d.Title
			}
			return []Hotel{{Name: name, Stars: DefaultHotelStars}}
		},
	}
}

// hotelFromBlock reads a structured hotel card
func (d *Document) hotelFromBlock(block *goquery.Selection, g *Gazetteer) (Hotel, bool) {
	var name string
	for _, sel := range hotelNameSelectors {
		if name = cleanText(block.Find(sel).First().Text()); name != "" {
			break
		}
	}
	if name == "" {
		return Hotel{}, false
	}

	h := Hotel{
		Name:     stripStars(name),
		ImageURL: d.imageSource(block.Find("img").First()),
		Stars:    blockStars(block, name),
	}
	if h.Name == "" {
		return Hotel{}, false
	}

	rating := block.Find("[itemprop=ratingValue]").First()
	if v, ok := rating.Attr("content"); ok {
		h.Rating = parseRating(v)
	} else if rating.Length() > 0 {
		h.Rating = parseRating(rating.Text())
	} else {
		h.Rating = parseRating(block.Find(".rating, .hotel-rating, .score").First().Text())
	}

	block.Find(".price, .hotel-price, .cost, span, strong, b").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		if text != "" && runeLen(text) <= 60 && g.mentionsCurrency(text) {
			h.Price = text
			return false
		}
		return true
	})

	return h, true
}

// blockStars reads the hotel category from attributes, star widgets or text
func blockStars(block *goquery.Selection, name string) int {
	if v, ok := block.Attr("data-stars"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return clampStars(n)
		}
	}
	stars := block.Find("[data-stars]").First()
	if v, ok := stars.Attr("data-stars"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return clampStars(n)
		}
	}
	if n := parseStars(cleanText(block.Find(".stars, .hotel-stars, .category").First().Text())); n > 0 {
		return n
	}
	if n := block.Find(".stars .star, .stars i, .star-icon").Length(); n > 0 {
		return clampStars(n)
	}
	if n := parseStars(name); n > 0 {
		return n
	}
	return DefaultHotelStars
}

// hotelFromText builds a hotel from a free-text line like "Rixos Premium 5* (from $900)"
func hotelFromText(text string, g *Gazetteer) (Hotel, bool) {
	name := stripStars(text)
	if idx := strings.IndexAny(name, "(—–|"); idx > 0 {
		name = strings.TrimSpace(name[:idx])
	}
	name = strings.Trim(name, " ,;:-")
	if runeLen(name) < 2 {
		return Hotel{}, false
	}

	h := Hotel{Name: name, Stars: DefaultHotelStars}
	if n := parseStars(text); n > 0 {
		h.Stars = n
	}
	if g.mentionsCurrency(text) {
		if idx := strings.IndexAny(text, "(—–|"); idx > 0 {
			h.Price = strings.Trim(strings.TrimSpace(text[idx:]), "()—–| ")
		}
	}
	return h, true
}

// parseStars returns the star category mentioned in s, or 0
func parseStars(s string) int {
	if m := starsPattern.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return clampStars(n)
	}
	if glyphs := starGlyphPattern.FindString(s); glyphs != "" {
		return clampStars(runeLen(glyphs))
	}
	return 0
}

func stripStars(s string) string {
	s = starsPattern.ReplaceAllString(s, "")
	s = starGlyphPattern.ReplaceAllString(s, "")
	return collapseSpace(strings.Trim(s, " ,;:-"))
}

func clampStars(n int) int {
	switch {
	case n < 1:
		return 1
	case n > 5:
		return 5
	default:
		return n
	}
}

// parseRating reads the first number in s, accepting a decimal comma
func parseRating(s string) float64 {
	m := ratingPattern.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil || v < 0 || v > 10 {
		return 0
	}
	return v
}

func dedupeHotels(hotels []Hotel) []Hotel {
	seen := make(map[string]struct{}, len(hotels))
	out := hotels[:0]
	for _, h := range hotels {
		key := strings.ToLower(h.Name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h)
	}
	return out
}
