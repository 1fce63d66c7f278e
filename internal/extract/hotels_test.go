package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStars(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"Rixos 5*", 5},
		{"Club Sera 4 *", 4},
		{"3 stars", 3},
		{"2 star guesthouse", 2},
		{"★★★", 3},
		{"Отель 5 звезд", 5},
		{"no category", 0},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseStars(tt.in))
		})
	}
}

func TestParseRating(t *testing.T) {
	assert.InDelta(t, 9.2, parseRating("9,2"), 0.001)
	assert.InDelta(t, 8.5, parseRating("Rating 8.5/10"), 0.001)
	assert.Zero(t, parseRating(""))
	assert.Zero(t, parseRating("42"))
}

func TestClampStars(t *testing.T) {
	assert.Equal(t, 1, clampStars(0))
	assert.Equal(t, 3, clampStars(3))
	assert.Equal(t, 5, clampStars(9))
}

func TestHotelFromText(t *testing.T) {
	h, ok := hotelFromText("Rixos Premium 5* (from $900)", DefaultGazetteer())
	require.True(t, ok)
	assert.Equal(t, Hotel{Name: "Rixos Premium", Stars: 5, Price: "from $900"}, h)

	h, ok = hotelFromText("Seaside Inn", DefaultGazetteer())
	require.True(t, ok)
	assert.Equal(t, Hotel{Name: "Seaside Inn", Stars: DefaultHotelStars}, h)

	_, ok = hotelFromText("5*", DefaultGazetteer())
	assert.False(t, ok)
}

func TestHotelsChainStrategies(t *testing.T) {
	tests := []struct {
		name         string
		html         string
		title        string
		wantStrategy string
		want         []Hotel
	}{
		{
			name: "schema.org block with rating microdata",
			html: `<html><body>
				<div itemscope itemtype="https://schema.org/Hotel">
					<span itemprop="name">Grand Beach</span>
					<meta itemprop="ratingValue" content="8.7">
					<span class="stars">★★★★★</span>
				</div>
			</body></html>`,
			wantStrategy: "blocks",
			want:         []Hotel{{Name: "Grand Beach", Rating: 8.7, Stars: 5}},
		},
		{
			name: "list under accommodation heading",
			html: `<html><body>
				<h3>Accommodation options</h3>
				<ul><li>Sea Breeze 3*</li><li>Palm Garden 4* — from €700</li></ul>
			</body></html>`,
			wantStrategy: "heading_list",
			want: []Hotel{
				{Name: "Sea Breeze", Stars: 3},
				{Name: "Palm Garden", Stars: 4, Price: "from €700"},
			},
		},
		{
			name:         "hotel name in running text",
			html:         `<html><body><p>We stay at Hotel Grand Palace 5* near the beach.</p></body></html>`,
			wantStrategy: "body_regex",
			want:         []Hotel{{Name: "Grand Palace", Stars: 5}},
		},
		{
			name:         "hotel named in title",
			html:         `<html><body><p>Nothing else</p></body></html>`,
			title:        "Aurora Resort 4*",
			wantStrategy: "title",
			want:         []Hotel{{Name: "Aurora Resort", Stars: 4}},
		},
		{
			name:         "default from title",
			html:         `<html><body><p>Nothing else</p></body></html>`,
			title:        "Golden Ring Weekend",
			wantStrategy: "default",
			want:         []Hotel{{Name: "Golden Ring Weekend", Stars: DefaultHotelStars}},
		},
		{
			name:         "default without title",
			html:         `<html><body></body></html>`,
			wantStrategy: "default",
			want:         []Hotel{{Name: DefaultHotelName, Stars: DefaultHotelStars}},
		},
	}

	chain := hotelsChain(DefaultGazetteer())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := parseDoc(t, "https://example.com/tours/x", tt.html)
			d.Title = tt.title
			out := chain.Run(d)
			assert.Equal(t, tt.wantStrategy, out.Strategy)
			assert.Equal(t, tt.want, out.Value)
		})
	}
}
