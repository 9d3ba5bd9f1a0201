package marketplace

import (
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/lehigh-university-libraries/productfinder/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) *goquery.Document {
	t.Helper()
	f, err := os.Open("testdata/" + name)
	require.NoError(t, err)
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	return doc
}

func TestExtractListings(t *testing.T) {
	doc := loadFixture(t, "results.html")
	base, _ := url.Parse("https://listado.mercadolibre.com.ar/clics-modernos")

	listings := ExtractListings(doc.Selection, base)
	require.Len(t, listings, models.MaxListings)

	assert.Equal(t, models.ListingResult{
		ID:        "MLA-111-clics-modernos-vinilo",
		Title:     "Charly García Clics Modernos Vinilo",
		Price:     45999,
		Permalink: "https://articulo.mercadolibre.com.ar/MLA-111-clics-modernos-vinilo",
		Thumbnail: "https://http2.mlstatic.com/a.jpg",
		Condition: models.ConditionNew,
	}, listings[0])

	// fallbacks: h2 a title, second price rule, relative link, data-src thumbnail
	assert.Equal(t, "Clics Modernos CD Usado", listings[1].Title)
	assert.Equal(t, 12500, listings[1].Price)
	assert.Equal(t, "https://listado.mercadolibre.com.ar/MLA-222-clics", listings[1].Permalink)
	assert.Equal(t, "MLA-222-clics", listings[1].ID)
	assert.Equal(t, "https://http2.mlstatic.com/b.jpg", listings[1].Thumbnail)
	assert.Equal(t, models.ConditionUsed, listings[1].Condition)

	assert.Equal(t, "Clics Modernos Edición 2023", listings[2].Title)
	assert.Equal(t, 8000, listings[2].Price)
	assert.Equal(t, "articulo-333", listings[2].ID)

	// nothing usable: defaults
	assert.Equal(t, "Title not found", listings[3].Title)
	assert.Equal(t, 0, listings[3].Price)
	assert.Equal(t, "", listings[3].Permalink)
	assert.Equal(t, "scraped-4", listings[3].ID)
	assert.Equal(t, "", listings[3].Thumbnail)

	assert.Equal(t, "Clics Modernos Remasterizado", listings[4].Title)
	assert.Equal(t, "MLA-555", listings[4].ID)
	assert.Equal(t, 1234, listings[4].Price)
}

func TestExtractListingsNoContainer(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><body><p>No hay publicaciones</p></body></html>`))
	require.NoError(t, err)

	assert.False(t, HasResults(doc.Selection))
	listings := ExtractListings(doc.Selection, nil)
	assert.NotNil(t, listings)
	assert.Empty(t, listings)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"45.999", 45999},
		{" 1.234.567 ", 1234567},
		{"8.000,50", 8000},
		{"999", 999},
		{"", 0},
		{"$ 100", 0},
		{"gratis", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParsePrice(tt.input))
		})
	}
}

func TestFirstMatchOrder(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<li><span class="b">second</span><span class="a">first</span></li>`))
	require.NoError(t, err)

	got, ok := firstMatch(doc.Find("li"), []Rule[string]{textRule(".missing"), textRule(".a"), textRule(".b")})
	assert.True(t, ok)
	assert.Equal(t, "first", got)

	_, ok = firstMatch(doc.Find("li"), []Rule[string]{textRule(".missing")})
	assert.False(t, ok)
}
