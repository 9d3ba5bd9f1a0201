package marketplace

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lehigh-university-libraries/productfinder/internal/models"
)

// Rule extracts one field from a result element. ok is false when the rule found nothing.
type Rule[T any] func(item *goquery.Selection) (value T, ok bool)

const (
	resultsSelector = ".ui-search-results"
	itemSelector    = ".ui-search-results li"

	titleNotFound = "Title not found"
	usedToken     = "usado"
)

var titleRules = []Rule[string]{
	textRule(".ui-search-item__title"),
	textRule("h2 a"),
	textRule(`[data-testid="item-title"]`),
	textRule(`a[href*="MLA"]`),
}

var priceRules = []Rule[int]{
	priceRule(".andes-money-amount__fraction"),
	priceRule(".price-tag-fraction"),
	priceRule(`[data-testid="price"]`),
}

var linkRules = []Rule[string]{
	attrRule(".ui-search-link", "href"),
	attrRule(`a[href*="articulo"]`, "href"),
	attrRule(`a[href*="MLA"]`, "href"),
	attrRule("h2 a", "href"),
}

var thumbnailRules = []Rule[string]{
	attrRule("img", "src"),
	attrRule("img", "data-src"),
}

// firstMatch tries rules in order and returns the first value found
func firstMatch[T any](item *goquery.Selection, rules []Rule[T]) (T, bool) {
	for _, rule := range rules {
		if v, ok := rule(item); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func textRule(selector string) Rule[string] {
	return func(item *goquery.Selection) (string, bool) {
		text := strings.TrimSpace(item.Find(selector).First().Text())
		return text, text != ""
	}
}

func attrRule(selector, attr string) Rule[string] {
	return func(item *goquery.Selection) (string, bool) {
		v, _ := item.Find(selector).First().Attr(attr)
		v = strings.TrimSpace(v)
		return v, v != ""
	}
}

func priceRule(selector string) Rule[int] {
	return func(item *goquery.Selection) (int, bool) {
		sel := item.Find(selector).First()
		if sel.Length() == 0 {
			return 0, false
		}
		price := ParsePrice(sel.Text())
		return price, price > 0
	}
}

// ParsePrice strips "." thousands separators and parses the leading digits.
// Anything after the digits, such as a "," decimal part, is ignored.
func ParsePrice(text string) int {
	text = strings.ReplaceAll(strings.TrimSpace(text), ".", "")
	end := 0
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	price, err := strconv.Atoi(text[:end])
	if err != nil {
		return 0
	}
	return price
}

func conditionOf(item *goquery.Selection) models.Condition {
	subtitle := strings.ToLower(item.Find(".ui-search-item__subtitle").First().Text())
	if strings.Contains(subtitle, usedToken) {
		return models.ConditionUsed
	}
	return models.ConditionNew
}

// HasResults reports whether doc contains the search results container
func HasResults(doc *goquery.Selection) bool {
	return doc.Find(resultsSelector).Length() > 0
}

// ExtractListings reads up to MaxListings results from a search results page, in page order.
// Relative links are resolved against base.
func ExtractListings(doc *goquery.Selection, base *url.URL) []models.ListingResult {
	listings := []models.ListingResult{}
	doc.Find(itemSelector).EachWithBreak(func(i int, item *goquery.Selection) bool {
		if len(listings) >= models.MaxListings {
			return false
		}

		title, ok := firstMatch(item, titleRules)
		if !ok {
			title = titleNotFound
		}
		price, _ := firstMatch(item, priceRules)
		link, _ := firstMatch(item, linkRules)
		thumbnail, _ := firstMatch(item, thumbnailRules)

		permalink := absolute(base, link)
		listings = append(listings, models.ListingResult{
			ID:        listingID(permalink, i+1),
			Title:     title,
			Price:     price,
			Permalink: permalink,
			Thumbnail: absolute(base, thumbnail),
			Condition: conditionOf(item),
		})
		return true
	})
	return listings
}

func absolute(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}

// listingID is the last path segment of the permalink, or scraped-<n>
func listingID(permalink string, n int) string {
	if permalink != "" {
		p := permalink
		if u, err := url.Parse(permalink); err == nil {
			p = u.Path
		}
		if i := strings.LastIndex(p, "/"); i >= 0 {
			p = p[i+1:]
		}
		if p != "" {
			return p
		}
	}
	return fmt.Sprintf("scraped-%d", n)
}
