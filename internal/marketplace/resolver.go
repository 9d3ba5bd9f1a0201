// Package marketplace finds listings for classified products on the marketplace search site.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/lehigh-university-libraries/productfinder/internal/models"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://listado.mercadolibre.com.ar"
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Resolver searches the marketplace and extracts the first listings from the results page
type Resolver struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Transport http.RoundTripper

	limiter *rate.Limiter
}

// NewResolver returns a resolver allowing rps searches per second (burst 1).
// rps <= 0 disables throttling.
func NewResolver(baseURL string, timeout time.Duration, rps float64) *Resolver {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Resolver{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Timeout:   timeout,
		UserAgent: DefaultUserAgent,
		Transport: http.DefaultTransport,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// BuildQuery joins category and title, then author or, failing that, brand
func BuildQuery(meta models.ProductMetadata) string {
	parts := []string{meta.Category, meta.Title}
	if meta.Author != "" {
		parts = append(parts, meta.Author)
	} else if meta.Brand != "" {
		parts = append(parts, meta.Brand)
	}

	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// SearchURL is the results page address for query
func (r *Resolver) SearchURL(query string) string {
	return r.BaseURL + "/" + url.PathEscape(query)
}

// Resolve returns up to MaxListings listings for meta. No results is not an error;
// ErrResolverUnavailable means the marketplace could not be reached.
func (r *Resolver) Resolve(ctx context.Context, meta models.ProductMetadata) ([]models.ListingResult, error) {
	if !meta.Usable() {
		slog.Debug("Skipping marketplace search for incomplete metadata", "category", meta.Category, "title", meta.Title)
		return []models.ListingResult{}, nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrResolverUnavailable, err)
	}

	query := BuildQuery(meta)
	searchURL := r.SearchURL(query)
	slog.Info("Searching marketplace", "query", query, "url", searchURL)

	c := colly.NewCollector(
		colly.UserAgent(r.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(r.Timeout)
	c.WithTransport(&contextTransport{ctx: ctx, base: r.Transport})

	listings := []models.ListingResult{}
	found := false
	c.OnHTML("html", func(e *colly.HTMLElement) {
		if !HasResults(e.DOM) {
			return
		}
		found = true
		listings = ExtractListings(e.DOM, e.Request.URL)
	})

	status := 0
	c.OnError(func(resp *colly.Response, err error) {
		status = resp.StatusCode
	})

	if err := c.Visit(searchURL); err != nil {
		switch {
		case status == http.StatusNotFound:
			slog.Info("Marketplace returned no results page", "query", query)
			return []models.ListingResult{}, nil
		case status >= 400 && status < 500 && status != http.StatusTooManyRequests:
			slog.Warn("Marketplace rejected search", "query", query, "status", status)
			return []models.ListingResult{}, nil
		case errors.Is(err, context.Canceled):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: %s: %v", models.ErrResolverUnavailable, searchURL, err)
		}
	}

	// a served page without the results block is the "no matches" page
	if !found {
		slog.Info("No search results container", "query", query)
	}
	slog.Info("Extracted marketplace listings", "query", query, "count", len(listings))
	return listings, nil
}

// contextTransport binds outgoing requests to the resolve call's context
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req.WithContext(t.ctx))
}
