package scraper

import (
	"context"
	"net/url"
	"strings"

	"github.com/PentesterFlow/storescrape/internal/errors"
	"github.com/PentesterFlow/storescrape/internal/extract"
	"github.com/PentesterFlow/storescrape/internal/output"
)

// ListingQuery selects a catalog page. Search wins over Category.
type ListingQuery struct {
	Search   string
	Category string
	Limit    int
	// NoFallback skips the alternate category when the first page is empty.
	NoFallback bool
}

// URL builds the catalog address for q.
func (q ListingQuery) URL(cfg ListingConfig) string {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Locale != "" {
		base += "/" + cfg.Locale
	}

	if q.Search != "" {
		return base + "/search/" + url.PathEscape(q.Search)
	}
	category := q.Category
	if category == "" {
		category = cfg.Category
	}
	return base + "/category/" + url.PathEscape(category)
}

// RunListing reads catalog entries. When the requested page yields nothing
// and no search was given, the alternate category is read with the tile
// layout instead.
func (s *Scraper) RunListing(ctx context.Context, q ListingQuery) ([]output.ListingRecord, error) {
	if err := s.Start(ctx); err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.config.Listing.Limit
	}

	target := q.URL(s.config.Listing)
	listings, err := s.listPage(ctx, target, extract.ProductLayout, limit)
	if errors.IsCancelled(err) {
		return nil, err
	}
	if len(listings) > 0 {
		return listings, nil
	}
	if err != nil {
		s.log.WithTarget(target).WithError(err).Warn("Listing page failed")
	}

	alternate := s.config.Listing.AlternateCategory
	if q.NoFallback || q.Search != "" || alternate == "" || alternate == q.Category {
		return listings, err
	}

	fallback := ListingQuery{Category: alternate}.URL(s.config.Listing)
	s.log.WithTarget(fallback).Warn("No listings found, trying the alternate category")

	listings, altErr := s.listPage(ctx, fallback, extract.TileLayout, limit)
	if altErr != nil {
		return nil, altErr
	}
	return listings, nil
}

func (s *Scraper) listPage(ctx context.Context, target string, layout extract.Layout, limit int) ([]output.ListingRecord, error) {
	ec, err := s.navigator.SettleAt(ctx, target)
	if err != nil {
		return nil, err
	}
	return s.lister.ListWithLayout(ctx, ec, layout, limit)
}
