package extract

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/PentesterFlow/storescrape/internal/browser"
	"github.com/PentesterFlow/storescrape/internal/dedup"
	"github.com/PentesterFlow/storescrape/internal/logger"
	"github.com/PentesterFlow/storescrape/internal/metrics"
)

// DefaultListingLimit caps a listing pass when no limit is given.
const DefaultListingLimit = 20

// Listing is one summary entry read from a category or search page.
type Listing struct {
	Title string `json:"title"`
	Price string `json:"price"`
	Link  string `json:"link"`
	Image string `json:"image"`
}

// Layout describes where listing entries and their fields live.
type Layout struct {
	Name  string
	Items cascadia.Selector
	Title cascadia.Selector
	Price cascadia.Selector
	Image cascadia.Selector
}

var (
	// ProductLayout reads product anchors of the grid view.
	ProductLayout = Layout{
		Name:  "product",
		Items: cascadia.MustCompile(`a[href*="/product/"]`),
		Title: cascadia.MustCompile(`span[data-qa*="title"], h3, .product-title, [class*="title"]`),
		Price: cascadia.MustCompile(`span[data-qa*="price"], .price, [class*="price"]`),
		Image: cascadia.MustCompile(`img`),
	}

	// TileLayout reads the tile view some categories render instead.
	TileLayout = Layout{
		Name:  "tile",
		Items: cascadia.MustCompile(`[class*="product-tile"], [class*="game-tile"], a[href*="/product/"]`),
		Title: cascadia.MustCompile(`span, h3, [class*="title"]`),
		Price: cascadia.MustCompile(`[class*="price"], span[data-qa*="price"]`),
		Image: cascadia.MustCompile(`img`),
	}

	anchorSel = cascadia.MustCompile(`a`)
)

// Lister reads listing entries from a settled catalog page.
type Lister struct {
	guard   *browser.Guard
	log     *logger.Logger
	metrics *metrics.Collector
}

// NewLister creates a Lister evaluating through guard.
func NewLister(guard *browser.Guard, log *logger.Logger, m *metrics.Collector) *Lister {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Lister{guard: guard, log: log.WithComponent("listing"), metrics: m}
}

// ListCandidates reads up to limit entries with the product layout.
func (l *Lister) ListCandidates(ctx context.Context, ec browser.ExecutionContext, limit int) ([]Listing, error) {
	return l.ListWithLayout(ctx, ec, ProductLayout, limit)
}

// ListWithLayout reads up to limit entries with layout.
func (l *Lister) ListWithLayout(ctx context.Context, ec browser.ExecutionContext, layout Layout, limit int) ([]Listing, error) {
	doc, err := Snapshot(ctx, l.guard, ec)
	if err != nil {
		return nil, err
	}

	out := ParseListings(doc, layout, limit)
	l.metrics.RecordListings(len(out))
	l.log.WithField("layout", layout.Name).WithField("count", len(out)).Debug("Listing parsed")
	return out, nil
}

// ParseListings reads entries from doc. Entries with neither title nor
// price are dropped, repeated titles keep their first entry, and at most
// limit entries are returned. Untitled entries are told apart by link.
func ParseListings(doc *Document, layout Layout, limit int) []Listing {
	if limit <= 0 {
		limit = DefaultListingLimit
	}

	var found []Listing
	seen := dedup.New(0)
	doc.Find(layout.Items).Each(func(_ int, item *goquery.Selection) {
		title := firstText(item, layout.Title)
		price := firstText(item, layout.Price)
		if title == "" && price == "" {
			return
		}

		l := Listing{
			Title: orUnknown(title),
			Price: orUnknown(price),
			Link:  orUnknown(doc.Resolve(linkOf(item))),
			Image: orUnknown(doc.Resolve(attrOf(item.FindMatcher(layout.Image).First(), "src"))),
		}
		if key, ok := listingKey(l); ok && !seen.Add(key) {
			return
		}
		found = append(found, l)
	})

	if len(found) > limit {
		found = found[:limit]
	}
	return found
}

// listingKey is the title, or the link for untitled entries. An entry with
// neither has no key and is always kept.
func listingKey(l Listing) (string, bool) {
	switch {
	case l.Title != Unknown:
		return "title:" + l.Title, true
	case l.Link != Unknown:
		return "link:" + l.Link, true
	default:
		return "", false
	}
}

func firstText(s *goquery.Selection, m goquery.Matcher) string {
	var out string
	s.FindMatcher(m).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		out = textOf(el)
		return out == ""
	})
	return out
}

// linkOf returns the item's own href, or that of its nearest anchor.
func linkOf(item *goquery.Selection) string {
	if href := attrOf(item, "href"); href != "" {
		return href
	}
	if a := item.ClosestMatcher(anchorSel); a.Length() > 0 {
		return attrOf(a, "href")
	}
	return attrOf(item.FindMatcher(anchorSel).First(), "href")
}

func attrOf(s *goquery.Selection, name string) string {
	if s.Length() == 0 {
		return ""
	}
	v, _ := s.Attr(name)
	return v
}

func orUnknown(v string) string {
	if v == "" {
		return Unknown
	}
	return v
}
