package extract

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/PentesterFlow/storescrape/internal/browser"
	"github.com/PentesterFlow/storescrape/internal/dedup"
	"github.com/PentesterFlow/storescrape/internal/errors"
	"github.com/PentesterFlow/storescrape/internal/logger"
	"github.com/PentesterFlow/storescrape/internal/metrics"
)

const scrollToThirdJS = `() => { window.scrollTo(0, document.body.scrollHeight / 3) }`

const scrollToTopJS = `() => { window.scrollTo(0, 0) }`

// Config tunes the extraction pass.
type Config struct {
	DescriptionLimit int `yaml:"description_limit" json:"description_limit"`

	// Rescan enables the second price pass when the first finds no paid price.
	Rescan            bool          `yaml:"rescan" json:"rescan"`
	RescanInitialWait time.Duration `yaml:"rescan_initial_wait" json:"rescan_initial_wait"`
	RescanMidWait     time.Duration `yaml:"rescan_mid_wait" json:"rescan_mid_wait"`
	RescanTopWait     time.Duration `yaml:"rescan_top_wait" json:"rescan_top_wait"`
}

// DefaultConfig returns the standard extraction settings.
func DefaultConfig() Config {
	return Config{
		DescriptionLimit:  1000,
		Rescan:            true,
		RescanInitialWait: 3 * time.Second,
		RescanMidWait:     2 * time.Second,
		RescanTopWait:     1 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.DescriptionLimit < 1 {
		return errors.NewScrapeError(errors.Internal, "", "config", "description_limit must be at least 1", nil)
	}
	if c.RescanInitialWait < 0 || c.RescanMidWait < 0 || c.RescanTopWait < 0 {
		return errors.NewScrapeError(errors.Internal, "", "config", "rescan waits cannot be negative", nil)
	}
	return nil
}

// Details holds everything read from one product page.
type Details struct {
	Title         string   `json:"title"`
	Price         string   `json:"price"`
	PriceSource   string   `json:"priceSource,omitempty"`
	AllPrices     []string `json:"allPrices"`
	OriginalPrice *string  `json:"originalPrice"`
	Discount      *string  `json:"discount"`
	Description   string   `json:"description"`
	Rating        string   `json:"rating"`
	Platform      *string  `json:"platform"`
	Publisher     *string  `json:"publisher"`
	ReleaseDate   *string  `json:"releaseDate"`
	Genres        []string `json:"genres"`
	Image         *string  `json:"image"`
}

// NeedsRescan reports whether the price is missing or free.
func (d *Details) NeedsRescan() bool {
	return d.Price == Unknown || d.Price == "" || IsFree(d.Price)
}

// Engine extracts Details from a settled context.
type Engine struct {
	config  Config
	guard   *browser.Guard
	log     *logger.Logger
	metrics *metrics.Collector
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an Engine evaluating through guard.
func NewEngine(config Config, guard *browser.Guard, log *logger.Logger, m *metrics.Collector) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Engine{
		config:  config,
		guard:   guard,
		log:     log.WithComponent("extract"),
		metrics: m,
		sleep:   errors.Sleep,
	}
}

// Extract reads the product page loaded in ec. It fails only when the page
// cannot be captured at all or the run is cancelled; missing fields degrade
// to Unknown or nil.
func (e *Engine) Extract(ctx context.Context, ec browser.ExecutionContext) (*Details, error) {
	doc, err := Snapshot(ctx, e.guard, ec)
	if err != nil {
		return nil, err
	}

	d := e.ExtractDocument(doc)
	if e.config.Rescan && d.NeedsRescan() {
		if err := e.rescan(ctx, ec, d); err != nil {
			if errors.IsCancelled(err) {
				return nil, err
			}
			e.log.WithError(err).Warn("Price rescan failed")
		}
	}

	e.metrics.RecordPriceSource(d.PriceSource)
	return d, nil
}

// ExtractDocument resolves every field over a captured document.
func (e *Engine) ExtractDocument(doc *Document) *Details {
	d := &Details{
		Title:         resolveOr(doc, titleField, Unknown),
		OriginalPrice: resolvePtr(doc, originalPriceField),
		Discount:      resolvePtr(doc, discountField),
		Description:   truncate(resolveOr(doc, descriptionField, Unknown), e.config.DescriptionLimit),
		Rating:        resolveOr(doc, ratingField, Unknown),
		Platform:      resolvePtr(doc, platformField),
		Publisher:     resolvePtr(doc, publisherField),
		ReleaseDate:   resolvePtr(doc, releaseDateField),
		Genres:        genresOf(doc),
	}

	if img := resolvePtr(doc, imageField); img != nil {
		abs := doc.Resolve(*img)
		d.Image = &abs
	}

	e.resolvePrice(doc, d)
	if missing := MissingFields(doc); len(missing) > 0 {
		e.log.WithField("missing", missing).Debug("Fields not found on page")
	}
	return d
}

// MissingFields names the descriptors in Fields that resolve to nothing on doc.
func MissingFields(doc *Document) []string {
	var missing []string
	for _, f := range Fields {
		if _, _, ok := Resolve(doc, f); !ok {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

func (e *Engine) resolvePrice(doc *Document, d *Details) {
	candidates := DedupPrices(FilterNoise(CollectPrices(doc)))
	if len(candidates) > 0 {
		d.AllPrices = RawPrices(candidates)
	}

	if chosen, ok := SelectPrice(candidates); ok {
		d.Price, d.PriceSource = chosen.Raw, chosen.Strategy
		return
	}
	if v, source, ok := fallbackPrice(doc); ok {
		d.Price, d.PriceSource = v, source
		return
	}
	d.Price = Unknown
}

// rescan waits for late offer widgets, scrolls them into view and looks
// again. Any paid match overrides the price with the highest of the pool.
func (e *Engine) rescan(ctx context.Context, ec browser.ExecutionContext, d *Details) error {
	e.metrics.RecordRescan()
	e.log.WithField("price", d.Price).Info("Price missing or free, rescanning")

	if err := e.pause(ctx, e.config.RescanInitialWait); err != nil {
		return err
	}
	if err := e.guard.Run(ctx, ec, scrollToThirdJS); err != nil {
		return err
	}
	if err := e.pause(ctx, e.config.RescanMidWait); err != nil {
		return err
	}
	if err := e.guard.Run(ctx, ec, scrollToTopJS); err != nil {
		return err
	}
	if err := e.pause(ctx, e.config.RescanTopWait); err != nil {
		return err
	}

	doc, err := Snapshot(ctx, e.guard, ec)
	if err != nil {
		return err
	}
	found := RescanPrices(doc)
	if len(found) == 0 {
		e.log.Debug("Rescan found no price")
		return nil
	}

	pool := dedup.Strings(append(append([]string{}, d.AllPrices...), found...))
	candidates := make([]PriceCandidate, len(pool))
	for i, raw := range pool {
		candidates[i] = newCandidate(raw, StrategyRescan, nil)
	}
	chosen, ok := SelectPrice(candidates)
	if !ok || !chosen.Paid() {
		return nil
	}

	d.Price, d.PriceSource = chosen.Raw, StrategyRescan
	d.AllPrices = pool
	e.log.WithField("price", d.Price).Info("Rescan found price")
	return nil
}

func (e *Engine) pause(ctx context.Context, d time.Duration) error {
	if err := e.sleep(ctx, d); err != nil {
		return errors.NewCancelledError("", "rescan")
	}
	return nil
}

func genresOf(doc *Document) []string {
	var out []string
	doc.Find(genreSel).Each(func(_ int, s *goquery.Selection) {
		if v := textOf(s); usable(v) {
			out = append(out, v)
		}
	})
	if len(out) == 0 {
		return nil
	}
	return dedup.Strings(out)
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
