package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ysmood/gson"

	"github.com/PentesterFlow/storescrape/internal/browser"
	"github.com/PentesterFlow/storescrape/internal/errors"
	"github.com/PentesterFlow/storescrape/internal/logger"
)

// site is a fake store: it serves markup per URL and fails or panics on
// the URLs it is told to.
type site struct {
	mu sync.Mutex

	pages    map[string]string
	navFail  map[string]bool
	panicOn  map[string]bool
	onEval   func(url string)
	visited  []string
	contexts int
}

func newSite() *site {
	return &site{
		pages:   map[string]string{},
		navFail: map[string]bool{},
		panicOn: map[string]bool{},
	}
}

func (s *site) NewContext(ctx context.Context) (browser.ExecutionContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts++
	return &tab{site: s, gen: s.contexts}, nil
}

func (s *site) visits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visited...)
}

type tab struct {
	site *site
	gen  int
	url  string
}

func (t *tab) Generation() int { return t.gen }
func (t *tab) Alive() error    { return nil }
func (t *tab) URL() string     { return t.url }
func (t *tab) Close() error    { return nil }

func (t *tab) Reload(context.Context, time.Duration) error              { return nil }
func (t *tab) WaitLoad(context.Context, time.Duration) error            { return nil }
func (t *tab) WaitElement(context.Context, string, time.Duration) error { return nil }

func (t *tab) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	t.site.mu.Lock()
	defer t.site.mu.Unlock()
	t.site.visited = append(t.site.visited, url)
	if t.site.navFail[url] {
		return errors.NewRemoteError(errors.Unknown, "navigate", fmt.Errorf("net::ERR_NAME_NOT_RESOLVED"))
	}
	t.url = url
	return nil
}

func (t *tab) Eval(ctx context.Context, js string) (gson.JSON, error) {
	if !strings.Contains(js, "outerHTML") {
		return gson.New(true), nil
	}

	t.site.mu.Lock()
	markup := t.site.pages[t.url]
	panics := t.site.panicOn[t.url]
	hook := t.site.onEval
	t.site.mu.Unlock()

	if panics {
		panic("renderer crashed")
	}
	if hook != nil {
		hook(t.url)
	}
	if markup == "" {
		markup = "<html><head></head><body></body></html>"
	}
	return gson.New(map[string]interface{}{"url": t.url, "html": markup}), nil
}

// quietConfig has every wait zeroed so tests never sleep.
func quietConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Guard.MaxAttempts = 1
	cfg.Guard.LivenessBackoff = 0
	cfg.Guard.TransientBackoff = 0
	cfg.Guard.ReloadSettle = 0
	cfg.Navigator.MaxRetries = 0
	cfg.Navigator.RecreateWait = 0
	cfg.Navigator.RestartWait = 0
	cfg.Navigator.InitialSettle = 0
	cfg.Navigator.MidScrollSettle = 0
	cfg.Navigator.TopScrollSettle = 0
	cfg.Extract.RescanInitialWait = 0
	cfg.Extract.RescanMidWait = 0
	cfg.Extract.RescanTopWait = 0
	cfg.RateLimit.InterDelay = 0
	cfg.Progress = false
	cfg.Output.Dir = t.TempDir()
	return cfg
}

func newTestScraper(t *testing.T, s *site, opts ...Option) *Scraper {
	t.Helper()
	base := []Option{
		WithConfig(quietConfig(t)),
		WithSessionFactory(s),
		WithLogger(logger.Nop()),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
	}
	sc, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { sc.Close() })
	return sc
}

func productPage(title, price string) string {
	return `<html><head><meta property="og:title" content="` + title + `"></head><body>` +
		`<h1 data-qa="mfe-game-title#name">` + title + `</h1>` +
		`<span data-qa="mfeCtaMain#offer0#finalPrice">` + price + `</span>` +
		`</body></html>`
}

func catalogPage(items ...[2]string) string {
	var b strings.Builder
	b.WriteString("<html><head></head><body><ul>")
	for i, it := range items {
		fmt.Fprintf(&b, `<li><a href="/en-rs/product/ID%d"><img src="/img/%d.png"><span data-qa="product-title">%s</span><span data-qa="display-price">%s</span></a></li>`, i, i, it[0], it[1])
	}
	b.WriteString("</ul></body></html>")
	return b.String()
}

func tilePage(items ...[2]string) string {
	var b strings.Builder
	b.WriteString("<html><head></head><body>")
	for i, it := range items {
		fmt.Fprintf(&b, `<div class="game-tile"><a href="/en-rs/concept/%d"><h3>%s</h3></a><div class="tile-price">%s</div></div>`, i, it[0], it[1])
	}
	b.WriteString("</body></html>")
	return b.String()
}
