package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"

	"github.com/PentesterFlow/storescrape/internal/browser"
)

const pageURL = "https://store.playstation.com/en-rs/product/EP9000-PPSA01234_00-ASTROBOT00000000"

// staticPage serves canned snapshots: the n-th capture returns pages[n],
// repeating the last page once they run out.
type staticPage struct {
	pages   []string
	evalErr error
	evals   []string
	snaps   int
}

func (p *staticPage) Generation() int { return 1 }
func (p *staticPage) Alive() error    { return nil }
func (p *staticPage) URL() string     { return pageURL }
func (p *staticPage) Close() error    { return nil }

func (p *staticPage) Navigate(context.Context, string, time.Duration) error      { return nil }
func (p *staticPage) Reload(context.Context, time.Duration) error                { return nil }
func (p *staticPage) WaitLoad(context.Context, time.Duration) error              { return nil }
func (p *staticPage) WaitElement(context.Context, string, time.Duration) error   { return nil }

func (p *staticPage) Eval(_ context.Context, js string) (gson.JSON, error) {
	p.evals = append(p.evals, js)
	if p.evalErr != nil {
		return gson.New(nil), p.evalErr
	}
	if js != snapshotJS {
		return gson.New(nil), nil
	}

	i := p.snaps
	if i >= len(p.pages) {
		i = len(p.pages) - 1
	}
	p.snaps++
	return gson.New(map[string]interface{}{"url": pageURL, "html": p.pages[i]}), nil
}

var _ browser.ExecutionContext = (*staticPage)(nil)

func testGuard() *browser.Guard {
	return browser.NewGuard(browser.GuardConfig{MaxAttempts: 1}, nil, nil)
}

func parse(t *testing.T, markup string) *Document {
	t.Helper()
	doc, err := ParseDocument(markup, pageURL)
	require.NoError(t, err)
	return doc
}

func page(body string) string {
	return "<html><head></head><body>" + body + "</body></html>"
}

func pageWithHead(head, body string) string {
	return "<html><head>" + head + "</head><body>" + body + "</body></html>"
}

type waitRecorder struct {
	waits []time.Duration
}

func (w *waitRecorder) sleep(ctx context.Context, d time.Duration) error {
	w.waits = append(w.waits, d)
	return ctx.Err()
}
