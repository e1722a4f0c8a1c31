package browser

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/PentesterFlow/storescrape/internal/errors"
)

// ExecutionContext is one remote tab the scraper navigates and evaluates in.
// Every failure it returns is a classified *errors.RemoteError.
type ExecutionContext interface {
	// Generation increases each time the owner replaces the context.
	Generation() int
	// Alive returns nil when the context can still accept calls.
	Alive() error
	// Navigate loads url and waits for DOMContentLoaded.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// Eval runs a JavaScript expression or function and returns its value.
	Eval(ctx context.Context, js string) (gson.JSON, error)
	Reload(ctx context.Context, timeout time.Duration) error
	WaitLoad(ctx context.Context, timeout time.Duration) error
	WaitElement(ctx context.Context, selector string, timeout time.Duration) error
	// URL returns the address of the loaded document.
	URL() string
	Close() error
}

// Factory produces fresh execution contexts with identity already applied.
type Factory interface {
	NewContext(ctx context.Context) (ExecutionContext, error)
}

// rodContext is an ExecutionContext backed by a rod page.
type rodContext struct {
	page *rod.Page
	gen  int
}

func (c *rodContext) Generation() int {
	return c.gen
}

func (c *rodContext) Alive() error {
	if c.page == nil {
		return errors.NewRemoteError(errors.ContextMissing, "liveness", nil)
	}
	_, err := c.page.Info()
	return classify("liveness", err)
}

func (c *rodContext) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p := c.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()

	wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(url); err != nil {
		return classify("navigate", err)
	}
	wait()

	if err := p.GetContext().Err(); err != nil {
		return classify("navigate", err)
	}
	return nil
}

func (c *rodContext) Eval(ctx context.Context, js string) (gson.JSON, error) {
	res, err := c.page.Context(ctx).Eval(js)
	if err != nil {
		return gson.New(nil), classify("eval", err)
	}
	return res.Value, nil
}

func (c *rodContext) Reload(ctx context.Context, timeout time.Duration) error {
	p := c.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()

	if err := p.Reload(); err != nil {
		return classify("reload", err)
	}
	return classify("reload", p.WaitLoad())
}

func (c *rodContext) WaitLoad(ctx context.Context, timeout time.Duration) error {
	p := c.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()

	return classify("wait_load", p.WaitLoad())
}

func (c *rodContext) WaitElement(ctx context.Context, selector string, timeout time.Duration) error {
	p := c.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()

	_, err := p.Element(selector)
	return classify("wait_element", err)
}

func (c *rodContext) URL() string {
	info, err := c.page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.URL
}

func (c *rodContext) Close() error {
	return classify("close", c.page.Close())
}
