package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ysmood/gson"

	"github.com/PentesterFlow/storescrape/internal/errors"
)

// fakeContext is a scripted ExecutionContext.
type fakeContext struct {
	mu sync.Mutex

	gen       int
	url       string
	userAgent string
	viewport  [2]int

	aliveErrs []error
	evalErrs  []error
	navErrs   []error
	reloadErr error
	loadErr   error
	elemErr   error

	evalValue func(js string) gson.JSON

	aliveCalls int
	evals      []string
	navs       []string
	reloads    int
	closed     bool
}

func next(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *fakeContext) Generation() int { return f.gen }

func (f *fakeContext) Alive() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aliveCalls++
	if f.closed {
		return errors.NewRemoteError(errors.TargetClosed, "liveness", nil)
	}
	return next(&f.aliveErrs)
}

func (f *fakeContext) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navs = append(f.navs, url)
	if err := next(&f.navErrs); err != nil {
		return err
	}
	f.url = url
	return nil
}

func (f *fakeContext) Eval(ctx context.Context, js string) (gson.JSON, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals = append(f.evals, js)
	if err := next(&f.evalErrs); err != nil {
		return gson.New(nil), err
	}
	if f.evalValue != nil {
		return f.evalValue(js), nil
	}
	return gson.New(true), nil
}

func (f *fakeContext) Reload(ctx context.Context, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return f.reloadErr
}

func (f *fakeContext) WaitLoad(ctx context.Context, timeout time.Duration) error { return f.loadErr }

func (f *fakeContext) WaitElement(ctx context.Context, selector string, timeout time.Duration) error {
	return f.elemErr
}

func (f *fakeContext) URL() string { return f.url }

func (f *fakeContext) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeFactory hands out scripted contexts in order, applying identity like
// Session does.
type fakeFactory struct {
	config   Config
	prepared []*fakeContext
	errs     []error
	created  []*fakeContext
}

func (f *fakeFactory) NewContext(ctx context.Context) (ExecutionContext, error) {
	if err := next(&f.errs); err != nil {
		return nil, err
	}
	var c *fakeContext
	if len(f.prepared) > 0 {
		c = f.prepared[0]
		f.prepared = f.prepared[1:]
	} else {
		c = &fakeContext{}
	}
	c.gen = len(f.created) + 1
	c.userAgent = f.config.UserAgent
	c.viewport = [2]int{f.config.ViewportWidth, f.config.ViewportHeight}
	f.created = append(f.created, c)
	return c, nil
}

// sleepRecorder records requested waits without sleeping.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) String() string {
	return fmt.Sprint(s.waits)
}

func transient(kind errors.Kind) error {
	return errors.NewRemoteError(kind, "eval", fmt.Errorf("%s", kind))
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
