package browser

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/PentesterFlow/storescrape/internal/errors"
	"github.com/PentesterFlow/storescrape/internal/logger"
	"github.com/PentesterFlow/storescrape/internal/metrics"
)

// State is a Navigator state.
type State int

const (
	StateIdle State = iota
	StateNavigating
	StateSettling
	StateReady
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateNavigating:
		return "navigating"
	case StateSettling:
		return "settling"
	case StateReady:
		return "ready"
	default:
		return "idle"
	}
}

// Limiter paces outbound navigations. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

const (
	scrollToMiddleJS = `() => { window.scrollTo(0, document.body.scrollHeight / 2); return true }`
	scrollToTopJS    = `() => { window.scrollTo(0, 0); return true }`
)

// phaseError tags a failed attempt with the state it failed in.
type phaseError struct {
	state State
	cause error
}

func (e *phaseError) Error() string { return e.state.String() + ": " + e.cause.Error() }
func (e *phaseError) Unwrap() error { return e.cause }

// Navigator owns the single execution context and brings it to a settled
// document for each target, replacing the context when it is lost.
type Navigator struct {
	factory Factory
	guard   *Guard
	config  NavigatorConfig
	limiter Limiter
	log     *logger.Logger
	metrics *metrics.Collector
	sleep   func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	current ExecutionContext
	state   State
}

// NavigatorOption configures a Navigator.
type NavigatorOption func(*Navigator)

// WithLimiter paces each navigation attempt.
func WithLimiter(l Limiter) NavigatorOption {
	return func(n *Navigator) {
		n.limiter = l
	}
}

// WithNavigatorLogger sets the logger.
func WithNavigatorLogger(l *logger.Logger) NavigatorOption {
	return func(n *Navigator) {
		n.log = l.WithComponent("navigator")
	}
}

// WithNavigatorMetrics sets the metrics collector.
func WithNavigatorMetrics(m *metrics.Collector) NavigatorOption {
	return func(n *Navigator) {
		n.metrics = m
	}
}

// NewNavigator creates a Navigator. No context is acquired until the first
// SettleAt.
func NewNavigator(factory Factory, guard *Guard, config NavigatorConfig, opts ...NavigatorOption) *Navigator {
	n := &Navigator{
		factory: factory,
		guard:   guard,
		config:  config,
		log:     logger.Nop(),
		metrics: metrics.New(),
		sleep:   errors.Sleep,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Guard returns the guard used for settle steps.
func (n *Navigator) Guard() *Guard {
	return n.guard
}

// Current returns the context currently owned, or nil.
func (n *Navigator) Current() ExecutionContext {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// State returns the current state.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *Navigator) setState(s State) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
}

// SettleAt navigates to target and settles the document. The returned
// context stays owned by the Navigator; callers borrow it until the next
// SettleAt or Close.
func (n *Navigator) SettleAt(ctx context.Context, target string) (ExecutionContext, error) {
	start := time.Now()
	log := n.log.WithTarget(target)
	maxAttempts := n.config.MaxRetries + 1

	r := &errors.Retrier{
		MaxAttempts: maxAttempts,
		Sleep:       n.sleep,
		ShouldRetry: func(err error) bool {
			var pe *phaseError
			return stderrors.As(err, &pe) && errors.IsTransient(pe.cause)
		},
		Backoff: func(attempt int, err error) time.Duration {
			var pe *phaseError
			if stderrors.As(err, &pe) && pe.state == StateSettling {
				return n.config.RestartWait
			}
			return 0
		},
		OnRetry: func(ctx context.Context, attempt int, err error) error {
			n.metrics.RecordNavigationRetry()
			log.RetryEvent("navigate", attempt, maxAttempts, err)

			var pe *phaseError
			if stderrors.As(err, &pe) && pe.state == StateNavigating {
				if err := n.recreate(ctx); err != nil {
					return err
				}
				if err := n.sleep(ctx, n.config.RecreateWait); err != nil {
					return errors.NewCancelledError(target, "navigate")
				}
			}
			return nil
		},
	}

	ec, result := errors.DoWithResult(ctx, r, func(ctx context.Context, attempt int) (ExecutionContext, error) {
		return n.attempt(ctx, target, attempt)
	})

	if result.Success {
		n.setState(StateReady)
		n.metrics.RecordSettleTime(time.Since(start))
		log.WithDuration(time.Since(start)).Debug("Document ready")
		return ec, nil
	}

	n.setState(StateIdle)
	err := result.LastError
	if errors.IsCancelled(err) {
		return nil, errors.NewCancelledError(target, "navigate")
	}
	var pe *phaseError
	if stderrors.As(err, &pe) {
		return nil, errors.NewNavigationFailure(target, pe.state.String()+" failed", pe.cause)
	}
	return nil, errors.NewNavigationFailure(target, "no execution context", err)
}

func (n *Navigator) attempt(ctx context.Context, target string, attempt int) (ExecutionContext, error) {
	ec, err := n.acquire(ctx)
	if err != nil {
		return nil, err
	}

	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return nil, errors.NewCancelledError(target, "navigate")
		}
	}

	n.setState(StateNavigating)
	n.metrics.RecordNavigation()
	n.log.WithTarget(target).WithAttempt(attempt).WithGeneration(ec.Generation()).Debug("Navigating")

	if err := ec.Navigate(ctx, target, n.config.NavigationTimeout); err != nil {
		return nil, &phaseError{state: StateNavigating, cause: err}
	}

	n.setState(StateSettling)
	if err := n.settle(ctx, ec); err != nil {
		return nil, &phaseError{state: StateSettling, cause: err}
	}
	return ec, nil
}

// settle gives lazy widgets a chance to mount: pause, scroll to the middle,
// pause, scroll back, pause, then wait briefly for the main heading.
func (n *Navigator) settle(ctx context.Context, ec ExecutionContext) error {
	if err := n.pause(ctx, n.config.InitialSettle); err != nil {
		return err
	}
	if err := ec.WaitLoad(ctx, n.config.LoadTimeout); err != nil {
		if errors.IsCancelled(err) {
			return err
		}
		n.log.WithError(err).Debug("Load wait skipped")
	}

	if err := n.guard.Run(ctx, ec, scrollToMiddleJS); err != nil {
		return err
	}
	if err := n.pause(ctx, n.config.MidScrollSettle); err != nil {
		return err
	}
	if err := n.guard.Run(ctx, ec, scrollToTopJS); err != nil {
		return err
	}
	if err := n.pause(ctx, n.config.TopScrollSettle); err != nil {
		return err
	}

	if n.config.ReadySelector != "" {
		if err := ec.WaitElement(ctx, n.config.ReadySelector, n.config.ReadyTimeout); err != nil {
			if errors.IsCancelled(err) {
				return err
			}
			n.log.WithError(err).Debug("Ready element not found")
		}
	}
	return nil
}

func (n *Navigator) pause(ctx context.Context, d time.Duration) error {
	if err := n.sleep(ctx, d); err != nil {
		return errors.NewCancelledError("", "settle")
	}
	return nil
}

// acquire returns the owned context, creating the first one on demand.
func (n *Navigator) acquire(ctx context.Context) (ExecutionContext, error) {
	n.mu.Lock()
	ec := n.current
	n.mu.Unlock()
	if ec != nil {
		return ec, nil
	}

	fresh, err := n.factory.NewContext(ctx)
	if err != nil {
		return nil, asSessionFailure("new_context", err)
	}
	n.mu.Lock()
	n.current = fresh
	n.mu.Unlock()
	return fresh, nil
}

// recreate discards the owned context and acquires a fresh one.
func (n *Navigator) recreate(ctx context.Context) error {
	n.mu.Lock()
	old := n.current
	n.current = nil
	n.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			n.log.WithError(err).Debug("Closing lost context failed")
		}
	}

	fresh, err := n.factory.NewContext(ctx)
	if err != nil {
		return asSessionFailure("recreate", err)
	}

	n.mu.Lock()
	n.current = fresh
	n.mu.Unlock()

	n.metrics.RecordRecreation()
	n.log.WithGeneration(fresh.Generation()).Info("Execution context recreated")
	return nil
}

func asSessionFailure(op string, err error) error {
	if errors.GetErrorType(err) == errors.Session {
		return err
	}
	return errors.NewSessionFailure(op, err)
}

// Close releases the owned context.
func (n *Navigator) Close() error {
	n.mu.Lock()
	ec := n.current
	n.current = nil
	n.state = StateIdle
	n.mu.Unlock()

	if ec == nil {
		return nil
	}
	return ec.Close()
}
