package browser

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/ysmood/gson"

	"github.com/PentesterFlow/storescrape/internal/errors"
	"github.com/PentesterFlow/storescrape/internal/logger"
	"github.com/PentesterFlow/storescrape/internal/metrics"
)

// Guard runs remote evaluations with bounded retries, telling transient
// context loss apart from real script failures.
type Guard struct {
	config  GuardConfig
	log     *logger.Logger
	metrics *metrics.Collector
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewGuard creates a Guard.
func NewGuard(config GuardConfig, log *logger.Logger, m *metrics.Collector) *Guard {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Guard{
		config:  config,
		log:     log.WithComponent("guard"),
		metrics: m,
		sleep:   errors.Sleep,
	}
}

// livenessError marks an attempt that never reached the evaluation.
type livenessError struct {
	cause error
}

func (e *livenessError) Error() string { return "execution context not alive: " + e.cause.Error() }
func (e *livenessError) Unwrap() error { return e.cause }

// Eval runs js with the configured attempt budget.
func (g *Guard) Eval(ctx context.Context, ec ExecutionContext, js string) (gson.JSON, error) {
	return g.EvalN(ctx, ec, js, g.config.MaxAttempts)
}

// EvalN runs js with at most maxAttempts attempts.
func (g *Guard) EvalN(ctx context.Context, ec ExecutionContext, js string, maxAttempts int) (gson.JSON, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	url := ""
	if ec != nil {
		url = ec.URL()
	}

	r := &errors.Retrier{
		MaxAttempts: maxAttempts,
		Sleep:       g.sleep,
		ShouldRetry: func(err error) bool {
			var le *livenessError
			return stderrors.As(err, &le) || errors.IsTransient(err)
		},
		Backoff: func(attempt int, err error) time.Duration {
			var le *livenessError
			if stderrors.As(err, &le) {
				return g.config.LivenessBackoff
			}
			return g.config.TransientBackoff
		},
		OnRetry: func(ctx context.Context, attempt int, err error) error {
			g.metrics.RecordEvalRetry()
			g.log.RetryEvent("eval", attempt, maxAttempts, err)

			var le *livenessError
			if stderrors.As(err, &le) {
				return nil
			}
			return g.recover(ctx, ec)
		},
	}

	value, result := errors.DoWithResult(ctx, r, func(ctx context.Context, attempt int) (gson.JSON, error) {
		if ec == nil {
			return gson.New(nil), &livenessError{cause: errors.NewRemoteError(errors.ContextMissing, "eval", nil)}
		}
		if err := ec.Alive(); err != nil {
			return gson.New(nil), &livenessError{cause: err}
		}
		return ec.Eval(ctx, js)
	})

	if result.Success {
		return value, nil
	}
	if errors.IsCancelled(result.LastError) {
		return gson.New(nil), errors.NewCancelledError(url, "eval")
	}
	return gson.New(nil), errors.NewExecutionFailure(url, "eval", result.LastError)
}

// recover reloads a live context after a transient failure and lets it
// settle. A failing reload is logged and swallowed.
func (g *Guard) recover(ctx context.Context, ec ExecutionContext) error {
	if ec.Alive() == nil {
		g.metrics.RecordReload()
		if err := ec.Reload(ctx, g.config.ReloadTimeout); err != nil {
			g.log.WithError(err).Debug("Recovery reload failed")
		}
	}
	if err := g.sleep(ctx, g.config.ReloadSettle); err != nil {
		return errors.NewCancelledError("", "eval")
	}
	return nil
}

// Run evaluates js and discards the value.
func (g *Guard) Run(ctx context.Context, ec ExecutionContext, js string) error {
	_, err := g.Eval(ctx, ec, js)
	return err
}
