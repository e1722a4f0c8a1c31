// Package shutdown cancels a run on SIGINT/SIGTERM and releases resources
// such as the browser session.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/PentesterFlow/storescrape/internal/logger"
)

// Handler manages graceful shutdown.
type Handler struct {
	mu sync.Mutex

	callbacks     []Callback
	callbackNames []string

	isShuttingDown atomic.Bool
	done           chan struct{}
	timeout        time.Duration
	log            *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	sigChan chan os.Signal
	stop    chan struct{}
}

// Callback is a function called during shutdown.
type Callback func(ctx context.Context) error

// Config holds shutdown configuration.
type Config struct {
	Timeout time.Duration
	Signals []os.Signal
	Logger  *logger.Logger
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// New creates a shutdown handler whose Context derives from parent.
func New(parent context.Context, cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	ctx, cancel := context.WithCancel(parent)

	h := &Handler{
		done:    make(chan struct{}),
		timeout: cfg.Timeout,
		log:     cfg.Logger.WithComponent("shutdown"),
		ctx:     ctx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 1),
		stop:    make(chan struct{}),
	}

	signal.Notify(h.sigChan, cfg.Signals...)
	go h.listen()

	return h
}

func (h *Handler) listen() {
	select {
	case sig := <-h.sigChan:
		h.log.WithField("signal", sig.String()).Warn("Interrupted, finishing current target and releasing the session")
		h.cancel()
	case <-h.stop:
	}
}

// Register registers a shutdown callback with a name.
func (h *Handler) Register(name string, callback Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.callbacks = append(h.callbacks, callback)
	h.callbackNames = append(h.callbackNames, name)
}

// RegisterFunc registers a cleanup function that may fail.
func (h *Handler) RegisterFunc(name string, fn func() error) {
	h.Register(name, func(ctx context.Context) error {
		return fn()
	})
}

// Context is cancelled when a signal arrives or Shutdown begins.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted reports whether Context was cancelled.
func (h *Handler) Interrupted() bool {
	return h.ctx.Err() != nil
}

// IsShuttingDown returns whether shutdown is in progress.
func (h *Handler) IsShuttingDown() bool {
	return h.isShuttingDown.Load()
}

// Done returns a channel that is closed when shutdown completes.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// Shutdown cancels Context and runs callbacks in reverse registration
// order. Only the first call has any effect.
func (h *Handler) Shutdown() []error {
	if !h.isShuttingDown.CompareAndSwap(false, true) {
		return nil
	}

	start := time.Now()
	h.cancel()
	signal.Stop(h.sigChan)
	close(h.stop)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), h.timeout)
	defer shutdownCancel()

	h.mu.Lock()
	callbacks := make([]Callback, len(h.callbacks))
	names := make([]string, len(h.callbackNames))
	copy(callbacks, h.callbacks)
	copy(names, h.callbackNames)
	h.mu.Unlock()

	var errs []error
	for i := len(callbacks) - 1; i >= 0; i-- {
		if err := h.executeCallback(shutdownCtx, names[i], callbacks[i]); err != nil {
			h.log.WithError(err).WithField("callback", names[i]).Warn("Shutdown callback failed")
			errs = append(errs, err)
		}
	}

	h.log.WithDuration(time.Since(start)).Debug("Shutdown complete")
	close(h.done)
	return errs
}

// executeCallback executes a shutdown callback with timeout handling.
func (h *Handler) executeCallback(ctx context.Context, name string, callback Callback) error {
	done := make(chan error, 1)

	go func() {
		done <- callback(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return &TimeoutError{CallbackName: name}
	}
}

// Trigger simulates an interrupt signal.
func (h *Handler) Trigger() {
	select {
	case h.sigChan <- syscall.SIGTERM:
	default:
	}
}

// TimeoutError is returned when a callback times out.
type TimeoutError struct {
	CallbackName string
}

func (e *TimeoutError) Error() string {
	return "shutdown callback timed out: " + e.CallbackName
}
