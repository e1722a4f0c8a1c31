package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newHandler(t *testing.T) *Handler {
	t.Helper()
	h := New(context.Background(), DefaultConfig())
	t.Cleanup(func() { h.Shutdown() })
	return h
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
	if len(cfg.Signals) != 2 {
		t.Errorf("Signals length = %d, want 2", len(cfg.Signals))
	}
}

func TestNew_FillsDefaults(t *testing.T) {
	h := New(context.Background(), Config{})
	defer h.Shutdown()

	if h.timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", h.timeout)
	}
	if h.log == nil {
		t.Error("logger should default to a no-op logger")
	}
}

func TestHandler_CallbacksRunInReverseOrder(t *testing.T) {
	h := newHandler(t)
	var order []string

	h.Register("first", func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	h.RegisterFunc("second", func() error {
		order = append(order, "second")
		return nil
	})

	if errs := h.Shutdown(); len(errs) != 0 {
		t.Fatalf("Shutdown() errors = %v", errs)
	}
	<-h.Done()

	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("order = %v, want [second first]", order)
	}
}

func TestHandler_ShutdownOnce(t *testing.T) {
	h := newHandler(t)
	calls := 0
	h.RegisterFunc("release", func() error {
		calls++
		return nil
	})

	h.Shutdown()
	h.Shutdown()

	if calls != 1 {
		t.Errorf("callback ran %d times, want 1", calls)
	}
	if !h.IsShuttingDown() {
		t.Error("Should be shutting down after Shutdown()")
	}
}

func TestHandler_CallbackErrors(t *testing.T) {
	h := newHandler(t)
	boom := errors.New("close failed")
	h.RegisterFunc("session", func() error { return boom })

	errs := h.Shutdown()
	if len(errs) != 1 || !errors.Is(errs[0], boom) {
		t.Errorf("Shutdown() errors = %v", errs)
	}
}

func TestHandler_CallbackTimeout(t *testing.T) {
	h := New(context.Background(), Config{Timeout: 20 * time.Millisecond})
	h.Register("slow", func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	errs := h.Shutdown()
	if len(errs) != 1 {
		t.Fatalf("Shutdown() errors = %v, want one timeout", errs)
	}
	var te *TimeoutError
	if !errors.As(errs[0], &te) || te.CallbackName != "slow" {
		t.Errorf("error = %v, want TimeoutError for slow", errs[0])
	}
}

func TestHandler_ContextCancelledByShutdown(t *testing.T) {
	h := newHandler(t)
	ctx := h.Context()

	select {
	case <-ctx.Done():
		t.Fatal("Context should not be done initially")
	default:
	}

	h.Shutdown()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("Context should be done after shutdown")
	}
}

func TestHandler_TriggerCancelsContext(t *testing.T) {
	h := newHandler(t)

	h.Trigger()

	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("Trigger should cancel the context")
	}
	if !h.Interrupted() {
		t.Error("Interrupted() should report the cancellation")
	}
	if h.IsShuttingDown() {
		t.Error("a signal cancels work but leaves cleanup to Shutdown")
	}
}

func TestHandler_ParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	h := New(parent, DefaultConfig())
	defer h.Shutdown()

	cancel()

	select {
	case <-h.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("parent cancellation should propagate")
	}
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{CallbackName: "browser"}
	if err.Error() != "shutdown callback timed out: browser" {
		t.Errorf("Error() = %q", err.Error())
	}
}
