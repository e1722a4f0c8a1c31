package browser

import (
	"context"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/PentesterFlow/storescrape/internal/errors"
	"github.com/PentesterFlow/storescrape/internal/logger"
)

// Session wraps a Rod browser instance and hands out execution contexts.
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	config   Config
	log      *logger.Logger

	mu         sync.Mutex
	generation int
	closed     bool
}

// NewSession launches (or attaches to) a browser.
func NewSession(config Config, log *logger.Logger) (*Session, error) {
	if log == nil {
		log = logger.Nop()
	}

	var l *launcher.Launcher
	controlURL := config.ControlURL
	if controlURL == "" {
		l = launcher.New().Headless(config.Headless)
		if config.NoSandbox {
			l = l.NoSandbox(true)
		}
		if config.Bin != "" {
			l = l.Bin(config.Bin)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, errors.NewSessionFailure("launch", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, errors.NewSessionFailure("connect", err)
	}

	log.WithField("control_url", controlURL).Debug("Browser session ready")

	return &Session{
		browser:  b,
		launcher: l,
		config:   config,
		log:      log.WithComponent("session"),
	}, nil
}

// NewContext opens a fresh tab with the desktop identity applied.
func (s *Session) NewContext(ctx context.Context) (ExecutionContext, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.NewSessionFailure("new_context",
			errors.NewRemoteError(errors.SessionClosed, "new_context", nil))
	}
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, errors.NewSessionFailure("new_context", classify("new_context", err))
	}
	page = page.Context(context.Background())

	if err := s.applyIdentity(page); err != nil {
		_ = page.Close()
		return nil, errors.NewSessionFailure("identity", classify("identity", err))
	}

	s.log.WithGeneration(gen).Debug("Execution context created")
	return &rodContext{page: page, gen: gen}, nil
}

func (s *Session) applyIdentity(page *rod.Page) error {
	if s.config.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			return err
		}
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.config.UserAgent}); err != nil {
		return err
	}
	return page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  s.config.ViewportWidth,
		Height: s.config.ViewportHeight,
	})
}

// Close releases the browser. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.browser.Close()
	if s.launcher != nil {
		s.launcher.Kill()
	}
	return err
}
