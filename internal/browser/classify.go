package browser

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"

	"github.com/PentesterFlow/storescrape/internal/errors"
)

// Message fragments Chromium uses when a context is invalidated under a call.
// Only this file looks at error text; everything downstream inspects Kind.
var transientMessages = []struct {
	fragment string
	kind     errors.Kind
}{
	{"execution context was destroyed", errors.ContextDestroyed},
	{"cannot find context with specified id", errors.ContextDestroyed},
	{"inspected target navigated or closed", errors.ContextDestroyed},
	{"detached", errors.FrameDetached},
	{"target closed", errors.TargetClosed},
	{"no target with given id", errors.TargetClosed},
	{"session closed", errors.SessionClosed},
	{"session with given id not found", errors.SessionClosed},
	{"websocket: close", errors.SessionClosed},
	{"use of closed network connection", errors.SessionClosed},
}

// classify maps a raw rod/cdp failure into a RemoteError exactly once.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var remote *errors.RemoteError
	if stderrors.As(err, &remote) {
		return err
	}
	return errors.NewRemoteError(kindOf(err), op, err)
}

func kindOf(err error) errors.Kind {
	switch {
	case stderrors.Is(err, context.Canceled):
		return errors.Cancelled
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Timeout
	case stderrors.Is(err, cdp.ErrCtxDestroyed), stderrors.Is(err, cdp.ErrCtxNotFound):
		return errors.ContextDestroyed
	case stderrors.Is(err, cdp.ErrSessionNotFound):
		return errors.SessionClosed
	}

	var navErr *rod.ErrNavigation
	if stderrors.As(err, &navErr) {
		return errors.Unknown
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m.fragment) {
			return m.kind
		}
	}
	return errors.Unknown
}
