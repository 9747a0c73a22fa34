package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
)

// errShuttingDown is the cancellation cause of request work interrupted by
// server shutdown rather than by the client.
var errShuttingDown = errors.New("server shutting down")

type baseHolder struct{ ctx context.Context }

var baseCtx atomic.Pointer[baseHolder]

// SetBaseContext sets the process-level context whose cancellation aborts
// in-flight inference and lifecycle work. nil restores Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	baseCtx.Store(&baseHolder{ctx: ctx})
}

func baseContext() context.Context {
	if h := baseCtx.Load(); h != nil {
		return h.ctx
	}
	return context.Background()
}

// lifecycleContext is used for installs and removals: it survives client
// disconnects and ends only with the process.
func lifecycleContext() context.Context { return baseContext() }

// requestContext ends when either the client goes away or the base context is
// canceled. In the latter case context.Cause reports errShuttingDown.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return joinContexts(r.Context(), baseContext())
}

// joinContexts derives from req and additionally cancels when base is done.
func joinContexts(req, base context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(req)
	stop := context.AfterFunc(base, func() { cancel(errShuttingDown) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// shuttingDown reports whether ctx was canceled by the base context.
func shuttingDown(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), errShuttingDown)
}
