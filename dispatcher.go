package leafless

import (
	"fmt"
	"net/http"
	"time"

	"gitlab.com/leafless/leafless/internal/errortracking"
	"gitlab.com/leafless/leafless/internal/httperrors"
	"gitlab.com/leafless/leafless/internal/logging"
	"gitlab.com/leafless/leafless/metrics"
)

const (
	outcomeNotFound           = "not_found"
	outcomeMethodNotSupported = "method_not_supported"
	outcomeOK                 = "ok"
	outcomeFailed             = "failed"
)

// dispatcher is the request listener installed on every listener of a Server.
type dispatcher struct {
	router       *Router
	policy       FailurePolicy
	exit         ExitFunc
	maxBodyBytes int64
}

func (d *dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	match, ok := d.router.Resolve(r.URL.EscapedPath())
	if !ok {
		metrics.DispatchTotal.WithLabelValues(outcomeNotFound).Inc()
		httperrors.Serve404(w)
		return
	}

	method, ok := ParseMethod(r.Method)
	if !ok {
		metrics.DispatchTotal.WithLabelValues(outcomeMethodNotSupported).Inc()
		httperrors.Serve405(w)
		return
	}

	fn, ok := match.Handler.instance()[method]
	if !ok || fn == nil {
		metrics.DispatchTotal.WithLabelValues(outcomeMethodNotSupported).Inc()
		httperrors.Serve405(w)
		return
	}

	ctx := newContext(w, r, match, r.URL, d.maxBodyBytes)

	res, err := d.invoke(ctx, method, fn)
	if err != nil {
		d.fail(ctx, &HandlerError{Method: method, Path: r.URL.Path, Route: match.Template, Err: err})
		return
	}

	contentType, body, err := encodeResponse(res)
	if err != nil {
		d.fail(ctx, &HandlerError{Method: method, Path: r.URL.Path, Route: match.Template, Err: err})
		return
	}

	if !ctx.writer.wroteHeader && !validStatus(ctx.status) {
		d.fail(ctx, &HandlerError{Method: method, Path: r.URL.Path, Route: match.Template, Err: fmt.Errorf("%w: %d", ErrInvalidStatus, ctx.status)})
		return
	}

	metrics.DispatchTotal.WithLabelValues(outcomeOK).Inc()

	if ctx.writer.wroteHeader {
		if len(body) > 0 {
			ctx.Log().Warn("handler wrote to the response and returned a body, body discarded")
		}
		return
	}

	if err := writeResponse(w, ctx.status, contentType, body); err != nil {
		ctx.Log().WithError(err).Debug("writing response failed")
	}
}

// invoke runs fn in the request goroutine, turning a panic into an error.
func (d *dispatcher) invoke(ctx *Context, method Method, fn HandlerFunc) (res Response, err error) {
	start := time.Now()
	defer func() {
		metrics.HandlerDuration.WithLabelValues(method.String()).Observe(time.Since(start).Seconds())
	}()

	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, rec)
		}
	}()

	return fn(ctx)
}

func (d *dispatcher) fail(ctx *Context, herr *HandlerError) {
	metrics.DispatchTotal.WithLabelValues(outcomeFailed).Inc()
	metrics.HandlerFailures.Inc()

	r := ctx.Request()

	if d.policy == IsolateRequest {
		if ctx.writer.wroteHeader {
			logging.LogRequest(r).WithError(herr).Error("handler failed after writing the response")
			errortracking.CaptureErrWithReqAndStackTrace(herr, r)
			return
		}

		httperrors.Serve500WithRequest(ctx.writer, r, "handler failed", herr)
		return
	}

	logging.LogRequest(r).WithError(herr).WithField("route", herr.Route).Error("handler failed, exiting")
	errortracking.CaptureErrWithReqAndStackTrace(herr, r, errortracking.WithField("route", herr.Route))
	errortracking.Flush(errortracking.FlushTimeout)

	exit := d.exit
	if exit == nil {
		exit = defaultExit
	}
	exit(1)

	// only reached when exit returns, as in tests
	if !ctx.writer.wroteHeader {
		httperrors.Serve500(ctx.writer)
	}
}
