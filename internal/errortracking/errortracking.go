package errortracking

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"gitlab.com/gitlab-org/labkit/errortracking"
)

// FlushTimeout bounds how long Flush waits for pending reports
const FlushTimeout = 2 * time.Second

// CaptureOption alias to avoid importing labkit/errortracking in other packages
type CaptureOption = errortracking.CaptureOption

// WithField alias to avoid importing labkit/errortracking in other packages
func WithField(key, value string) CaptureOption {
	return errortracking.WithField(key, value)
}

// Initialize configures the crash reporting client. An empty dsn keeps
// reporting disabled.
func Initialize(dsn, environment, version, revision string) error {
	if dsn == "" {
		return nil
	}

	return errortracking.Initialize(
		errortracking.WithSentryDSN(dsn),
		errortracking.WithVersion(fmt.Sprintf("%s-%s", version, revision)),
		errortracking.WithLoggerName("leafless"),
		errortracking.WithSentryEnvironment(environment),
	)
}

// CaptureErrWithReqAndStackTrace calls labkit's errortracking function and attaches the request, stack trace and any additional fields
func CaptureErrWithReqAndStackTrace(err error, r *http.Request, fields ...CaptureOption) {
	opts := append(
		fields,
		errortracking.WithContext(r.Context()),
		errortracking.WithRequest(r),
		errortracking.WithStackTrace(),
	)

	errortracking.Capture(err, opts...)
}

// CaptureErrWithStackTrace calls labkit's errortracking function and attaches the stack trace and any additional fields
func CaptureErrWithStackTrace(err error, fields ...CaptureOption) {
	opts := append(
		fields,
		errortracking.WithStackTrace(),
	)

	errortracking.Capture(err, opts...)
}

// Flush waits up to timeout for captured errors to be delivered. It must run
// before the process exits, reports are sent in the background. It returns
// false on timeout or when reporting is disabled.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
