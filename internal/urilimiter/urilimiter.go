package urilimiter

import (
	"net/http"

	"gitlab.com/leafless/leafless/internal/httperrors"
	"gitlab.com/leafless/leafless/internal/logging"
)

// NewMiddleware rejects requests whose URI is longer than limit with a 414
// before they reach the router. A zero limit disables the check.
func NewMiddleware(handler http.Handler, limit int) http.Handler {
	if limit <= 0 {
		return handler
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.RequestURI) > limit {
			logging.LogRequest(r).WithField("uri_length", len(r.RequestURI)).Debug("request URI too long")
			httperrors.Serve414(w)

			return
		}

		handler.ServeHTTP(w, r)
	})
}
