package httperrors

import (
	"net/http"

	"gitlab.com/leafless/leafless/internal/errortracking"
	"gitlab.com/leafless/leafless/internal/logging"
)

type content struct {
	status int
	body   string
}

var (
	content404 = content{http.StatusNotFound, "Not Found"}
	content405 = content{http.StatusMethodNotAllowed, "Method Not Supported"}
	content414 = content{http.StatusRequestURITooLong, "Request URI Too Long"}
	content500 = content{http.StatusInternalServerError, "Internal Server Error"}
)

// serveErrorPage writes the literal body of c. The body is never followed
// by a newline so that clients can compare it byte for byte.
func serveErrorPage(w http.ResponseWriter, c content) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(c.status)
	w.Write([]byte(c.body))
}

// Serve404 returns a 404 "Not Found" response to the http.ResponseWriter
func Serve404(w http.ResponseWriter) {
	serveErrorPage(w, content404)
}

// Serve405 returns a 405 "Method Not Supported" response to the http.ResponseWriter
func Serve405(w http.ResponseWriter) {
	serveErrorPage(w, content405)
}

// Serve414 returns a 414 response to the http.ResponseWriter
func Serve414(w http.ResponseWriter) {
	serveErrorPage(w, content414)
}

// Serve500 returns a 500 response to the http.ResponseWriter
func Serve500(w http.ResponseWriter) {
	serveErrorPage(w, content500)
}

// Serve500WithRequest logs and reports err before returning a 500 response
func Serve500WithRequest(w http.ResponseWriter, r *http.Request, reason string, err error) {
	logging.LogRequest(r).WithError(err).Error(reason)
	errortracking.CaptureErrWithReqAndStackTrace(err, r)
	serveErrorPage(w, content500)
}
