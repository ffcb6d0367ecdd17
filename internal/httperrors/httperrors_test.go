package httperrors

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	testlog "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestServeErrorPages(t *testing.T) {
	tests := map[string]struct {
		serve          func(http.ResponseWriter)
		expectedStatus int
		expectedBody   string
	}{
		"404": {serve: Serve404, expectedStatus: http.StatusNotFound, expectedBody: "Not Found"},
		"405": {serve: Serve405, expectedStatus: http.StatusMethodNotAllowed, expectedBody: "Method Not Supported"},
		"414": {serve: Serve414, expectedStatus: http.StatusRequestURITooLong, expectedBody: "Request URI Too Long"},
		"500": {serve: Serve500, expectedStatus: http.StatusInternalServerError, expectedBody: "Internal Server Error"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tc.serve(w)

			require.Equal(t, tc.expectedStatus, w.Code)
			require.Equal(t, tc.expectedBody, w.Body.String())
			require.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
			require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestServe500WithRequestLogsError(t *testing.T) {
	hook := testlog.NewGlobal()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/broken", nil)

	Serve500WithRequest(w, r, "handler failed", errors.New("boom"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "Internal Server Error", w.Body.String())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, "handler failed", entry.Message)
	require.Equal(t, "/broken", entry.Data["path"])
}
