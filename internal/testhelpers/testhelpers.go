package testhelpers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// AssertHTTPResponse asserts handler answers method+url with the given status and exact body
func AssertHTTPResponse(t *testing.T, handler http.Handler, method, url string, status int, body string) *http.Response {
	t.Helper()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(method, url, nil))

	res := w.Result()
	Close(t, res.Body)

	require.Equal(t, status, res.StatusCode, "HTTP status")
	require.Equal(t, body, w.Body.String(), "HTTP body")

	return res
}

// AssertLogContains checks that wantLogEntry is contained in at least one of the log entries
func AssertLogContains(t *testing.T, wantLogEntry string, entries []*logrus.Entry) {
	t.Helper()

	if wantLogEntry != "" {
		messages := make([]string, len(entries))
		for k, entry := range entries {
			messages[k] = entry.Message
		}

		require.Contains(t, messages, wantLogEntry)
	}
}

// TmpDir creates a temporary directory populated with files, keys are
// slash separated paths relative to the directory
func TmpDir(tb testing.TB, files map[string]string) string {
	tb.Helper()

	// On some systems `/tmp` can be a symlink
	dir, err := filepath.EvalSymlinks(tb.TempDir())
	require.NoError(tb, err)

	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(tb, os.WriteFile(path, []byte(content), 0644))
	}

	return dir
}

// Close closes c and fails the test on error
func Close(t testing.TB, c io.Closer) {
	t.Helper()

	require.NoError(t, c.Close())
}
