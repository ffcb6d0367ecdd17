package logging

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	testlog "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gitlab.com/gitlab-org/labkit/correlation"
	"gitlab.com/gitlab-org/labkit/log"
)

func TestEnrichExtraFields(t *testing.T) {
	tests := map[string]struct {
		tls   bool
		extra log.ExtraFieldsGeneratorFunc
	}{
		"https": {tls: true},
		"http":  {tls: false},
		"with_extra_fields": {
			extra: func(r *http.Request) log.Fields {
				return log.Fields{"leafless_route": "/:tool/:path"}
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://example.com/hammer/build", nil)
			if tc.tls {
				req.TLS = &tls.ConnectionState{}
			}
			req = req.WithContext(correlation.ContextWithCorrelation(req.Context(), "abc123"))

			got := enrichExtraFields(tc.extra)(req)
			require.Equal(t, tc.tls, got["leafless_https"])
			require.Equal(t, "example.com", got["leafless_host"])
			require.Equal(t, "abc123", got["correlation_id"])

			if tc.extra != nil {
				require.Equal(t, "/:tool/:path", got["leafless_route"])
			}
		})
	}
}

func TestLogRequest(t *testing.T) {
	hook := testlog.NewGlobal()

	req := httptest.NewRequest(http.MethodGet, "http://example.com/some/path", nil)
	LogRequest(req).Info("hello")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, "hello", entry.Message)
	require.Equal(t, "example.com", entry.Data["host"])
	require.Equal(t, "/some/path", entry.Data["path"])
}

func TestGetAccessLogger(t *testing.T) {
	logger, err := getAccessLogger("json")
	require.NoError(t, err)
	require.Same(t, logrus.StandardLogger(), logger)

	textLogger, err := getAccessLogger("text")
	require.NoError(t, err)
	require.NotSame(t, logger, textLogger)
}
