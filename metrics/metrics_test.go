package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsVectorsCanBeScraped(t *testing.T) {
	reg := prometheus.NewRegistry()

	// vectors will only be available in /metrics after a label has been set/incremented
	reg.MustRegister(
		DispatchTotal,
		HandlerDuration,
		StaticCacheRequests,
	)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	testServer := httptest.NewServer(handler)
	defer testServer.Close()

	DispatchTotal.WithLabelValues("ok").Inc()
	HandlerDuration.WithLabelValues("GET").Observe((20 * time.Millisecond).Seconds())
	StaticCacheRequests.WithLabelValues("static", "hit").Inc()

	c, err := DispatchTotal.GetMetricWithLabelValues("ok")
	require.NoError(t, err)
	require.GreaterOrEqual(t, testutil.ToFloat64(c), float64(1))

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, metricFamilies, 3)

	res, err := http.Get(testServer.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	require.Contains(t, string(body), `leafless_dispatch_total{outcome="ok"}`)
	require.Contains(t, string(body), `leafless_handler_duration_seconds_bucket{method="GET"`)
	require.Contains(t, string(body), `leafless_static_cache_requests_total{cache="hit",op="static"}`)
}

func TestMustRegisterIsIdempotent(t *testing.T) {
	require.NotPanics(t, MustRegister)
	require.NotPanics(t, MustRegister)
}

func TestHTTPMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	first := HTTPMiddleware(next)
	second := HTTPMiddleware(next)

	for _, h := range []http.Handler{first, second} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusTeapot, w.Code)
	}
}
