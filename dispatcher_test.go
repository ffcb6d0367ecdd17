package leafless

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	testlog "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"gitlab.com/leafless/leafless/internal/errortracking"
	"gitlab.com/leafless/leafless/internal/testhelpers"
	"gitlab.com/leafless/leafless/metrics"
)

var errBroken = errors.New("broken tool")

type exitRecorder struct {
	codes []int
}

func (e *exitRecorder) exit(code int) {
	e.codes = append(e.codes, code)
}

func newTestDispatcher(t *testing.T, policy FailurePolicy, routes map[string]interface{}) (*dispatcher, *exitRecorder) {
	t.Helper()

	router := NewRouter()
	for template, v := range routes {
		h, err := handlerOf(v)
		require.NoError(t, err)
		require.NoError(t, router.Register(template, h))
	}

	exits := &exitRecorder{}

	return &dispatcher{router: router, policy: policy, exit: exits.exit}, exits
}

func TestDispatcher(t *testing.T) {
	d, exits := newTestDispatcher(t, FailFast, map[string]interface{}{
		"/:tool/:path": Methods{
			GET: func(ctx *Context) (Response, error) {
				return JSON(ctx.Params()), nil
			},
		},
		"/json": Methods{
			GET: func(*Context) (Response, error) {
				return JSON(map[string]int{"a": 1}), nil
			},
		},
		"/typed": Methods{
			GET: func(*Context) (Response, error) {
				return Typed("text/plain", []byte("hi")), nil
			},
		},
		"/empty": Methods{
			DELETE: func(*Context) (Response, error) {
				return Empty(), nil
			},
		},
		"/nil": Methods{
			GET: func(*Context) (Response, error) {
				return nil, nil
			},
		},
		"/created": Methods{
			POST: func(ctx *Context) (Response, error) {
				ctx.Status(http.StatusCreated)
				ctx.Header().Set("Location", "/created/1")
				return Text("made"), nil
			},
		},
		"/raw": Methods{
			GET: func(ctx *Context) (Response, error) {
				w := ctx.Response()
				w.Header().Set("Content-Type", "text/csv")
				w.WriteHeader(http.StatusPartialContent)
				w.Write([]byte("a,b"))
				return Empty(), nil
			},
		},
	})

	tests := map[string]struct {
		method              string
		url                 string
		expectedStatus      int
		expectedBody        string
		expectedContentType string
		expectedHeaders     map[string]string
	}{
		"captures_in_template_order": {
			method:              http.MethodGet,
			url:                 "/hammer/build",
			expectedStatus:      http.StatusOK,
			expectedBody:        `{"tool":"hammer","path":"build"}`,
			expectedContentType: "application/json",
		},
		"json": {
			method:              http.MethodGet,
			url:                 "/json",
			expectedStatus:      http.StatusOK,
			expectedBody:        `{"a":1}`,
			expectedContentType: "application/json",
		},
		"typed": {
			method:              http.MethodGet,
			url:                 "/typed",
			expectedStatus:      http.StatusOK,
			expectedBody:        "hi",
			expectedContentType: "text/plain",
		},
		"empty": {
			method:         http.MethodDelete,
			url:            "/empty",
			expectedStatus: http.StatusOK,
		},
		"nil_response": {
			method:         http.MethodGet,
			url:            "/nil",
			expectedStatus: http.StatusOK,
		},
		"explicit_status_and_headers": {
			method:          http.MethodPost,
			url:             "/created",
			expectedStatus:  http.StatusCreated,
			expectedBody:    "made",
			expectedHeaders: map[string]string{"Location": "/created/1"},
		},
		"raw_write_kept": {
			method:              http.MethodGet,
			url:                 "/raw",
			expectedStatus:      http.StatusPartialContent,
			expectedBody:        "a,b",
			expectedContentType: "text/csv",
		},
		"not_found": {
			method:              http.MethodGet,
			url:                 "/a/b/c",
			expectedStatus:      http.StatusNotFound,
			expectedBody:        "Not Found",
			expectedContentType: "text/plain; charset=utf-8",
		},
		"method_not_registered": {
			method:              http.MethodPost,
			url:                 "/json",
			expectedStatus:      http.StatusMethodNotAllowed,
			expectedBody:        "Method Not Supported",
			expectedContentType: "text/plain; charset=utf-8",
		},
		"method_outside_enumeration": {
			method:         "BREW",
			url:            "/json",
			expectedStatus: http.StatusMethodNotAllowed,
			expectedBody:   "Method Not Supported",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			res := testhelpers.AssertHTTPResponse(t, d, tt.method, tt.url, tt.expectedStatus, tt.expectedBody)
			if tt.expectedContentType != "" {
				require.Equal(t, tt.expectedContentType, res.Header.Get("Content-Type"))
			}
			for name, value := range tt.expectedHeaders {
				require.Equal(t, value, res.Header.Get(name))
			}
		})
	}

	require.Empty(t, exits.codes)
}

func TestDispatcherEmptyResponseSetsNoContentType(t *testing.T) {
	d, _ := newTestDispatcher(t, FailFast, map[string]interface{}{
		"/empty": Methods{GET: noop},
	})

	w := httptest.NewRecorder()
	d.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/empty", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get("Content-Type"))
	require.Zero(t, w.Body.Len())
}

func TestDispatcherFactoryInstancePerRequest(t *testing.T) {
	var instances int32

	d, _ := newTestDispatcher(t, FailFast, map[string]interface{}{
		"/counter": func() Methods {
			atomic.AddInt32(&instances, 1)

			calls := 0
			return Methods{
				GET: func(*Context) (Response, error) {
					calls++
					return JSON(calls), nil
				},
			}
		},
	})

	for i := 0; i < 3; i++ {
		testhelpers.AssertHTTPResponse(t, d, http.MethodGet, "/counter", http.StatusOK, "1")
	}

	require.Equal(t, int32(3), atomic.LoadInt32(&instances))
}

func TestDispatcherSharedInstance(t *testing.T) {
	calls := 0
	d, _ := newTestDispatcher(t, FailFast, map[string]interface{}{
		"/counter": Methods{
			GET: func(*Context) (Response, error) {
				calls++
				return JSON(calls), nil
			},
		},
	})

	testhelpers.AssertHTTPResponse(t, d, http.MethodGet, "/counter", http.StatusOK, "1")
	testhelpers.AssertHTTPResponse(t, d, http.MethodGet, "/counter", http.StatusOK, "2")
}

func TestDispatcherFactoryMissingMethod(t *testing.T) {
	d, _ := newTestDispatcher(t, FailFast, map[string]interface{}{
		"/nothing": func() Methods { return nil },
	})

	testhelpers.AssertHTTPResponse(t, d, http.MethodGet, "/nothing", http.StatusMethodNotAllowed, "Method Not Supported")
}

func TestDispatcherHandlerFailure(t *testing.T) {
	failing := map[string]interface{}{
		"/error": Methods{
			GET: func(*Context) (Response, error) {
				return nil, errBroken
			},
		},
		"/panic": Methods{
			GET: func(*Context) (Response, error) {
				panic("boom")
			},
		},
		"/encode": Methods{
			GET: func(*Context) (Response, error) {
				return JSON(func() {}), nil
			},
		},
		"/status": Methods{
			GET: func(ctx *Context) (Response, error) {
				ctx.Status(1000)
				return Text("x"), nil
			},
		},
		"/late": Methods{
			GET: func(ctx *Context) (Response, error) {
				ctx.Response().WriteHeader(http.StatusAccepted)
				return nil, errBroken
			},
		},
	}

	tests := map[string]struct {
		policy         FailurePolicy
		url            string
		expectedStatus int
		expectedBody   string
		expectedExits  []int
		expectedErr    error
	}{
		"fail_fast_exits_on_error": {
			policy:         FailFast,
			url:            "/error",
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "Internal Server Error",
			expectedExits:  []int{1},
			expectedErr:    errBroken,
		},
		"fail_fast_exits_on_panic": {
			policy:         FailFast,
			url:            "/panic",
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "Internal Server Error",
			expectedExits:  []int{1},
			expectedErr:    ErrHandlerPanic,
		},
		"fail_fast_exits_on_encoding_error": {
			policy:         FailFast,
			url:            "/encode",
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "Internal Server Error",
			expectedExits:  []int{1},
		},
		"fail_fast_exits_on_invalid_status": {
			policy:         FailFast,
			url:            "/status",
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "Internal Server Error",
			expectedExits:  []int{1},
			expectedErr:    ErrInvalidStatus,
		},
		"isolate_answers_500_on_invalid_status": {
			policy:         IsolateRequest,
			url:            "/status",
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "Internal Server Error",
			expectedErr:    ErrInvalidStatus,
		},
		"isolate_answers_500": {
			policy:         IsolateRequest,
			url:            "/error",
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "Internal Server Error",
			expectedErr:    errBroken,
		},
		"isolate_recovers_panic": {
			policy:         IsolateRequest,
			url:            "/panic",
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "Internal Server Error",
			expectedErr:    ErrHandlerPanic,
		},
		"isolate_keeps_written_response": {
			policy:         IsolateRequest,
			url:            "/late",
			expectedStatus: http.StatusAccepted,
			expectedErr:    errBroken,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			hook := testlog.NewGlobal()
			t.Cleanup(hook.Reset)

			d, exits := newTestDispatcher(t, tt.policy, failing)

			failuresBefore := testutil.ToFloat64(metrics.HandlerFailures)

			testhelpers.AssertHTTPResponse(t, d, http.MethodGet, tt.url, tt.expectedStatus, tt.expectedBody)

			require.Equal(t, tt.expectedExits, exits.codes)
			require.Equal(t, failuresBefore+1, testutil.ToFloat64(metrics.HandlerFailures))

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			require.Equal(t, logrus.ErrorLevel, entry.Level)

			err, ok := entry.Data[logrus.ErrorKey].(error)
			require.True(t, ok)

			var herr *HandlerError
			require.True(t, errors.As(err, &herr))
			require.Equal(t, GET, herr.Method)
			require.Equal(t, tt.url, herr.Path)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
			}
		})
	}
}

func TestDispatcherMetrics(t *testing.T) {
	d, _ := newTestDispatcher(t, FailFast, map[string]interface{}{
		"/ok": Methods{GET: noop},
	})

	okBefore := testutil.ToFloat64(metrics.DispatchTotal.WithLabelValues(outcomeOK))
	notFoundBefore := testutil.ToFloat64(metrics.DispatchTotal.WithLabelValues(outcomeNotFound))
	notSupportedBefore := testutil.ToFloat64(metrics.DispatchTotal.WithLabelValues(outcomeMethodNotSupported))

	testhelpers.AssertHTTPResponse(t, d, http.MethodGet, "/ok", http.StatusOK, "")
	testhelpers.AssertHTTPResponse(t, d, http.MethodGet, "/missing", http.StatusNotFound, "Not Found")
	testhelpers.AssertHTTPResponse(t, d, http.MethodPut, "/ok", http.StatusMethodNotAllowed, "Method Not Supported")

	require.Equal(t, okBefore+1, testutil.ToFloat64(metrics.DispatchTotal.WithLabelValues(outcomeOK)))
	require.Equal(t, notFoundBefore+1, testutil.ToFloat64(metrics.DispatchTotal.WithLabelValues(outcomeNotFound)))
	require.Equal(t, notSupportedBefore+1, testutil.ToFloat64(metrics.DispatchTotal.WithLabelValues(outcomeMethodNotSupported)))
}

func TestDispatcherFailFastReportsBeforeExit(t *testing.T) {
	var received int32
	sentryServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer sentryServer.Close()

	dsn := strings.Replace(sentryServer.URL, "http://", "http://public@", 1) + "/1"
	require.NoError(t, errortracking.Initialize(dsn, "test", "dev", "HEAD"))
	t.Cleanup(func() {
		require.NoError(t, sentry.Init(sentry.ClientOptions{}))
	})

	var receivedAtExit []int32
	router := NewRouter()
	require.NoError(t, router.Register("/error", Shared{
		GET: func(*Context) (Response, error) {
			return nil, errBroken
		},
	}))

	d := &dispatcher{
		router: router,
		policy: FailFast,
		exit: func(code int) {
			receivedAtExit = append(receivedAtExit, atomic.LoadInt32(&received))
		},
	}

	testhelpers.AssertHTTPResponse(t, d, http.MethodGet, "/error", http.StatusInternalServerError, "Internal Server Error")
	require.Equal(t, []int32{1}, receivedAtExit)
}
