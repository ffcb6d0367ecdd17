package leafless

import (
	"crypto/tls"
	"net/http"
	"time"
)

// DefaultKeepAlive is the TCP keep-alive period of accepted connections
const DefaultKeepAlive = 3 * time.Minute

// Timeouts configures the underlying http.Server. Zero values mean no timeout.
type Timeouts struct {
	Read       time.Duration
	ReadHeader time.Duration
	Write      time.Duration
	Idle       time.Duration
}

type options struct {
	certificate    []byte
	key            []byte
	tlsConfig      *tls.Config
	failurePolicy  FailurePolicy
	exit           ExitFunc
	maxConns       int
	maxURILength   int
	accessLog      bool
	logFormat      string
	crossOrigin    bool
	propagateCorID bool
	timeouts       Timeouts
	keepAlive      time.Duration
	maxBodyBytes   int64
	customHeaders  http.Header
}

// Option configures a Server.
type Option func(*options)

func defaultOptions() options {
	return options{
		failurePolicy: FailFast,
		exit:          defaultExit,
		keepAlive:     DefaultKeepAlive,
		maxBodyBytes:  DefaultMaxBodyBytes,
	}
}

// WithTLS terminates TLS on Listen and ListenProxyV2 listeners using a PEM
// encoded certificate chain and private key.
func WithTLS(certificate, key []byte) Option {
	return func(o *options) {
		o.certificate = certificate
		o.key = key
	}
}

// WithTLSConfig is like WithTLS with a ready configuration. It takes
// precedence over WithTLS.
func WithTLSConfig(config *tls.Config) Option {
	return func(o *options) {
		o.tlsConfig = config
	}
}

// WithFailurePolicy sets what happens when a handler fails. FailFast is the default.
func WithFailurePolicy(policy FailurePolicy) Option {
	return func(o *options) {
		o.failurePolicy = policy
	}
}

// WithExitFunc replaces os.Exit for the FailFast policy.
func WithExitFunc(exit ExitFunc) Option {
	return func(o *options) {
		o.exit = exit
	}
}

// WithMaxConns limits the number of connections served at once across all
// listeners. Zero means no limit.
func WithMaxConns(n int) Option {
	return func(o *options) {
		o.maxConns = n
	}
}

// WithMaxURILength rejects longer request URIs with a 414.
func WithMaxURILength(n int) Option {
	return func(o *options) {
		o.maxURILength = n
	}
}

// WithAccessLog enables the access log in format ("json" or "text").
func WithAccessLog(format string) Option {
	return func(o *options) {
		o.accessLog = true
		o.logFormat = format
	}
}

// WithCrossOriginRequests allows cross origin GET and HEAD requests.
func WithCrossOriginRequests(enabled bool) Option {
	return func(o *options) {
		o.crossOrigin = enabled
	}
}

// WithCorrelationPropagation reuses the correlation id sent by clients
// instead of generating a new one.
func WithCorrelationPropagation(enabled bool) Option {
	return func(o *options) {
		o.propagateCorID = enabled
	}
}

func WithTimeouts(t Timeouts) Option {
	return func(o *options) {
		o.timeouts = t
	}
}

// WithKeepAlive sets the TCP keep-alive period, a negative value disables it.
func WithKeepAlive(period time.Duration) Option {
	return func(o *options) {
		o.keepAlive = period
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		o.maxBodyBytes = n
	}
}

// WithCustomHeaders adds headers to every response.
func WithCustomHeaders(headers http.Header) Option {
	return func(o *options) {
		o.customHeaders = headers
	}
}
