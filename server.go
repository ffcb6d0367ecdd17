package leafless

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/cors"
	"gitlab.com/gitlab-org/labkit/correlation"
	"golang.org/x/sync/errgroup"

	"gitlab.com/leafless/leafless/internal/logging"
	"gitlab.com/leafless/leafless/internal/netutil"
	"gitlab.com/leafless/leafless/internal/static"
	"gitlab.com/leafless/leafless/internal/urilimiter"
	"gitlab.com/leafless/leafless/metrics"
)

// ErrServerClosed is returned by Listen and Serve after Shutdown
var ErrServerClosed = errors.New("server closed")

var corsHandler = cors.New(cors.Options{AllowedMethods: []string{http.MethodGet, http.MethodHead}})

// Server binds listeners and dispatches their requests to the registered
// routes. Every Server owns its routes, several of them can run in the same
// process.
type Server struct {
	opts       options
	router     *Router
	dispatcher *dispatcher
	handler    http.Handler
	tlsConfig  *tls.Config
	limiter    *netutil.Limiter

	mu      sync.Mutex
	closed  bool
	servers []*http.Server
	statics []*static.Directory
	group   errgroup.Group
}

// New returns a Server configured with opts. It fails when the TLS material
// can't be loaded.
func New(opts ...Option) (*Server, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		opts:   o,
		router: NewRouter(),
	}

	tlsConfig, err := o.tlsServerConfig()
	if err != nil {
		return nil, err
	}
	s.tlsConfig = tlsConfig

	if o.maxConns > 0 {
		s.limiter = netutil.NewLimiterWithMetrics(
			o.maxConns,
			metrics.LimitListenerMaxConns,
			metrics.LimitListenerConcurrentConns,
			metrics.LimitListenerWaitingConns,
		)
	}

	s.dispatcher = &dispatcher{
		router:       s.router,
		policy:       o.failurePolicy,
		exit:         o.exit,
		maxBodyBytes: o.maxBodyBytes,
	}

	handler, err := s.buildHandler()
	if err != nil {
		return nil, err
	}
	s.handler = handler

	return s, nil
}

func (o *options) tlsServerConfig() (*tls.Config, error) {
	if o.tlsConfig != nil {
		return o.tlsConfig, nil
	}

	if len(o.certificate) == 0 && len(o.key) == 0 {
		return nil, nil
	}

	cert, err := tls.X509KeyPair(o.certificate, o.key)
	if err != nil {
		return nil, fmt.Errorf("loading TLS key pair: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// buildHandler stacks the middlewares in front of the dispatcher, from the
// innermost to the outermost.
func (s *Server) buildHandler() (http.Handler, error) {
	var handler http.Handler = s.dispatcher

	if s.opts.crossOrigin {
		handler = corsHandler.Handler(handler)
	}

	if len(s.opts.customHeaders) > 0 {
		handler = customHeadersHandler(handler, s.opts.customHeaders)
	}

	handler = metrics.HTTPMiddleware(handler)
	handler = urilimiter.NewMiddleware(handler, s.opts.maxURILength)

	if s.opts.accessLog {
		var err error
		handler, err = logging.BasicAccessLogger(handler, s.opts.logFormat, nil)
		if err != nil {
			return nil, err
		}
	}

	var correlationOpts []correlation.InboundHandlerOption
	if s.opts.propagateCorID {
		correlationOpts = append(correlationOpts, correlation.WithPropagation())
	}

	return correlation.InjectCorrelationID(handler, correlationOpts...), nil
}

func customHeadersHandler(handler http.Handler, headers http.Header) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for name, values := range headers {
			for _, value := range values {
				w.Header().Add(name, value)
			}
		}

		handler.ServeHTTP(w, r)
	})
}

// Route registers handler under template. handler is a Handler, a Methods
// set shared by every request, or a func() Methods called for every request.
func (s *Server) Route(template string, handler interface{}) error {
	h, err := handlerOf(handler)
	if err != nil {
		return &RouteError{Template: template, Err: err}
	}

	return s.Handle(template, h)
}

// Handle registers handler under template.
func (s *Server) Handle(template string, handler Handler) error {
	added, err := s.router.register(template, handler)
	if err != nil {
		return err
	}

	if added {
		metrics.RoutesRegistered.Inc()
	}

	return nil
}

// Routes returns the registered templates in registration order.
func (s *Server) Routes() []string {
	return s.router.Routes()
}

// Handler returns the request listener with every configured middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Listen binds address and serves it in the background, over TLS when the
// Server was configured with it. The returned listener reports the bound
// address.
func (s *Server) Listen(network, address string) (net.Listener, error) {
	return s.listen(network, address, listenerDefault)
}

// ListenInsecure is like Listen but never serves TLS.
func (s *Server) ListenInsecure(network, address string) (net.Listener, error) {
	return s.listen(network, address, listenerInsecure)
}

// ListenProxy is like ListenInsecure for listeners behind a reverse proxy:
// the X-Forwarded-* headers set by the proxy are trusted.
func (s *Server) ListenProxy(network, address string) (net.Listener, error) {
	return s.listen(network, address, listenerProxy)
}

// ListenProxyV2 is like Listen for listeners behind a load balancer speaking
// the PROXY protocol version 2. Connections without a PROXY header are
// rejected.
func (s *Server) ListenProxyV2(network, address string) (net.Listener, error) {
	return s.listen(network, address, listenerProxyV2)
}

func (s *Server) listen(network, address string, kind listenerKind) (net.Listener, error) {
	l, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s %s: %w", network, address, err)
	}

	srv, wrapped, err := s.prepare(l, kind)
	if err != nil {
		l.Close()
		return nil, err
	}

	s.group.Go(func() error {
		return serve(srv, wrapped)
	})

	return l, nil
}

// Serve accepts connections on l until Shutdown is called. It always returns
// a non-nil error.
func (s *Server) Serve(l net.Listener) error {
	srv, wrapped, err := s.prepare(l, listenerDefault)
	if err != nil {
		return err
	}

	if err := serve(srv, wrapped); err != nil {
		return err
	}

	return ErrServerClosed
}

func serve(srv *http.Server, l net.Listener) error {
	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

func (s *Server) prepare(l net.Listener, kind listenerKind) (*http.Server, net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, ErrServerClosed
	}

	srv := s.newHTTPServer(kind)
	s.servers = append(s.servers, srv)

	return srv, s.wrapListener(l, kind), nil
}

// Wait blocks until every listener opened with Listen stopped and returns
// the first serving error.
func (s *Server) Wait() error {
	return s.group.Wait()
}

// Shutdown stops every listener and waits for in-flight requests, or for ctx
// to be done. Static directory caches are released last.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	servers := s.servers
	s.servers = nil
	statics := s.statics
	s.statics = nil
	s.mu.Unlock()

	var result *multierror.Error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}

	for _, dir := range statics {
		dir.Close()
	}

	return result.ErrorOrNil()
}
