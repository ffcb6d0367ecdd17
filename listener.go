package leafless

import (
	"crypto/tls"
	stdlog "log"
	"net"
	"net/http"

	ghandlers "github.com/gorilla/handlers"
	proxyproto "github.com/pires/go-proxyproto"
	"github.com/sirupsen/logrus"

	"gitlab.com/leafless/leafless/internal/netutil"
)

type listenerKind int

const (
	listenerDefault listenerKind = iota
	listenerInsecure
	listenerProxy
	listenerProxyV2
)

func (k listenerKind) String() string {
	switch k {
	case listenerInsecure:
		return "insecure"
	case listenerProxy:
		return "proxy"
	case listenerProxyV2:
		return "proxyv2"
	}

	return "default"
}

// servesTLS reports whether connections of a listener of kind k are
// terminated with TLS when the Server has a TLS configuration. Plain
// reverse proxies terminate TLS themselves.
func (k listenerKind) servesTLS() bool {
	return k == listenerDefault || k == listenerProxyV2
}

func (s *Server) newHTTPServer(kind listenerKind) *http.Server {
	handler := s.handler
	if kind == listenerProxy {
		handler = ghandlers.ProxyHeaders(handler)
	}

	return &http.Server{
		Handler:           handler,
		TLSConfig:         s.tlsConfig,
		ReadTimeout:       s.opts.timeouts.Read,
		ReadHeaderTimeout: s.opts.timeouts.ReadHeader,
		WriteTimeout:      s.opts.timeouts.Write,
		IdleTimeout:       s.opts.timeouts.Idle,
		ErrorLog:          stdlog.New(logrus.StandardLogger().WriterLevel(logrus.ErrorLevel), "", 0),
	}
}

// wrapListener applies, in order, the connection limit, TCP keep-alive, the
// PROXY protocol and TLS.
func (s *Server) wrapListener(l net.Listener, kind listenerKind) net.Listener {
	if s.limiter != nil {
		l = netutil.SharedLimitListener(l, s.limiter)
	}

	l = netutil.KeepAliveListener(l, s.opts.keepAlive)

	if kind == listenerProxyV2 {
		l = &proxyproto.Listener{
			Listener: l,
			Policy: func(upstream net.Addr) (proxyproto.Policy, error) {
				return proxyproto.REQUIRE, nil
			},
		}
	}

	useTLS := s.tlsConfig != nil && kind.servesTLS()
	if useTLS {
		l = tls.NewListener(l, s.tlsConfig)
	}

	logrus.WithFields(logrus.Fields{
		"listener": kind.String(),
		"address":  l.Addr().String(),
		"tls":      useTLS,
	}).Info("serving")

	return l
}
