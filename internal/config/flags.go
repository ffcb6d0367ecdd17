package config

import (
	"time"

	"github.com/namsral/flag"

	"gitlab.com/leafless/leafless/internal/config/tls"
)

var (
	rootCert        = flag.String("root-cert", "", "The path to the PEM certificate served on HTTPS listeners")
	rootKey         = flag.String("root-key", "", "The path to the PEM private key served on HTTPS listeners")
	insecureCiphers = flag.Bool("insecure-ciphers", false, "Use default list of cipher suites, may contain insecure ones like 3DES and RC4")
	tlsMinVersion   = flag.String("tls-min-version", "tls1.2", tls.FlagUsage("min"))
	tlsMaxVersion   = flag.String("tls-max-version", "", tls.FlagUsage("max"))

	staticRoot        = flag.String("static-root", "", "The directory whose files are served, empty to serve no static files")
	staticURLPath     = flag.String("static-url-path", "/", "The url path static files are served under")
	staticIndex       = flag.String("static-index", "index.html", "The file also served at the path of its directory, '-' to disable")
	staticDotfiles    = flag.Bool("static-dotfiles", false, "Serve files and directories whose name starts with a dot")
	staticMaxAge      = flag.Duration("static-max-age", 0, "The max-age of the Cache-Control header of static files, 0 to omit the header")
	staticCacheSize   = flag.Int64("static-cache-size", 1000, "The number of small static files kept in memory, 0 to disable the cache")
	staticCacheExpiry = flag.Duration("static-cache-expiry", time.Minute, "The maximum time a static file is kept in memory")

	statusPath   = flag.String("status-path", "", "The url path of a JSON status route, e.g., /@status")
	maxConns     = flag.Int("max-conns", 0, "Limit on the number of concurrent connections to the HTTP, HTTPS or proxy listeners, 0 for no limit")
	maxURILength = flag.Int("max-uri-length", 1024, "Limit the length of URI, 0 for unlimited.")
	maxBodyBytes = flag.Int64("max-body-bytes", 10<<20, "Limit the size of request bodies read by handlers")

	logFormat      = flag.String("log-format", "json", "The log output format: 'text' or 'json'")
	logVerbose     = flag.Bool("log-verbose", false, "Verbose logging")
	metricsAddress = flag.String("metrics-address", "", "The address to listen on for metrics requests")

	sentryDSN         = flag.String("sentry-dsn", "", "The address for sending sentry crash reporting to")
	sentryEnvironment = flag.String("sentry-environment", "", "The environment for sentry crash reporting")

	propagateCorrelationID     = flag.Bool("propagate-correlation-id", false, "Reuse existing Correlation-ID from the incoming request header `X-Request-ID` if present")
	disableCrossOriginRequests = flag.Bool("disable-cross-origin-requests", false, "Disable cross-origin requests")
	handlerFailure             = flag.String("handler-failure", "exit", "What to do when a handler fails: 'exit' the process or 'isolate' the request with a 500")

	// HTTP server timeouts
	serverReadTimeout       = flag.Duration("server-read-timeout", 5*time.Second, "ReadTimeout is the maximum duration for reading the entire request, including the body. A zero or negative value means there will be no timeout.")
	serverReadHeaderTimeout = flag.Duration("server-read-header-timeout", time.Second, "ReadHeaderTimeout is the amount of time allowed to read request headers. A zero or negative value means there will be no timeout.")
	serverWriteTimeout      = flag.Duration("server-write-timeout", 0, "WriteTimeout is the maximum duration before timing out writes of the response. A zero or negative value means there will be no timeout.")
	serverKeepAlive         = flag.Duration("server-keep-alive", 15*time.Second, "KeepAlive specifies the keep-alive period for network connections accepted by this listener. If zero, keep-alives are enabled if supported by the protocol and operating system. If negative, keep-alives are disabled.")
	serverShutdownTimeout   = flag.Duration("server-shutdown-timeout", 30*time.Second, "Server shutdown timeout (default: 30s)")

	showVersion = flag.Bool("version", false, "Show version")

	// See initFlags()
	listenHTTP         = MultiStringFlag{separator: ","}
	listenHTTPS        = MultiStringFlag{separator: ","}
	listenProxy        = MultiStringFlag{separator: ","}
	listenHTTPSProxyv2 = MultiStringFlag{separator: ","}

	header = MultiStringFlag{separator: ";;"}
)

// initFlags will be called from LoadConfig
func initFlags() {
	flag.Var(&listenHTTP, "listen-http", "The address(es) or unix socket paths to listen on for HTTP requests")
	flag.Var(&listenHTTPS, "listen-https", "The address(es) or unix socket paths to listen on for HTTPS requests")
	flag.Var(&listenProxy, "listen-proxy", "The address(es) or unix socket paths to listen on for proxy requests")
	flag.Var(&listenHTTPSProxyv2, "listen-https-proxyv2", "The address(es) or unix socket paths to listen on for HTTPS PROXYv2 requests (https://www.haproxy.org/download/1.8/doc/proxy-protocol.txt)")
	flag.Var(&header, "header", "The additional http header(s) that should be send to the client")

	// read from -config=/path/to/leafless-config
	flag.String(flag.DefaultConfigFlagname, "", "path to config file")

	flag.Parse()
}
