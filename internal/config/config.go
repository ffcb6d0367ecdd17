package config

import (
	"net/http"
	"os"
	"time"

	"github.com/namsral/flag"
	log "github.com/sirupsen/logrus"

	"gitlab.com/leafless/leafless/internal/config/tls"
)

// Config stores all the config options of the leafless daemon.
type Config struct {
	General   General
	Listeners Listeners
	Log       Log
	Metrics   Metrics
	Sentry    Sentry
	Server    Server
	Static    Static
	TLS       TLS
}

// General groups settings that can not be categorized under other head.
type General struct {
	MaxConns        int
	MaxURILength    int
	MaxBodyBytes    int64
	StatusPath      string
	HandlerFailure  string
	RootCertificate []byte
	RootKey         []byte

	DisableCrossOriginRequests bool
	InsecureCiphers            bool
	PropagateCorrelationID     bool

	ShowVersion bool

	CustomHeaders http.Header
}

// Listeners groups the addresses of the various listeners
// (HTTP, HTTPS, Proxy, HTTPSProxyv2)
type Listeners struct {
	HTTP         []string
	HTTPS        []string
	Proxy        []string
	HTTPSProxyv2 []string
}

// Log groups settings related to configuring logging
type Log struct {
	Format  string
	Verbose bool
}

// Metrics groups settings related to the metrics listener
type Metrics struct {
	Address string
}

// Sentry groups settings related to configuring Sentry
type Sentry struct {
	DSN         string
	Environment string
}

// Server groups settings of the underlying HTTP servers
type Server struct {
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	KeepAlive         time.Duration
	ShutdownTimeout   time.Duration
}

// Static groups settings of the static directory
type Static struct {
	Root        string
	URLPath     string
	Index       string
	Dotfiles    bool
	MaxAge      time.Duration
	CacheSize   int64
	CacheExpiry time.Duration
}

// TLS groups settings related to configuring TLS
type TLS struct {
	MinVersion uint16
	MaxVersion uint16
}

// TLSRequired reports whether any configured listener serves TLS.
func (c *Config) TLSRequired() bool {
	return len(c.Listeners.HTTPS) > 0 || len(c.Listeners.HTTPSProxyv2) > 0
}

func loadConfig() (*Config, error) {
	config := &Config{
		General: General{
			MaxConns:                   *maxConns,
			MaxURILength:               *maxURILength,
			MaxBodyBytes:               *maxBodyBytes,
			StatusPath:                 *statusPath,
			HandlerFailure:             *handlerFailure,
			DisableCrossOriginRequests: *disableCrossOriginRequests,
			InsecureCiphers:            *insecureCiphers,
			PropagateCorrelationID:     *propagateCorrelationID,
			ShowVersion:                *showVersion,
		},
		Listeners: Listeners{
			HTTP:         listenHTTP.Split(),
			HTTPS:        listenHTTPS.Split(),
			Proxy:        listenProxy.Split(),
			HTTPSProxyv2: listenHTTPSProxyv2.Split(),
		},
		Log: Log{
			Format:  *logFormat,
			Verbose: *logVerbose,
		},
		Metrics: Metrics{
			Address: *metricsAddress,
		},
		Sentry: Sentry{
			DSN:         *sentryDSN,
			Environment: *sentryEnvironment,
		},
		Server: Server{
			ReadTimeout:       *serverReadTimeout,
			ReadHeaderTimeout: *serverReadHeaderTimeout,
			WriteTimeout:      *serverWriteTimeout,
			KeepAlive:         *serverKeepAlive,
			ShutdownTimeout:   *serverShutdownTimeout,
		},
		Static: Static{
			Root:        *staticRoot,
			URLPath:     *staticURLPath,
			Index:       *staticIndex,
			Dotfiles:    *staticDotfiles,
			MaxAge:      *staticMaxAge,
			CacheSize:   *staticCacheSize,
			CacheExpiry: *staticCacheExpiry,
		},
		TLS: TLS{
			MinVersion: tls.AllTLSVersions[*tlsMinVersion],
			MaxVersion: tls.AllTLSVersions[*tlsMaxVersion],
		},
	}

	var err error

	if config.General.CustomHeaders, err = ParseHeaderString(header.Split()); err != nil {
		return nil, err
	}

	for _, file := range []struct {
		contents *[]byte
		path     string
	}{
		{&config.General.RootCertificate, *rootCert},
		{&config.General.RootKey, *rootKey},
	} {
		if file.path != "" {
			if *file.contents, err = os.ReadFile(file.path); err != nil {
				return nil, err
			}
		}
	}

	if err := Validate(config); err != nil {
		return nil, err
	}

	if err := tls.ValidateTLSVersions(*tlsMinVersion, *tlsMaxVersion); err != nil {
		return nil, err
	}

	return config, nil
}

// LogConfig logs the effective configuration at debug level
func LogConfig(config *Config) {
	log.WithFields(log.Fields{
		"default-config-filename":       flag.DefaultConfigFlagname,
		"disable-cross-origin-requests": config.General.DisableCrossOriginRequests,
		"handler-failure":               config.General.HandlerFailure,
		"insecure-ciphers":              config.General.InsecureCiphers,
		"listen-http":                   config.Listeners.HTTP,
		"listen-https":                  config.Listeners.HTTPS,
		"listen-proxy":                  config.Listeners.Proxy,
		"listen-https-proxyv2":          config.Listeners.HTTPSProxyv2,
		"log-format":                    config.Log.Format,
		"max-conns":                     config.General.MaxConns,
		"max-uri-length":                config.General.MaxURILength,
		"metrics-address":               config.Metrics.Address,
		"propagate-correlation-id":      config.General.PropagateCorrelationID,
		"root-cert":                     *rootCert,
		"root-key":                      *rootKey,
		"static-root":                   config.Static.Root,
		"static-url-path":               config.Static.URLPath,
		"static-index":                  config.Static.Index,
		"static-max-age":                config.Static.MaxAge,
		"static-cache-size":             config.Static.CacheSize,
		"status-path":                   config.General.StatusPath,
		"tls-min-version":               *tlsMinVersion,
		"tls-max-version":               *tlsMaxVersion,
		"server-shutdown-timeout":       config.Server.ShutdownTimeout,
	}).Debug("Start daemon with configuration")
}

// LoadConfig parses configuration settings passed as command line arguments or
// via config file, and populates a Config object with those values
func LoadConfig() (*Config, error) {
	initFlags()

	return loadConfig()
}
