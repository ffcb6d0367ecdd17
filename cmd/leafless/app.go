package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"gitlab.com/leafless/leafless"
	"gitlab.com/leafless/leafless/internal/config"
	"gitlab.com/leafless/leafless/internal/config/tls"
	"gitlab.com/leafless/leafless/internal/healthcheck"
)

type theApp struct {
	config *config.Config
	server *leafless.Server
	check  healthcheck.Check

	metricsServer *http.Server
}

type status struct {
	Version  string   `json:"version"`
	Revision string   `json:"revision"`
	Routes   []string `json:"routes"`
}

func newApp(cfg *config.Config) (*theApp, error) {
	opts, err := serverOptions(cfg)
	if err != nil {
		return nil, err
	}

	server, err := leafless.New(opts...)
	if err != nil {
		return nil, err
	}

	a := &theApp{config: cfg, server: server}

	if cfg.Static.Root != "" {
		err := server.Static(cfg.Static.URLPath, cfg.Static.Root, leafless.StaticOptions{
			Index:        cfg.Static.Index,
			Dotfiles:     cfg.Static.Dotfiles,
			MaxAge:       cfg.Static.MaxAge,
			CacheEntries: cfg.Static.CacheSize,
			CacheExpiry:  cfg.Static.CacheExpiry,
		})
		if err != nil {
			return nil, fmt.Errorf("registering static files: %w", err)
		}
	}

	if cfg.General.StatusPath != "" {
		if err := server.Route(cfg.General.StatusPath, leafless.Methods{leafless.GET: a.status}); err != nil {
			return nil, err
		}
	}

	return a, nil
}

func serverOptions(cfg *config.Config) ([]leafless.Option, error) {
	policy, err := leafless.ParseFailurePolicy(cfg.General.HandlerFailure)
	if err != nil {
		return nil, err
	}

	opts := []leafless.Option{
		leafless.WithFailurePolicy(policy),
		leafless.WithMaxConns(cfg.General.MaxConns),
		leafless.WithMaxURILength(cfg.General.MaxURILength),
		leafless.WithMaxBodyBytes(cfg.General.MaxBodyBytes),
		leafless.WithAccessLog(cfg.Log.Format),
		leafless.WithCrossOriginRequests(!cfg.General.DisableCrossOriginRequests),
		leafless.WithCorrelationPropagation(cfg.General.PropagateCorrelationID),
		leafless.WithCustomHeaders(cfg.General.CustomHeaders),
		leafless.WithKeepAlive(cfg.Server.KeepAlive),
		leafless.WithTimeouts(leafless.Timeouts{
			Read:       cfg.Server.ReadTimeout,
			ReadHeader: cfg.Server.ReadHeaderTimeout,
			Write:      cfg.Server.WriteTimeout,
		}),
	}

	if cfg.TLSRequired() {
		tlsConfig, err := tls.Create(cfg.General.RootCertificate, cfg.General.RootKey, cfg.General.InsecureCiphers, cfg.TLS.MinVersion, cfg.TLS.MaxVersion)
		if err != nil {
			return nil, err
		}

		opts = append(opts, leafless.WithTLSConfig(tlsConfig))
	}

	return opts, nil
}

func (a *theApp) status(ctx *leafless.Context) (leafless.Response, error) {
	ctx.Header().Set("Cache-Control", "no-store")

	return leafless.JSON(status{
		Version:  VERSION,
		Revision: REVISION,
		Routes:   a.server.Routes(),
	}), nil
}

// networkOf returns the network and address of a listen flag value: values
// containing a slash are unix socket paths.
func networkOf(addr string) (string, string) {
	if strings.Contains(addr, "/") {
		return "unix", addr
	}

	return "tcp", addr
}

func (a *theApp) listen() error {
	for _, listener := range []struct {
		addrs  []string
		listen func(network, address string) (net.Listener, error)
	}{
		{a.config.Listeners.HTTP, a.server.ListenInsecure},
		{a.config.Listeners.HTTPS, a.server.Listen},
		{a.config.Listeners.Proxy, a.server.ListenProxy},
		{a.config.Listeners.HTTPSProxyv2, a.server.ListenProxyV2},
	} {
		for _, addr := range listener.addrs {
			if _, err := listener.listen(networkOf(addr)); err != nil {
				return err
			}
		}
	}

	return nil
}

func (a *theApp) metricsHandler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.Handle("/-/healthcheck", a.check.Handler()).Methods(http.MethodGet, http.MethodHead)

	return router
}

func (a *theApp) listenMetrics(errCh chan<- error) error {
	if a.config.Metrics.Address == "" {
		return nil
	}

	l, err := net.Listen(networkOf(a.config.Metrics.Address))
	if err != nil {
		return fmt.Errorf("failed to listen on metrics address %s: %w", a.config.Metrics.Address, err)
	}

	a.metricsServer = &http.Server{
		Handler:           a.metricsHandler(),
		ReadHeaderTimeout: a.config.Server.ReadHeaderTimeout,
	}

	log.WithField("listener", l.Addr().String()).Info("serving metrics")

	go func() {
		if err := a.metricsServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return nil
}

// Run serves until ctx is done or a listener fails, then shuts the server
// down gracefully.
func (a *theApp) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	if err := a.listenMetrics(errCh); err != nil {
		return err
	}

	if err := a.listen(); err != nil {
		a.shutdown()
		return err
	}

	go func() {
		errCh <- a.server.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errCh:
		if err != nil {
			log.WithError(err).Error("listener failed, shutting down")
		}
	}

	if shutdownErr := a.shutdown(); shutdownErr != nil && err == nil {
		err = shutdownErr
	}

	return err
}

func (a *theApp) shutdown() error {
	a.check.Drain()

	ctx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(ctx)

	if a.metricsServer != nil {
		if metricsErr := a.metricsServer.Shutdown(ctx); metricsErr != nil && err == nil {
			err = metricsErr
		}
	}

	return err
}
