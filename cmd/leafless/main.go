package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"gitlab.com/leafless/leafless/internal/config"
	"gitlab.com/leafless/leafless/internal/errortracking"
	"gitlab.com/leafless/leafless/internal/logging"
	"gitlab.com/leafless/leafless/metrics"
)

// VERSION stores the information about the semantic version of application
var VERSION = "dev"

// REVISION stores the information about the git revision of application
var REVISION = "HEAD"

func printVersion(showVersion bool, version string) {
	if showVersion {
		fmt.Fprintf(os.Stdout, "%s\n", version)
		os.Exit(0)
	}
}

func fatal(err error, message string) {
	errortracking.CaptureErrWithStackTrace(err)
	errortracking.Flush(errortracking.FlushTimeout)
	log.WithError(err).Fatal(message)
}

func appMain() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	printVersion(cfg.General.ShowVersion, VERSION)

	if err := logging.ConfigureLogging(cfg.Log.Format, cfg.Log.Verbose); err != nil {
		log.WithError(err).Fatal("Failed to initialize logging")
	}

	log.WithFields(log.Fields{
		"version":  VERSION,
		"revision": REVISION,
	}).Print("leafless daemon")

	config.LogConfig(cfg)

	if err := errortracking.Initialize(cfg.Sentry.DSN, cfg.Sentry.Environment, VERSION, REVISION); err != nil {
		log.WithError(err).Error("Failed to initialize error reporting")
	}

	a, err := newApp(cfg)
	if err != nil {
		fatal(err, "could not create the server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		fatal(err, "server failed")
	}
}

func main() {
	log.SetOutput(os.Stderr)

	metrics.MustRegister()

	appMain()
}
