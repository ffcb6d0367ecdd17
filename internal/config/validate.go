package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var (
	ErrNoListener              = errors.New("no listener defined, please specify at least one --listen-* flag")
	ErrTLSNoCertificate        = errors.New("root-cert must be defined when serving HTTPS")
	ErrTLSNoKey                = errors.New("root-key must be defined when serving HTTPS")
	ErrInvalidHandlerFailure   = errors.New("handler-failure must be either 'exit' or 'isolate'")
	ErrStaticRootNotDir        = errors.New("static-root must be a directory")
	ErrInvalidStaticURLPath    = errors.New("static-url-path must start with a slash")
	ErrInvalidStatusPath       = errors.New("status-path must start with a slash")
	ErrNegativeStaticCacheSize = errors.New("static-cache-size must be positive or zero")
)

// Validate returns every problem found in config
func Validate(config *Config) error {
	var result *multierror.Error

	result = multierror.Append(result,
		validateListeners(config),
		validateGeneral(config),
		validateStatic(config),
	)

	return result.ErrorOrNil()
}

func validateListeners(config *Config) error {
	l := config.Listeners
	if len(l.HTTP)+len(l.HTTPS)+len(l.Proxy)+len(l.HTTPSProxyv2) == 0 {
		return ErrNoListener
	}

	if !config.TLSRequired() {
		return nil
	}

	var result *multierror.Error
	if len(config.General.RootCertificate) == 0 {
		result = multierror.Append(result, ErrTLSNoCertificate)
	}
	if len(config.General.RootKey) == 0 {
		result = multierror.Append(result, ErrTLSNoKey)
	}

	return result.ErrorOrNil()
}

func validateGeneral(config *Config) error {
	var result *multierror.Error

	switch config.General.HandlerFailure {
	case "", "exit", "isolate":
	default:
		result = multierror.Append(result, fmt.Errorf("%w: %q", ErrInvalidHandlerFailure, config.General.HandlerFailure))
	}

	if config.General.StatusPath != "" && !strings.HasPrefix(config.General.StatusPath, "/") {
		result = multierror.Append(result, ErrInvalidStatusPath)
	}

	return result.ErrorOrNil()
}

func validateStatic(config *Config) error {
	if config.Static.Root == "" {
		return nil
	}

	var result *multierror.Error

	fi, err := os.Stat(config.Static.Root)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("static-root: %w", err))
	} else if !fi.IsDir() {
		result = multierror.Append(result, ErrStaticRootNotDir)
	}

	if !strings.HasPrefix(config.Static.URLPath, "/") {
		result = multierror.Append(result, ErrInvalidStaticURLPath)
	}

	if config.Static.CacheSize < 0 {
		result = multierror.Append(result, ErrNegativeStaticCacheSize)
	}

	return result.ErrorOrNil()
}
