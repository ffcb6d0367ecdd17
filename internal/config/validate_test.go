package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("content"), 0644))

	tests := map[string]struct {
		cfg          func(*Config)
		expectedErrs []error
	}{
		"valid": {
			cfg: func(*Config) {},
		},
		"no_listeners": {
			cfg:          func(cfg *Config) { cfg.Listeners = Listeners{} },
			expectedErrs: []error{ErrNoListener},
		},
		"https_without_certificate_and_key": {
			cfg: func(cfg *Config) {
				cfg.Listeners.HTTPS = []string{":8443"}
			},
			expectedErrs: []error{ErrTLSNoCertificate, ErrTLSNoKey},
		},
		"proxyv2_with_certificate_and_key": {
			cfg: func(cfg *Config) {
				cfg.Listeners.HTTPSProxyv2 = []string{":8443"}
				cfg.General.RootCertificate = []byte("cert")
				cfg.General.RootKey = []byte("key")
			},
		},
		"invalid_handler_failure": {
			cfg:          func(cfg *Config) { cfg.General.HandlerFailure = "retry" },
			expectedErrs: []error{ErrInvalidHandlerFailure},
		},
		"isolate_handler_failure": {
			cfg: func(cfg *Config) { cfg.General.HandlerFailure = "isolate" },
		},
		"relative_status_path": {
			cfg:          func(cfg *Config) { cfg.General.StatusPath = "@status" },
			expectedErrs: []error{ErrInvalidStatusPath},
		},
		"static_root_missing": {
			cfg:          func(cfg *Config) { cfg.Static.Root = filepath.Join(dir, "missing") },
			expectedErrs: []error{os.ErrNotExist},
		},
		"static_root_is_a_file": {
			cfg:          func(cfg *Config) { cfg.Static.Root = file },
			expectedErrs: []error{ErrStaticRootNotDir},
		},
		"static_url_path_and_cache_size": {
			cfg: func(cfg *Config) {
				cfg.Static.URLPath = "assets"
				cfg.Static.CacheSize = -1
			},
			expectedErrs: []error{ErrInvalidStaticURLPath, ErrNegativeStaticCacheSize},
		},
		"everything_wrong_at_once": {
			cfg: func(cfg *Config) {
				cfg.Listeners = Listeners{}
				cfg.General.HandlerFailure = "retry"
				cfg.Static.Root = file
			},
			expectedErrs: []error{ErrNoListener, ErrInvalidHandlerFailure, ErrStaticRootNotDir},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig(dir)
			tt.cfg(&cfg)

			err := Validate(&cfg)
			if len(tt.expectedErrs) == 0 {
				require.NoError(t, err)
				return
			}

			for _, expectedErr := range tt.expectedErrs {
				require.True(t, errors.Is(err, expectedErr), "expected %v in %v", expectedErr, err)
			}
		})
	}
}

func validConfig(staticRoot string) Config {
	return Config{
		General: General{
			HandlerFailure: "exit",
			StatusPath:     "/@status",
		},
		Listeners: Listeners{
			HTTP: []string{"127.0.0.1:80"},
		},
		Static: Static{
			Root:      staticRoot,
			URLPath:   "/",
			CacheSize: 10,
		},
	}
}
