package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"adreact/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithAdAsset writes a small advertisement file and points the config at it.
func WithAdAsset(t testing.TB) ConfigOption {
	return func(cfg *config.Config) {
		path := filepath.Join(t.TempDir(), "ad.mp4")
		if err := os.WriteFile(path, []byte("advertisement"), 0o644); err != nil {
			t.Fatalf("write ad asset: %v", err)
		}
		cfg.Paths.AdPath = path
	}
}

// WithFallbackLimit overrides the fallback executor capacity.
func WithFallbackLimit(limit int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Queue.FallbackLimit = limit
	}
}
