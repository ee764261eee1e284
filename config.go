package trickplay

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/e7canasta/orion-care-sensor/modules/trickplay/internal/cache"
)

const (
	// DefaultLoadTimeout bounds the wait for media to become ready
	DefaultLoadTimeout = 5 * time.Second
	// DefaultRenderTimeout bounds the wait for a post-seek render notification
	DefaultRenderTimeout = 500 * time.Millisecond
	// DefaultCacheCapacity is the number of stills kept on disk
	DefaultCacheCapacity = cache.DefaultCapacity
)

// Config contains configuration for an Extractor
type Config struct {
	// CacheDir is where stills are written (created if missing)
	CacheDir string `env:"TRICKPLAY_CACHE_DIR"`
	// CacheCapacity is the number of stills kept after eviction
	CacheCapacity int `env:"TRICKPLAY_CACHE_CAPACITY"`
	// LoadTimeout bounds media loading; exceeding it fails the extraction
	LoadTimeout time.Duration `env:"TRICKPLAY_LOAD_TIMEOUT"`
	// RenderTimeout bounds the wait for a render notification; exceeding it
	// is not an error, the current frame is captured
	RenderTimeout time.Duration `env:"TRICKPLAY_RENDER_TIMEOUT"`
	// Registerer receives the engine metrics (nil = private registry)
	Registerer prometheus.Registerer
}

// DefaultConfig returns the default configuration: a cache directory under
// the OS temp dir, 10 cached stills, 5s load and 500ms render timeouts.
func DefaultConfig() Config {
	return Config{
		CacheDir:      filepath.Join(os.TempDir(), "trickplay"),
		CacheCapacity: DefaultCacheCapacity,
		LoadTimeout:   DefaultLoadTimeout,
		RenderTimeout: DefaultRenderTimeout,
	}
}

// ConfigFromEnv returns DefaultConfig overridden by TRICKPLAY_* variables.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("trickplay: parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration (fail-fast).
func (c Config) Validate() error {
	if c.CacheDir == "" {
		return fmt.Errorf("trickplay: cache directory is required")
	}
	if c.CacheCapacity < 1 {
		return fmt.Errorf("trickplay: invalid cache capacity %d (must be >= 1)", c.CacheCapacity)
	}
	if c.LoadTimeout <= 0 {
		return fmt.Errorf("trickplay: invalid load timeout %v (must be > 0)", c.LoadTimeout)
	}
	if c.RenderTimeout <= 0 {
		return fmt.Errorf("trickplay: invalid render timeout %v (must be > 0)", c.RenderTimeout)
	}
	return nil
}
