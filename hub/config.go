package hub

import (
	"os"
	"path/filepath"

	"github.com/kbukum/modelkit/resilience"
	"github.com/kbukum/modelkit/validation"
)

// Default configuration values.
const (
	DefaultRevision    = "master"
	DefaultScheme      = "modelhub"
	DefaultConcurrency = 4
)

// Config configures artifact resolution.
type Config struct {
	// CacheDir is the root of the local artifact cache.
	CacheDir string `yaml:"cache_dir" mapstructure:"cache_dir"`
	// DefaultRevision is used when a caller passes no revision.
	DefaultRevision string `yaml:"default_revision" mapstructure:"default_revision"`
	// DefaultScheme is the source for keys without a scheme.
	DefaultScheme string `yaml:"default_scheme" mapstructure:"default_scheme"`
	// Concurrency bounds parallel file downloads per artifact.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency" validate:"gte=0,lte=64"`
	// Offline resolves from the cache only.
	Offline bool `yaml:"offline" mapstructure:"offline"`

	Retry   resilience.RetryConfig          `yaml:"retry" mapstructure:"retry"`
	Breaker resilience.CircuitBreakerConfig `yaml:"breaker" mapstructure:"breaker"`

	// Sources holds per-scheme settings handed to source factories.
	Sources map[string]map[string]any `yaml:"sources" mapstructure:"sources"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir()
	}
	if c.DefaultRevision == "" {
		c.DefaultRevision = DefaultRevision
	}
	if c.DefaultScheme == "" {
		c.DefaultScheme = DefaultScheme
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = resilience.DefaultRetryConfig()
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.Validate(c)
}

func defaultCacheDir() string {
	if dir := os.Getenv("MODELKIT_CACHE"); dir != "" {
		return dir
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "modelkit", "hub")
	}
	return filepath.Join(os.TempDir(), "modelkit", "hub")
}
