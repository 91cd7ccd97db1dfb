package logger

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

var (
	validLevels  = []string{"trace", "debug", "info", "warn", "error", "fatal", "disabled"}
	validFormats = []string{"json", "console", "pretty"}
)

// Config contains logging configuration.
type Config struct {
	Level     string `yaml:"level" mapstructure:"level"`
	Format    string `yaml:"format" mapstructure:"format"`
	Output    string `yaml:"output" mapstructure:"output"`
	NoColor   bool   `yaml:"no_color" mapstructure:"no_color"`
	Timestamp bool   `yaml:"timestamp" mapstructure:"timestamp"`
	Caller    bool   `yaml:"caller" mapstructure:"caller"`
	// Components overrides the level per component, e.g. {"hub": "debug"}.
	Components map[string]string `yaml:"components" mapstructure:"components"`
}

// ApplyDefaults applies default values to logging configuration.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	// stdout carries command output, so logs default to stderr
	if c.Output == "" {
		c.Output = "stderr"
	}
	c.Timestamp = true
}

// Validate validates logging configuration.
func (c *Config) Validate() error {
	if !lo.Contains(validLevels, c.Level) {
		return fmt.Errorf("logging.level must be one of %v (got: %s)", validLevels, c.Level)
	}
	if !lo.Contains(validFormats, c.Format) {
		return fmt.Errorf("logging.format must be one of %v (got: %s)", validFormats, c.Format)
	}
	names := lo.Keys(c.Components)
	sort.Strings(names)
	for _, name := range names {
		if lvl := c.Components[name]; !lo.Contains(validLevels, lvl) {
			return fmt.Errorf("logging.components.%s must be one of %v (got: %s)", name, validLevels, lvl)
		}
	}
	return nil
}
