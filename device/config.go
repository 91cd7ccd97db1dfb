package device

import (
	"github.com/kbukum/modelkit/validation"
)

func init() {
	if err := validation.RegisterTag("device", func(v string) bool {
		_, err := Parse(v)
		return err == nil
	}); err != nil {
		panic(err)
	}
}

// Config selects the default device.
type Config struct {
	// Default is a device string; empty selects the first gpu, else cpu.
	Default    string `yaml:"default" mapstructure:"default" validate:"omitempty,device"`
	DisableGPU bool   `yaml:"disable_gpu" mapstructure:"disable_gpu"`
}

// ApplyDefaults is a no-op; an empty Default means auto-select.
func (c *Config) ApplyDefaults() {}

// Validate checks the configured device string.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
