package main

import (
	"fmt"

	"github.com/kbukum/modelkit/config"
	"github.com/kbukum/modelkit/device"
	"github.com/kbukum/modelkit/hub"
	"github.com/kbukum/modelkit/observability"
	"github.com/kbukum/modelkit/pipeline"
)

// AppConfig is the modelkit.yml layout.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Hub           hub.Config           `yaml:"hub" mapstructure:"hub"`
	Pipeline      pipeline.Config      `yaml:"pipeline" mapstructure:"pipeline"`
	Device        device.Config        `yaml:"device" mapstructure:"device"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults fills unset fields of every section.
func (c *AppConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Hub.ApplyDefaults()
	c.Pipeline.ApplyDefaults()
	c.Device.ApplyDefaults()
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Name
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = c.Environment
	}
	c.Observability.ApplyDefaults()
}

// Validate checks every section.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	sections := []struct {
		name string
		fn   func() error
	}{
		{"hub", c.Hub.Validate},
		{"pipeline", c.Pipeline.Validate},
		{"device", c.Device.Validate},
		{"observability", c.Observability.Validate},
	}
	for _, s := range sections {
		if err := s.fn(); err != nil {
			return fmt.Errorf("config.%s: %w", s.name, err)
		}
	}
	return nil
}

func loadConfig(file string) (*AppConfig, error) {
	var opts []config.LoaderOption
	if file != "" {
		opts = append(opts, config.WithConfigFile(file))
	}
	cfg := &AppConfig{}
	if err := config.LoadConfig("modelkit", cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
