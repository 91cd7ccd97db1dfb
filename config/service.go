package config

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/kbukum/modelkit/logger"
)

// ServiceConfig contains the fields every modelkit process needs. Commands
// extend it by embedding it in their own config structs:
//
//	type AppConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Hub hub.Config `yaml:"hub" mapstructure:"hub"`
//	}
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
}

// Environments lists the accepted values of ServiceConfig.Environment.
var Environments = []string{"development", "test", "staging", "production"}

// ApplyDefaults fills the name and environment. Debug raises the log level
// unless one is set explicitly.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "modelkit"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Debug && c.Logging.Level == "" {
		c.Logging.Level = "debug"
	}
	c.Logging.ApplyDefaults()
}

// Validate checks the environment and the logging section.
func (c *ServiceConfig) Validate() error {
	if !lo.Contains(Environments, c.Environment) {
		return fmt.Errorf("config.environment must be one of %v (got: %s)", Environments, c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}
