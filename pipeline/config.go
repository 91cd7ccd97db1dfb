package pipeline

import (
	"fmt"
	"strings"

	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/validation"
)

// BatchPolicy decides what a failing item does to the rest of a batch.
type BatchPolicy int

const (
	// FailFast aborts the batch at the first failure and returns no outputs.
	FailFast BatchPolicy = iota
	// Collect keeps going, leaves nil at failed indexes and reports every
	// failure in a *BatchError.
	Collect
)

func (p BatchPolicy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case Collect:
		return "collect"
	default:
		return fmt.Sprintf("BatchPolicy(%d)", int(p))
	}
}

// ParseBatchPolicy parses "fail-fast" or "collect".
func ParseBatchPolicy(s string) (BatchPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail-fast", "failfast":
		return FailFast, nil
	case "collect":
		return Collect, nil
	default:
		return FailFast, errors.InvalidInput("batch_policy", fmt.Sprintf("unknown batch policy %q", s))
	}
}

// Config holds the file-configurable pipeline settings.
type Config struct {
	BatchPolicy string `yaml:"batch_policy" mapstructure:"batch_policy" validate:"omitempty,oneof=fail-fast collect"`
	// BatchSize caps inputs per native batch call; 0 sends one chunk.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size" validate:"gte=0"`
	// Device is the device string for built pipelines; empty auto-selects.
	Device string `yaml:"device" mapstructure:"device" validate:"omitempty,device"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.BatchPolicy == "" {
		c.BatchPolicy = FailFast.String()
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.Validate(c)
}

// Options converts the configuration into pipeline options.
func (c Config) Options() ([]Option, error) {
	policy, err := ParseBatchPolicy(c.BatchPolicy)
	if err != nil {
		return nil, err
	}
	return []Option{WithBatchPolicy(policy), WithBatchSize(c.BatchSize)}, nil
}
