// Package echo provides the echo task: units that return their input as
// text. They need no weights and serve as the smallest end-to-end pipeline.
package echo

import (
	"context"
	"fmt"
	"strings"

	"github.com/kbukum/modelkit/builder"
	"github.com/kbukum/modelkit/modelconfig"
	"github.com/kbukum/modelkit/registry"
	"github.com/kbukum/modelkit/unit"
)

// Registry names.
const (
	Task         = "echo"
	Variant      = "echo"
	BatchVariant = "echo-batch"
	Module       = "text"
)

func init() {
	if err := registry.Global().Loader().Add(Module, []string{Variant, BatchVariant}, load); err != nil {
		panic(err)
	}
	for _, name := range []string{Variant, BatchVariant} {
		if err := registry.Declare(registry.GroupPipelines, name, Task, Module); err != nil {
			panic(err)
		}
	}
	builder.SetDefault(Task, builder.Default{Variant: Variant})
}

func load(context.Context) (map[string]any, error) {
	return map[string]any{
		Variant:      unit.Factory(New),
		BatchVariant: unit.Factory(NewBatch),
	}, nil
}

// Config is read from the unit configuration.
type Config struct {
	Prefix       string `mapstructure:"prefix"`
	Uppercase    bool   `mapstructure:"uppercase"`
	MaxBatchSize int    `mapstructure:"max_batch_size"`
}

// Unit echoes its input.
type Unit struct {
	name string
	cfg  Config
}

// New constructs the echo unit.
func New(_ context.Context, spec unit.Spec) (unit.Unit, error) {
	cfg, err := decode(spec)
	if err != nil {
		return nil, err
	}
	return &Unit{name: Variant, cfg: cfg}, nil
}

func decode(spec unit.Spec) (Config, error) {
	var cfg Config
	if err := modelconfig.Decode(spec.Config, &cfg); err != nil {
		return cfg, err
	}
	if cfg.MaxBatchSize < 0 {
		return cfg, fmt.Errorf("max_batch_size must not be negative")
	}
	return cfg, nil
}

// Name returns the variant name.
func (u *Unit) Name() string { return u.name }

// Capabilities declares a thread-safe text unit.
func (u *Unit) Capabilities() unit.Capabilities {
	return unit.Capabilities{Modality: unit.ModalityText, ThreadSafe: true}
}

// Compute returns {"text": input}. The "repeat" option repeats the text.
func (u *Unit) Compute(_ context.Context, input any, opts unit.Options) (unit.Output, error) {
	var text string
	switch v := input.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		return nil, fmt.Errorf("echo expects text, got %T", input)
	}
	if u.cfg.Uppercase {
		text = strings.ToUpper(text)
	}
	if n := opts.Int("repeat", 1); n > 1 {
		text = strings.TrimSpace(strings.Repeat(text+" ", n))
	}
	return unit.Output{unit.KeyText: u.cfg.Prefix + text}, nil
}

// BatchUnit is the echo unit with native batching.
type BatchUnit struct {
	Unit
}

// NewBatch constructs the batching echo unit.
func NewBatch(_ context.Context, spec unit.Spec) (unit.Unit, error) {
	cfg, err := decode(spec)
	if err != nil {
		return nil, err
	}
	return &BatchUnit{Unit{name: BatchVariant, cfg: cfg}}, nil
}

// Capabilities declares batching.
func (u *BatchUnit) Capabilities() unit.Capabilities {
	caps := u.Unit.Capabilities()
	caps.Batching = true
	caps.MaxBatchSize = u.cfg.MaxBatchSize
	return caps
}

// ComputeBatch echoes every input in one call. A single bad input fails
// the whole call.
func (u *BatchUnit) ComputeBatch(ctx context.Context, inputs []any, opts unit.Options) ([]unit.Output, error) {
	outs := make([]unit.Output, len(inputs))
	for i, in := range inputs {
		out, err := u.Compute(ctx, in, opts)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		outs[i] = out
	}
	return outs, nil
}
