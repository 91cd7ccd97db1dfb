package unit

import (
	"context"

	"github.com/kbukum/modelkit/device"
)

// Standard Output keys.
const (
	KeyText      = "text"
	KeyScores    = "scores"
	KeyLabels    = "labels"
	KeyBoxes     = "boxes"
	KeyPCM       = "output_pcm"
	KeyPNG       = "output_png"
	KeyImage     = "output_img"
	KeyEmbedding = "embedding"
	KeyFilename  = "filename"
)

// Output is the uniform result record of one invocation.
type Output map[string]any

// Options are per-call parameters forwarded to compute.
type Options map[string]any

// Int returns an integer option, or def when absent or not numeric.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Bool returns a boolean option, or def when absent.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return def
}

// Modality is the kind of data a unit consumes.
type Modality string

const (
	ModalityText       Modality = "text"
	ModalityImage      Modality = "image"
	ModalityAudio      Modality = "audio"
	ModalityVideo      Modality = "video"
	ModalityMultimodal Modality = "multimodal"
)

// Capabilities describe what a unit supports.
type Capabilities struct {
	Modality Modality `json:"modality,omitempty"`
	// Batching means ComputeBatch accepts several inputs per call.
	Batching bool `json:"batching"`
	// MaxBatchSize caps items per ComputeBatch call; zero means no cap.
	MaxBatchSize int `json:"max_batch_size,omitempty"`
	// ThreadSafe means Compute may be called concurrently.
	ThreadSafe bool `json:"thread_safe"`
}

// Unit is a constructed computational unit.
type Unit interface {
	Name() string
	Compute(ctx context.Context, input any, opts Options) (Output, error)
}

// BatchUnit computes several inputs in one call. Outputs are positionally
// aligned with inputs.
type BatchUnit interface {
	Unit
	ComputeBatch(ctx context.Context, inputs []any, opts Options) ([]Output, error)
}

// Describer is implemented by units that declare their capabilities.
type Describer interface {
	Capabilities() Capabilities
}

// Closer is implemented by units holding releasable resources.
type Closer interface {
	Close() error
}

// CapabilitiesOf returns u's declared capabilities. Units without a
// declaration are assumed to batch exactly when they implement BatchUnit.
func CapabilitiesOf(u Unit) Capabilities {
	if d, ok := u.(Describer); ok {
		return d.Capabilities()
	}
	_, batch := u.(BatchUnit)
	return Capabilities{Batching: batch}
}

// AsBatch returns u as a BatchUnit when it both implements the method and
// declares batching.
func AsBatch(u Unit) (BatchUnit, bool) {
	b, ok := u.(BatchUnit)
	if !ok || !CapabilitiesOf(u).Batching {
		return nil, false
	}
	return b, true
}

// Close releases u's resources when it holds any.
func Close(u Unit) error {
	if c, ok := u.(Closer); ok {
		return c.Close()
	}
	return nil
}

// Spec is everything a factory needs to construct a unit.
type Spec struct {
	Task    string
	Variant string
	// ModelDir is the resolved artifact directory; empty for units
	// without weights.
	ModelDir string
	// Config is the model section of the configuration artifact merged
	// with caller overrides.
	Config map[string]any
	Device device.Binding
}

// Factory constructs a unit. Factories are registered in the pipelines
// group of the registry under their variant name.
type Factory func(ctx context.Context, spec Spec) (Unit, error)

// ComputeFunc is the signature of a single-item compute call.
type ComputeFunc func(ctx context.Context, input any, opts Options) (Output, error)

type funcUnit struct {
	name string
	fn   ComputeFunc
	caps Capabilities
}

// FromFunc builds a unit from a compute function.
func FromFunc(name string, caps Capabilities, fn ComputeFunc) Unit {
	caps.Batching = false
	return &funcUnit{name: name, fn: fn, caps: caps}
}

func (f *funcUnit) Name() string               { return f.name }
func (f *funcUnit) Capabilities() Capabilities { return f.caps }

func (f *funcUnit) Compute(ctx context.Context, input any, opts Options) (Output, error) {
	return f.fn(ctx, input, opts)
}
