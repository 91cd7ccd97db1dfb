package processor

import (
	"context"
	"fmt"
	"image"

	"github.com/samber/lo"

	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/registry"
	"github.com/kbukum/modelkit/unit"
)

// InputKind classifies raw inputs a preprocessor can accept.
type InputKind string

const (
	// KindPath is a filesystem path or a plain string payload.
	KindPath InputKind = "path"
	// KindBytes is an encoded payload.
	KindBytes InputKind = "bytes"
	// KindDecoded is an already decoded value such as an image.Image.
	KindDecoded InputKind = "decoded"
)

// KindOf classifies a raw input.
func KindOf(input any) InputKind {
	switch input.(type) {
	case string:
		return KindPath
	case []byte:
		return KindBytes
	default:
		return KindDecoded
	}
}

// Preprocessor turns a raw input into the value a unit computes on.
type Preprocessor interface {
	Preprocess(ctx context.Context, input any) (any, error)
}

// Acceptor is implemented by preprocessors that restrict their input kinds.
type Acceptor interface {
	Accepts() []InputKind
}

// Postprocessor turns a unit's output into the final output record.
type Postprocessor interface {
	Postprocess(ctx context.Context, out unit.Output) (unit.Output, error)
}

// PreprocessFunc adapts a function to Preprocessor.
type PreprocessFunc func(ctx context.Context, input any) (any, error)

// Preprocess calls f.
func (f PreprocessFunc) Preprocess(ctx context.Context, input any) (any, error) {
	return f(ctx, input)
}

// PostprocessFunc adapts a function to Postprocessor.
type PostprocessFunc func(ctx context.Context, out unit.Output) (unit.Output, error)

// Postprocess calls f.
func (f PostprocessFunc) Postprocess(ctx context.Context, out unit.Output) (unit.Output, error) {
	return f(ctx, out)
}

// CheckInput returns PREPROCESS_ERROR when p declares its accepted kinds and
// input is not one of them.
func CheckInput(p Preprocessor, input any) error {
	a, ok := p.(Acceptor)
	if !ok {
		return nil
	}
	kind := KindOf(input)
	if lo.Contains(a.Accepts(), kind) {
		return nil
	}
	if _, isImage := input.(image.Image); isImage && lo.Contains(a.Accepts(), KindDecoded) {
		return nil
	}
	return errors.Preprocess(
		fmt.Sprintf("input of type %T (%s) is not accepted", input, kind), nil,
	).WithDetail("accepts", a.Accepts())
}

// Params is what a processor factory receives.
type Params struct {
	// ModelDir is the resolved artifact directory, possibly empty.
	ModelDir string
	// Config is the processor section of the configuration artifact.
	Config map[string]any
}

// PreprocessorFactory constructs a preprocessor.
type PreprocessorFactory func(ctx context.Context, p Params) (Preprocessor, error)

// PostprocessorFactory constructs a postprocessor.
type PostprocessorFactory func(ctx context.Context, p Params) (Postprocessor, error)

// RegisterPreprocessor registers f in the global registry's preprocessors
// group. It panics on conflict and is meant for init functions.
func RegisterPreprocessor(name string, f PreprocessorFactory) {
	registry.MustRegister(registry.GroupPreprocessors, name, registry.Descriptor{Constructor: f})
}

// RegisterPostprocessor registers f in the global registry's postprocessors
// group.
func RegisterPostprocessor(name string, f PostprocessorFactory) {
	registry.MustRegister(registry.GroupPostprocessors, name, registry.Descriptor{Constructor: f})
}

// NewPreprocessor builds the preprocessor registered as name in r.
func NewPreprocessor(ctx context.Context, r *registry.Registry, name string, p Params) (Preprocessor, error) {
	f, err := registry.Resolve[PreprocessorFactory](ctx, r, registry.GroupPreprocessors, name)
	if err != nil {
		return nil, err
	}
	pre, err := f(ctx, p)
	if err != nil {
		return nil, errors.ConstructorFailure(name, err)
	}
	return pre, nil
}

// NewPostprocessor builds the postprocessor registered as name in r.
func NewPostprocessor(ctx context.Context, r *registry.Registry, name string, p Params) (Postprocessor, error) {
	f, err := registry.Resolve[PostprocessorFactory](ctx, r, registry.GroupPostprocessors, name)
	if err != nil {
		return nil, err
	}
	post, err := f(ctx, p)
	if err != nil {
		return nil, errors.ConstructorFailure(name, err)
	}
	return post, nil
}
