// Package imagestats provides the image-statistics task: a unit reporting
// the size and mean color of a decoded image.
package imagestats

import (
	"context"
	"fmt"
	"image"

	"github.com/kbukum/modelkit/builder"
	imageproc "github.com/kbukum/modelkit/processor/image"
	"github.com/kbukum/modelkit/registry"
	"github.com/kbukum/modelkit/unit"
)

// Registry names.
const (
	Task    = "image-statistics"
	Variant = "image-stats"
	Module  = "vision"
)

// Output keys.
const (
	KeyWidth  = "width"
	KeyHeight = "height"
	KeyMean   = "mean_rgb"
)

func init() {
	if err := registry.Global().Loader().Add(Module, []string{Variant}, load); err != nil {
		panic(err)
	}
	if err := registry.Declare(registry.GroupPipelines, Variant, Task, Module); err != nil {
		panic(err)
	}
	builder.SetDefault(Task, builder.Default{Variant: Variant, Preprocessor: imageproc.LoadImage})
}

func load(context.Context) (map[string]any, error) {
	return map[string]any{Variant: unit.Factory(New)}, nil
}

// Unit computes image statistics.
type Unit struct{}

// New constructs the unit.
func New(context.Context, unit.Spec) (unit.Unit, error) {
	return &Unit{}, nil
}

// Name returns the variant name.
func (*Unit) Name() string { return Variant }

// Capabilities declares a thread-safe image unit.
func (*Unit) Capabilities() unit.Capabilities {
	return unit.Capabilities{Modality: unit.ModalityImage, ThreadSafe: true}
}

// Compute expects a decoded image.
func (*Unit) Compute(ctx context.Context, input any, _ unit.Options) (unit.Output, error) {
	img, ok := input.(image.Image)
	if !ok {
		return nil, fmt.Errorf("image-stats expects a decoded image, got %T", input)
	}
	b := img.Bounds()
	var sum [3]float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			sum[0] += float64(r >> 8)
			sum[1] += float64(g >> 8)
			sum[2] += float64(bl >> 8)
		}
	}
	mean := []float64{0, 0, 0}
	if n := float64(b.Dx() * b.Dy()); n > 0 {
		for i := range mean {
			mean[i] = sum[i] / n
		}
	}
	return unit.Output{KeyWidth: b.Dx(), KeyHeight: b.Dy(), KeyMean: mean}, nil
}
