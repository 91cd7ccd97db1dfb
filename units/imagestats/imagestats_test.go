package imagestats

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/modelkit/builder"
	"github.com/kbukum/modelkit/device"
	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/unit"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestImageStats_EndToEnd(t *testing.T) {
	data := encode(t, solid(4, 2, color.RGBA{R: 200, G: 100, B: 0, A: 255}))
	path := filepath.Join(t.TempDir(), "solid.png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := builder.Build(context.Background(), Task, builder.WithPlacer(device.NewPlacer(device.WithDetector(device.NoGPU))))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Preprocessor() == nil {
		t.Fatal("load-image preprocessor missing")
	}

	want := unit.Output{KeyWidth: 4, KeyHeight: 2, KeyMean: []float64{200, 100, 0}}
	outs, err := p.InvokeBatch(context.Background(), []any{path, data}, nil)
	if err != nil {
		t.Fatalf("InvokeBatch: %v", err)
	}
	for i, out := range outs {
		if diff := cmp.Diff(want, out); diff != "" {
			t.Errorf("output %d mismatch (-want +got):\n%s", i, diff)
		}
	}

	if _, err := p.Invoke(context.Background(), []byte("not an image"), nil); !errors.HasCode(err, errors.ErrCodePreprocess) {
		t.Errorf("expected PREPROCESS_ERROR, got %v", err)
	}
}

func TestImageStats_Compute(t *testing.T) {
	u := &Unit{}
	out, err := u.Compute(context.Background(), solid(1, 1, color.White), nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{255, 255, 255}, out[KeyMean]); diff != "" {
		t.Errorf("mean mismatch (-want +got):\n%s", diff)
	}
	if _, err := u.Compute(context.Background(), "path.png", nil); err == nil {
		t.Error("expected an error for undecoded input")
	}
	empty, _ := u.Compute(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 0)), nil)
	if diff := cmp.Diff([]float64{0, 0, 0}, empty[KeyMean]); diff != "" {
		t.Errorf("empty image mean (-want +got):\n%s", diff)
	}
}
