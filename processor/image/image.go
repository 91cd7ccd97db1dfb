// Package image provides the load-image preprocessor. It decodes PNG, JPEG,
// GIF, BMP, TIFF and WebP from a path or encoded bytes and optionally resizes
// the result.
package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/modelconfig"
	"github.com/kbukum/modelkit/processor"
)

// LoadImage is the registered name of the image loading preprocessor.
const LoadImage = "load-image"

func init() {
	processor.RegisterPreprocessor(LoadImage, NewLoader)
}

// Config controls decoding.
type Config struct {
	// Width and Height resize the decoded image when both are positive.
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
	// Interpolation is nearest, bilinear or catmullrom.
	Interpolation string `mapstructure:"interpolation"`
}

// Loader decodes images.
type Loader struct {
	cfg    Config
	scaler draw.Scaler
}

// NewLoader builds a Loader from the preprocessor section of a configuration
// artifact.
func NewLoader(_ context.Context, p processor.Params) (processor.Preprocessor, error) {
	var cfg Config
	if err := modelconfig.Decode(p.Config, &cfg); err != nil {
		return nil, err
	}
	scaler, err := scalerFor(cfg.Interpolation)
	if err != nil {
		return nil, err
	}
	return &Loader{cfg: cfg, scaler: scaler}, nil
}

func scalerFor(name string) (draw.Scaler, error) {
	switch strings.ToLower(name) {
	case "", "bilinear":
		return draw.BiLinear, nil
	case "nearest":
		return draw.NearestNeighbor, nil
	case "catmullrom":
		return draw.CatmullRom, nil
	default:
		return nil, errors.InvalidInput("interpolation", fmt.Sprintf("unknown interpolation %q", name))
	}
}

// Accepts returns the input kinds the loader decodes.
func (l *Loader) Accepts() []processor.InputKind {
	return []processor.InputKind{processor.KindPath, processor.KindBytes, processor.KindDecoded}
}

// Preprocess decodes input into an image.Image.
func (l *Loader) Preprocess(ctx context.Context, input any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var img image.Image
	switch v := input.(type) {
	case image.Image:
		img = v
	case string:
		f, err := os.Open(v)
		if err != nil {
			return nil, errors.Preprocess(fmt.Sprintf("cannot open image %q", v), err)
		}
		defer f.Close()
		if img, err = decode(f); err != nil {
			return nil, err
		}
	case []byte:
		var err error
		if img, err = decode(bytes.NewReader(v)); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Preprocess(fmt.Sprintf("cannot load image from %T", input), nil)
	}

	if l.cfg.Width > 0 && l.cfg.Height > 0 {
		img = l.resize(img)
	}
	return img, nil
}

func (l *Loader) resize(src image.Image) image.Image {
	b := src.Bounds()
	if b.Dx() == l.cfg.Width && b.Dy() == l.cfg.Height {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, l.cfg.Width, l.cfg.Height))
	l.scaler.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.Preprocess("cannot decode image", err)
	}
	return img, nil
}
