package processor

import (
	"context"
	"testing"

	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/registry"
	"github.com/kbukum/modelkit/unit"
)

type pathOnly struct{ PreprocessFunc }

func (pathOnly) Accepts() []InputKind { return []InputKind{KindPath} }

func TestKindOf(t *testing.T) {
	tests := []struct {
		input any
		want  InputKind
	}{
		{"a.png", KindPath},
		{[]byte{1}, KindBytes},
		{3, KindDecoded},
	}
	for _, tt := range tests {
		if got := KindOf(tt.input); got != tt.want {
			t.Errorf("KindOf(%T) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestCheckInput(t *testing.T) {
	p := pathOnly{}
	if err := CheckInput(p, "file.txt"); err != nil {
		t.Errorf("path should be accepted: %v", err)
	}
	err := CheckInput(p, []byte("x"))
	if !errors.HasCode(err, errors.ErrCodePreprocess) {
		t.Errorf("expected PREPROCESS_ERROR, got %v", err)
	}
	unrestricted := PreprocessFunc(func(_ context.Context, in any) (any, error) { return in, nil })
	if err := CheckInput(unrestricted, 42); err != nil {
		t.Errorf("unrestricted preprocessor rejected input: %v", err)
	}
}

func TestNewPreprocessor(t *testing.T) {
	r := registry.New()
	var factory PreprocessorFactory = func(_ context.Context, p Params) (Preprocessor, error) {
		return PreprocessFunc(func(_ context.Context, in any) (any, error) {
			return p.Config["prefix"].(string) + in.(string), nil
		}), nil
	}
	if err := r.Register(registry.GroupPreprocessors, "prefix", registry.Descriptor{Constructor: factory}); err != nil {
		t.Fatal(err)
	}

	pre, err := NewPreprocessor(context.Background(), r, "prefix", Params{Config: map[string]any{"prefix": ">"}})
	if err != nil {
		t.Fatalf("NewPreprocessor: %v", err)
	}
	got, _ := pre.Preprocess(context.Background(), "x")
	if got != ">x" {
		t.Errorf("got %v", got)
	}

	if _, err := NewPreprocessor(context.Background(), r, "missing", Params{}); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestNewPostprocessor_ConstructorFailure(t *testing.T) {
	r := registry.New()
	var factory PostprocessorFactory = func(context.Context, Params) (Postprocessor, error) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "bad")
	}
	_ = r.Register(registry.GroupPostprocessors, "bad", registry.Descriptor{Constructor: factory})

	_, err := NewPostprocessor(context.Background(), r, "bad", Params{})
	if !errors.HasCode(err, errors.ErrCodeConstructorFailure) {
		t.Errorf("expected CONSTRUCTOR_FAILURE, got %v", err)
	}

	post := PostprocessFunc(func(_ context.Context, out unit.Output) (unit.Output, error) { return out, nil })
	if _, err := post.Postprocess(context.Background(), unit.Output{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
