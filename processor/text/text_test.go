package text

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/processor"
	"github.com/kbukum/modelkit/registry"
	"github.com/kbukum/modelkit/unit"
)

func TestNormalizer(t *testing.T) {
	tests := []struct {
		name  string
		cfg   map[string]any
		input any
		want  string
	}{
		{"collapse whitespace", nil, "  Hello \n\t World ", "Hello World"},
		{"lowercase bytes", map[string]any{"lowercase": true}, []byte("ABC Def"), "abc def"},
		{"keep space", map[string]any{"keep_space": true}, " a  b ", " a  b "},
		{"truncate runes", map[string]any{"max_length": 3}, "héllo", "hél"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewNormalizer(context.Background(), processor.Params{Config: tt.cfg})
			if err != nil {
				t.Fatalf("NewNormalizer: %v", err)
			}
			got, err := n.Preprocess(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("Preprocess: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizer_RejectsNonText(t *testing.T) {
	n, _ := NewNormalizer(context.Background(), processor.Params{})
	_, err := n.Preprocess(context.Background(), 3.14)
	if !errors.HasCode(err, errors.ErrCodePreprocess) {
		t.Errorf("expected PREPROCESS_ERROR, got %v", err)
	}
	if err := processor.CheckInput(n, 3.14); !errors.HasCode(err, errors.ErrCodePreprocess) {
		t.Errorf("CheckInput should reject decoded values, got %v", err)
	}
}

func TestTokenCleanup(t *testing.T) {
	c, err := NewCleanup(context.Background(), processor.Params{})
	if err != nil {
		t.Fatalf("NewCleanup: %v", err)
	}
	in := unit.Output{unit.KeyText: "[CLS] play ##ing chess [SEP] [PAD]", unit.KeyScores: []float64{0.5}}
	got, err := c.Postprocess(context.Background(), in)
	if err != nil {
		t.Fatalf("Postprocess: %v", err)
	}
	want := unit.Output{unit.KeyText: "playing chess", unit.KeyScores: []float64{0.5}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if in[unit.KeyText] != "[CLS] play ##ing chess [SEP] [PAD]" {
		t.Error("input output record must not be mutated")
	}
}

func TestTokenCleanup_CustomTokens(t *testing.T) {
	c, _ := NewCleanup(context.Background(), processor.Params{Config: map[string]any{"tokens": []any{"<eos>"}}})
	got, err := c.Postprocess(context.Background(), unit.Output{unit.KeyText: "done <eos>"})
	if err != nil {
		t.Fatalf("Postprocess: %v", err)
	}
	if got[unit.KeyText] != "done" {
		t.Errorf("text = %q", got[unit.KeyText])
	}
}

func TestLabelMapper_FromModelDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "label_mapping.json"), []byte(`{"cat": 0, "dog": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := NewLabelMapper(context.Background(), processor.Params{ModelDir: dir})
	if err != nil {
		t.Fatalf("NewLabelMapper: %v", err)
	}

	tests := []struct {
		name   string
		labels any
		want   any
	}{
		{"slice of int", []int{1, 0, 7}, []string{"dog", "cat", "7"}},
		{"json numbers", []any{float64(0)}, []string{"cat"}},
		{"scalar", 1, "dog"},
		{"already names", []string{"x"}, []string{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Postprocess(context.Background(), unit.Output{unit.KeyLabels: tt.labels})
			if err != nil {
				t.Fatalf("Postprocess: %v", err)
			}
			if diff := cmp.Diff(tt.want, got[unit.KeyLabels]); diff != "" {
				t.Errorf("labels mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLabelMapper_Inline(t *testing.T) {
	m, err := NewLabelMapper(context.Background(), processor.Params{Config: map[string]any{
		"label2id": map[string]any{"neg": 0, "pos": 1},
	}})
	if err != nil {
		t.Fatalf("NewLabelMapper: %v", err)
	}
	got, _ := m.Postprocess(context.Background(), unit.Output{unit.KeyLabels: []int{1}})
	if diff := cmp.Diff([]string{"pos"}, got[unit.KeyLabels]); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestLabelMapper_Missing(t *testing.T) {
	_, err := NewLabelMapper(context.Background(), processor.Params{ModelDir: t.TempDir()})
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestRegistered(t *testing.T) {
	for group, names := range map[string][]string{
		registry.GroupPreprocessors:  {Normalize},
		registry.GroupPostprocessors: {Cleanup, LabelMap},
	} {
		for _, name := range names {
			if !registry.Global().Has(group, name) {
				t.Errorf("%s/%s not registered", group, name)
			}
		}
	}
}
