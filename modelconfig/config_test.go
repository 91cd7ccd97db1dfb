package modelconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/modelkit/errors"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const sampleConfiguration = `{
  "framework": "pytorch",
  "task": "text-classification",
  "pipeline": {"type": "text-classification"},
  "model": {"type": "bert", "num_labels": 2, "label2id": {"neg": 0, "pos": 1}},
  "preprocessor": {"type": "text-normalize", "lowercase": true},
  "postprocessor": {"type": "label-map"}
}`

func TestRead(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileConfiguration, sampleConfiguration)

	cfg, err := Read(dir)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if cfg.Empty() {
		t.Fatal("expected non-empty configuration")
	}
	if cfg.Task != "text-classification" || cfg.Framework != "pytorch" {
		t.Errorf("unexpected header %+v", cfg)
	}
	if cfg.Pipeline.Type != "text-classification" {
		t.Errorf("unexpected pipeline type %q", cfg.Pipeline.Type)
	}
	if cfg.Preprocessor.Type != "text-normalize" || cfg.Preprocessor.Params["lowercase"] != true {
		t.Errorf("unexpected preprocessor %+v", cfg.Preprocessor)
	}
	if cfg.Postprocessor.Type != "label-map" {
		t.Errorf("unexpected postprocessor %+v", cfg.Postprocessor)
	}
	if cfg.Model["num_labels"] != int64(2) {
		t.Errorf("expected integer num_labels, got %T %v", cfg.Model["num_labels"], cfg.Model["num_labels"])
	}
	if cfg.ModelType() != "bert" {
		t.Errorf("expected bert, got %q", cfg.ModelType())
	}
}

func TestRead_Missing(t *testing.T) {
	cfg, err := Read(t.TempDir())
	if err != nil {
		t.Fatalf("missing configuration must not fail: %v", err)
	}
	if !cfg.Empty() || cfg.Pipeline.Type != "" {
		t.Errorf("expected empty configuration, got %+v", cfg)
	}
}

func TestRead_Malformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileConfiguration, `{"task": `)
	_, err := Read(dir)
	if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestParse_PerModePreprocessor(t *testing.T) {
	cfg, err := Parse([]byte(`{"preprocessor": {"train": {"type": "augment"}, "val": {"type": "load-image", "mode": "rgb"}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Preprocessor.Type != "load-image" || cfg.Preprocessor.Params["mode"] != "rgb" {
		t.Errorf("expected evaluation preprocessor, got %+v", cfg.Preprocessor)
	}
}

func TestModelType(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{"type", map[string]string{FileConfiguration: `{"model": {"type": "palm"}}`}, "palm"},
		{"model_type", map[string]string{FileConfiguration: `{"model": {"model_type": "gpt3"}}`}, "gpt3"},
		{"type wins", map[string]string{FileConfiguration: `{"model": {"type": "a", "model_type": "b"}}`}, "a"},
		{"config.json fallback", map[string]string{FileConfig: `{"model_type": "llama"}`}, "llama"},
		{"nothing", nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tc.files {
				writeFile(t, dir, name, content)
			}
			got, err := ModelType(dir)
			if err != nil {
				t.Fatalf("ModelType: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestLabelMapping(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  map[string]int
	}{
		{
			"label_mapping.json first",
			map[string]string{
				FileLabelMapping:  `{"cat": 0, "dog": 1}`,
				FileConfiguration: `{"model": {"label2id": {"x": 9}}}`,
			},
			map[string]int{"cat": 0, "dog": 1},
		},
		{
			"configuration label2id",
			map[string]string{
				FileConfiguration: `{"model": {"label2id": {"Positive": 1, "Negative": 0}}}`,
				FileConfig:        `{"label2id": {"x": 9}}`,
			},
			map[string]int{"Positive": 1, "Negative": 0},
		},
		{
			"config.json label2id",
			map[string]string{FileConfig: `{"label2id": {"B-PER": 3}}`},
			map[string]int{"B-PER": 3},
		},
		{"none", nil, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tc.files {
				writeFile(t, dir, name, content)
			}
			got, err := LabelMapping(dir)
			if err != nil {
				t.Fatalf("LabelMapping: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("mapping mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInvert(t *testing.T) {
	got := Invert(map[string]int{"neg": 0, "pos": 1})
	if diff := cmp.Diff(map[int]string{0: "neg", 1: "pos"}, got); diff != "" {
		t.Errorf("invert mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge(t *testing.T) {
	base := map[string]any{
		"type":      "bert",
		"threshold": 0.5,
		"decoder":   map[string]any{"beams": int64(4), "max_len": int64(128)},
	}
	override := map[string]any{
		"threshold": 0.9,
		"decoder":   map[string]any{"beams": int64(1)},
		"extra":     true,
	}

	got, err := Merge(base, override)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	want := map[string]any{
		"type":      "bert",
		"threshold": 0.9,
		"decoder":   map[string]any{"beams": int64(1), "max_len": int64(128)},
		"extra":     true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}
	if base["threshold"] != 0.5 || base["decoder"].(map[string]any)["beams"] != int64(4) {
		t.Error("base must not be modified")
	}
}

func TestMerge_NilInputs(t *testing.T) {
	got, err := Merge(nil, map[string]any{"a": 1})
	if err != nil || got["a"] != 1 {
		t.Errorf("unexpected %v %v", got, err)
	}
	got, err = Merge(map[string]any{"a": 1}, nil)
	if err != nil || got["a"] != 1 {
		t.Errorf("unexpected %v %v", got, err)
	}
}
