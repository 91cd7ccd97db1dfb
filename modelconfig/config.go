package modelconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"

	"github.com/kbukum/modelkit/errors"
)

// Files found in a model directory.
const (
	FileConfiguration = "configuration.json"
	FileConfig        = "config.json"
	FileLabelMapping  = "label_mapping.json"
)

// Section is a typed sub-configuration such as "pipeline" or
// "preprocessor". Params holds every key besides type.
type Section struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:",remain"`
}

// Configuration is the decoded configuration artifact.
type Configuration struct {
	Framework     string         `mapstructure:"framework"`
	Task          string         `mapstructure:"task"`
	Pipeline      Section        `mapstructure:"pipeline"`
	Model         map[string]any `mapstructure:"model"`
	Preprocessor  Section        `mapstructure:"-"`
	Postprocessor Section        `mapstructure:"-"`

	// Raw is the file content as decoded JSON.
	Raw map[string]any `mapstructure:"-"`
}

// Empty reports whether no configuration artifact was found.
func (c *Configuration) Empty() bool {
	return len(c.Raw) == 0
}

// Read loads configuration.json from dir. A missing file is not an error.
func Read(dir string) (*Configuration, error) {
	path := filepath.Join(dir, FileConfiguration)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Configuration{Raw: map[string]any{}}, nil
		}
		return nil, errors.InvalidInput(FileConfiguration, "cannot read configuration").WithCause(err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a configuration artifact.
func Parse(data []byte) (*Configuration, error) {
	raw, err := decodeJSON(data)
	if err != nil {
		return nil, errors.InvalidInput(FileConfiguration, "malformed configuration").WithCause(err)
	}

	cfg := &Configuration{Raw: raw}
	if err := Decode(raw, cfg); err != nil {
		return nil, errors.InvalidInput(FileConfiguration, "unexpected configuration layout").WithCause(err)
	}
	if cfg.Model == nil {
		cfg.Model = map[string]any{}
	}
	if cfg.Preprocessor, err = processorSection(raw["preprocessor"]); err != nil {
		return nil, errors.InvalidInput("preprocessor", "unexpected section layout").WithCause(err)
	}
	if cfg.Postprocessor, err = processorSection(raw["postprocessor"]); err != nil {
		return nil, errors.InvalidInput("postprocessor", "unexpected section layout").WithCause(err)
	}
	return cfg, nil
}

// processorSection accepts either {"type": ...} or a per-mode layout
// {"train": {...}, "val": {...}}, in which case the evaluation entry serves
// inference.
func processorSection(v any) (Section, error) {
	var s Section
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return s, nil
	}
	if _, typed := m["type"]; !typed {
		for _, mode := range []string{"val", "inference", "eval"} {
			if sub, ok := m[mode].(map[string]any); ok {
				m = sub
				break
			}
		}
	}
	err := Decode(m, &s)
	return s, err
}

// ModelType returns model.type, or model.model_type when type is absent.
func (c *Configuration) ModelType() string {
	if t, ok := c.Model["type"].(string); ok && t != "" {
		return t
	}
	if t, ok := c.Model["model_type"].(string); ok {
		return t
	}
	return ""
}

// Decode copies a generic map into a typed struct, converting loosely typed
// JSON values (numbers, strings) where needed.
func Decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// ModelType reads the model type of a model directory, falling back to
// config.json's model_type when there is no configuration artifact.
func ModelType(dir string) (string, error) {
	if fileExists(filepath.Join(dir, FileConfiguration)) {
		cfg, err := Read(dir)
		if err != nil {
			return "", err
		}
		return cfg.ModelType(), nil
	}
	raw, err := readJSONFile(filepath.Join(dir, FileConfig))
	if err != nil || raw == nil {
		return "", err
	}
	t, _ := raw["model_type"].(string)
	return t, nil
}

// LabelMapping returns the label-to-id mapping of a model directory from
// label_mapping.json, configuration.json model.label2id or config.json
// label2id, in that order. A nil map means no mapping was found.
func LabelMapping(dir string) (map[string]int, error) {
	if raw, err := readJSONFile(filepath.Join(dir, FileLabelMapping)); err != nil {
		return nil, err
	} else if raw != nil {
		return toLabelMap(raw)
	}

	cfg, err := Read(dir)
	if err != nil {
		return nil, err
	}
	if m, ok := cfg.Model["label2id"].(map[string]any); ok {
		return toLabelMap(m)
	}

	raw, err := readJSONFile(filepath.Join(dir, FileConfig))
	if err != nil || raw == nil {
		return nil, err
	}
	if m, ok := raw["label2id"].(map[string]any); ok {
		return toLabelMap(m)
	}
	return nil, nil
}

// Invert turns a label2id mapping into id2label.
func Invert(label2id map[string]int) map[int]string {
	out := make(map[int]string, len(label2id))
	for label, id := range label2id {
		out[id] = label
	}
	return out
}

func toLabelMap(m map[string]any) (map[string]int, error) {
	out := make(map[string]int, len(m))
	if err := Decode(m, &out); err != nil {
		return nil, errors.InvalidInput("label2id", "label ids must be integers").WithCause(err)
	}
	return out, nil
}

// readJSONFile returns nil without error when the file does not exist.
func readJSONFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.InvalidInput(filepath.Base(path), "cannot read file").WithCause(err)
	}
	raw, err := decodeJSON(data)
	if err != nil {
		return nil, errors.InvalidInput(filepath.Base(path), "malformed json").WithCause(err)
	}
	return raw, nil
}

// decodeJSON keeps numbers as json.Number so integer ids survive intact.
func decodeJSON(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("expected a json object")
	}
	return normalizeNumbers(raw).(map[string]any), nil
}

// normalizeNumbers converts json.Number into int64 or float64.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeNumbers(val)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	default:
		return v
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
