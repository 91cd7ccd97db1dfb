package text

import (
	"context"
	"fmt"

	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/modelconfig"
	"github.com/kbukum/modelkit/processor"
	"github.com/kbukum/modelkit/unit"
)

// LabelMapper replaces integer class ids in the labels field with names.
type LabelMapper struct {
	id2label map[int]string
}

// NewLabelMapper reads the label mapping from the model directory, unless
// the postprocessor section carries its own label2id table.
func NewLabelMapper(_ context.Context, p processor.Params) (processor.Postprocessor, error) {
	var cfg struct {
		Label2ID map[string]int `mapstructure:"label2id"`
	}
	if err := modelconfig.Decode(p.Config, &cfg); err != nil {
		return nil, err
	}
	label2id := cfg.Label2ID
	if len(label2id) == 0 && p.ModelDir != "" {
		var err error
		if label2id, err = modelconfig.LabelMapping(p.ModelDir); err != nil {
			return nil, err
		}
	}
	if len(label2id) == 0 {
		return nil, errors.NotFound("label mapping", p.ModelDir)
	}
	return &LabelMapper{id2label: modelconfig.Invert(label2id)}, nil
}

// Postprocess maps labels. Unknown ids are kept as their decimal string.
func (m *LabelMapper) Postprocess(_ context.Context, out unit.Output) (unit.Output, error) {
	raw, ok := out[unit.KeyLabels]
	if !ok {
		return out, nil
	}

	var mapped any
	switch v := raw.(type) {
	case int:
		mapped = m.name(v)
	case []int:
		names := make([]string, len(v))
		for i, id := range v {
			names[i] = m.name(id)
		}
		mapped = names
	case []any:
		names := make([]string, len(v))
		for i, item := range v {
			id, ok := toInt(item)
			if !ok {
				return nil, fmt.Errorf("label %d is %T, not an integer id", i, item)
			}
			names[i] = m.name(id)
		}
		mapped = names
	case []string, string:
		return out, nil
	default:
		return nil, fmt.Errorf("labels are %T, not integer ids", raw)
	}

	result := make(unit.Output, len(out))
	for k, v := range out {
		result[k] = v
	}
	result[unit.KeyLabels] = mapped
	return result, nil
}

func (m *LabelMapper) name(id int) string {
	if s, ok := m.id2label[id]; ok {
		return s
	}
	return fmt.Sprintf("%d", id)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	default:
		return 0, false
	}
}
