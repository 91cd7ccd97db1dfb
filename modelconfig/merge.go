package modelconfig

import (
	"github.com/imdario/mergo"
)

// Merge deep-merges override onto base and returns a new map; keys present
// in override win. Neither input is modified.
func Merge(base, override map[string]any) (map[string]any, error) {
	dst := clone(base)
	if dst == nil {
		dst = map[string]any{}
	}
	if len(override) == 0 {
		return dst, nil
	}
	if err := mergo.Merge(&dst, clone(override), mergo.WithOverride); err != nil {
		return nil, err
	}
	return dst, nil
}

func clone(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = clone(sub)
			continue
		}
		out[k] = v
	}
	return out
}
