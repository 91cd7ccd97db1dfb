// Package text provides text preprocessors and postprocessors: input
// normalization, special token cleanup and label id mapping.
package text

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/modelconfig"
	"github.com/kbukum/modelkit/processor"
	"github.com/kbukum/modelkit/unit"
)

// Registered processor names.
const (
	Normalize = "text-normalize"
	Cleanup   = "text-cleanup"
	LabelMap  = "label-map"
)

func init() {
	processor.RegisterPreprocessor(Normalize, NewNormalizer)
	processor.RegisterPostprocessor(Cleanup, NewCleanup)
	processor.RegisterPostprocessor(LabelMap, NewLabelMapper)
}

// NormalizeConfig controls text normalization.
type NormalizeConfig struct {
	Lowercase bool `mapstructure:"lowercase"`
	// KeepSpace disables trimming and whitespace collapsing.
	KeepSpace bool `mapstructure:"keep_space"`
	MaxLength int  `mapstructure:"max_length"`
}

// Normalizer turns string or byte input into normalized text.
type Normalizer struct {
	cfg NormalizeConfig
}

// NewNormalizer builds a Normalizer from a preprocessor section.
func NewNormalizer(_ context.Context, p processor.Params) (processor.Preprocessor, error) {
	var cfg NormalizeConfig
	if err := modelconfig.Decode(p.Config, &cfg); err != nil {
		return nil, err
	}
	return &Normalizer{cfg: cfg}, nil
}

// Accepts returns the input kinds the normalizer handles.
func (n *Normalizer) Accepts() []processor.InputKind {
	return []processor.InputKind{processor.KindPath, processor.KindBytes}
}

// Preprocess normalizes input.
func (n *Normalizer) Preprocess(_ context.Context, input any) (any, error) {
	var s string
	switch v := input.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case fmt.Stringer:
		s = v.String()
	default:
		return nil, errors.Preprocess(fmt.Sprintf("cannot normalize %T as text", input), nil)
	}

	if !n.cfg.KeepSpace {
		s = strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
	}
	if n.cfg.Lowercase {
		s = strings.ToLower(s)
	}
	if n.cfg.MaxLength > 0 {
		if r := []rune(s); len(r) > n.cfg.MaxLength {
			s = string(r[:n.cfg.MaxLength])
		}
	}
	return s, nil
}

// defaultSpecialTokens are the markers BERT and RoBERTa style tokenizers
// leave in decoded text.
var defaultSpecialTokens = []string{
	"[CLS]", "[SEP]", "[PAD]", "[UNK]", "[MASK]",
	"<s>", "</s>", "<pad>", "<unk>", "<mask>",
}

// CleanupConfig controls special token removal.
type CleanupConfig struct {
	Key    string   `mapstructure:"key"`
	Tokens []string `mapstructure:"tokens"`
}

// TokenCleanup strips special tokens from a text output field.
type TokenCleanup struct {
	key      string
	replacer *strings.Replacer
}

// NewCleanup builds a TokenCleanup from a postprocessor section.
func NewCleanup(_ context.Context, p processor.Params) (processor.Postprocessor, error) {
	cfg := CleanupConfig{Key: unit.KeyText}
	if err := modelconfig.Decode(p.Config, &cfg); err != nil {
		return nil, err
	}
	tokens := cfg.Tokens
	if len(tokens) == 0 {
		tokens = defaultSpecialTokens
	}
	pairs := make([]string, 0, 2*len(tokens))
	for _, tok := range tokens {
		pairs = append(pairs, tok, "")
	}
	return &TokenCleanup{key: cfg.Key, replacer: strings.NewReplacer(pairs...)}, nil
}

// Postprocess removes special tokens and WordPiece continuation markers.
func (c *TokenCleanup) Postprocess(_ context.Context, out unit.Output) (unit.Output, error) {
	raw, ok := out[c.key]
	if !ok {
		return out, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("output %q is %T, not text", c.key, raw))
	}
	s = c.replacer.Replace(s)
	s = strings.ReplaceAll(s, " ##", "")
	s = strings.Join(strings.Fields(s), " ")

	result := make(unit.Output, len(out))
	for k, v := range out {
		result[k] = v
	}
	result[c.key] = s
	return result, nil
}
