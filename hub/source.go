package hub

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"

	"github.com/kbukum/modelkit/errors"
)

// File is one file of a model repository, relative to its root.
type File struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Source lists and downloads the files of model repositories. Missing
// repositories and files are reported as NOT_FOUND; any other error is
// treated as transient and retried.
type Source interface {
	List(ctx context.Context, ref Ref) ([]File, error)
	Fetch(ctx context.Context, ref Ref, file File, w io.Writer) error
}

// SourceFactory creates a Source from its section of Config.Sources.
type SourceFactory func(ctx context.Context, settings map[string]any) (Source, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]SourceFactory)
)

// RegisterSource registers a source factory for a key scheme. Source
// packages call this from init.
func RegisterSource(scheme string, f SourceFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, dup := factories[scheme]; dup {
		panic(fmt.Sprintf("hub: source %q already registered", scheme))
	}
	factories[scheme] = f
}

// Schemes lists the registered source schemes.
func Schemes() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	out := make([]string, 0, len(factories))
	for s := range factories {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func lookupFactory(scheme string) (SourceFactory, error) {
	factoriesMu.RLock()
	f, ok := factories[scheme]
	factoriesMu.RUnlock()
	if !ok {
		return nil, errors.NotFound("hub source", scheme).
			WithDetail("registered", Schemes())
	}
	return f, nil
}

// DecodeSettings decodes a source's settings section into out.
func DecodeSettings(settings map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(settings); err != nil {
		return errors.InvalidInput("sources", err.Error())
	}
	return nil
}
