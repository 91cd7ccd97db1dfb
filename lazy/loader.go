package lazy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/logger"
)

// LoadFunc materializes every export of a module.
type LoadFunc func(ctx context.Context) (map[string]any, error)

type module struct {
	name    string
	exports []string
	load    LoadFunc

	mu     sync.Mutex
	loaded bool
	values map[string]any
	loads  int
}

// Loader resolves exported names to values, loading their modules on demand.
// Export names are scoped by module; two modules may export the same name.
type Loader struct {
	mu      sync.RWMutex
	owners  map[string][]*module
	modules map[string]*module
}

// New creates an empty Loader.
func New() *Loader {
	return &Loader{
		owners:  make(map[string][]*module),
		modules: make(map[string]*module),
	}
}

// NewFromTable creates a Loader from a module table and the load function of
// each module. Every module in table must have a loader.
func NewFromTable(table map[string][]string, loaders map[string]LoadFunc) (*Loader, error) {
	l := New()
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fn, ok := loaders[name]
		if !ok {
			return nil, errors.InvalidInput("module", fmt.Sprintf("module %q has no loader", name))
		}
		if err := l.Add(name, table[name], fn); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add declares a module and the names it exports.
func (l *Loader) Add(name string, exports []string, fn LoadFunc) error {
	if fn == nil {
		return errors.InvalidInput("module", fmt.Sprintf("module %q has no loader", name))
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.modules[name]; exists {
		return errors.DuplicateKey("modules", name)
	}
	m := &module{name: name, exports: lo.Uniq(exports), load: fn}
	l.modules[name] = m
	for _, export := range m.exports {
		l.owners[export] = append(l.owners[export], m)
	}
	return nil
}

// Names returns every declared export, sorted. Nothing is loaded.
func (l *Loader) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := lo.Keys(l.owners)
	sort.Strings(names)
	return names
}

// Owners returns the sorted modules declaring export.
func (l *Loader) Owners(export string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := lo.Map(l.owners[export], func(m *module, _ int) string { return m.name })
	sort.Strings(names)
	return names
}

// Get returns the value of export, loading its module if needed. An export
// declared by more than one module must be fetched with GetFrom.
func (l *Loader) Get(ctx context.Context, export string) (any, error) {
	l.mu.RLock()
	owners := l.owners[export]
	l.mu.RUnlock()
	switch len(owners) {
	case 0:
		return nil, errors.NotFound("export", export)
	case 1:
		return owners[0].export(ctx, export)
	default:
		return nil, errors.InvalidInput("export", fmt.Sprintf("%q is exported by modules %v", export, l.Owners(export)))
	}
}

// GetFrom returns the value module exports as export, loading the module if
// needed. Nothing else is loaded.
func (l *Loader) GetFrom(ctx context.Context, name, export string) (any, error) {
	l.mu.RLock()
	m, ok := l.modules[name]
	l.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound("module", name)
	}
	if !lo.Contains(m.exports, export) {
		return nil, errors.NotFound(name, export)
	}
	return m.export(ctx, export)
}

// Load materializes a whole module and returns its exports.
func (l *Loader) Load(ctx context.Context, name string) (map[string]any, error) {
	l.mu.RLock()
	m, ok := l.modules[name]
	l.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound("module", name)
	}
	return m.materialize(ctx)
}

// Loaded reports whether a module has been successfully materialized.
func (l *Loader) Loaded(name string) bool {
	l.mu.RLock()
	m, ok := l.modules[name]
	l.mu.RUnlock()
	if !ok {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Loads returns how many times a module's LoadFunc has run.
func (l *Loader) Loads(name string) int {
	l.mu.RLock()
	m, ok := l.modules[name]
	l.mu.RUnlock()
	if !ok {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

func (m *module) export(ctx context.Context, export string) (any, error) {
	values, err := m.materialize(ctx)
	if err != nil {
		return nil, err
	}
	v, ok := values[export]
	if !ok {
		return nil, errors.ImportFailure(m.name, fmt.Errorf("module did not provide declared export %q", export))
	}
	return v, nil
}

// materialize runs the module loader at most once per successful load. The
// module mutex is held across the load so concurrent callers wait for it.
func (m *module) materialize(ctx context.Context) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return m.values, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.ImportFailure(m.name, err)
	}

	log := logger.Get("lazy")
	start := time.Now()
	m.loads++
	values, err := m.safeLoad(ctx)
	if err != nil {
		log.Warn("module load failed", logger.Fields(logger.FieldModule, m.name, logger.FieldError, err.Error()))
		return nil, errors.ImportFailure(m.name, err)
	}
	if values == nil {
		values = map[string]any{}
	}

	m.values = values
	m.loaded = true
	log.Debug("module loaded", logger.MergeWithDuration(logger.Fields(logger.FieldModule, m.name), time.Since(start)))
	return m.values, nil
}

func (m *module) safeLoad(ctx context.Context) (values map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while loading: %v", r)
		}
	}()
	return m.load(ctx)
}
