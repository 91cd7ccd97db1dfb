package registry

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/lazy"
	"github.com/kbukum/modelkit/logger"
)

// Well-known groups.
const (
	GroupDefault        = "default"
	GroupPipelines      = "pipelines"
	GroupPreprocessors  = "preprocessors"
	GroupPostprocessors = "postprocessors"
)

// Descriptor describes how to obtain a constructor.
type Descriptor struct {
	Group string
	Name  string
	// Task is the task a pipelines-group entry serves.
	Task string
	// Module names the lazily loaded module exporting the constructor.
	Module string
	// Export is the module's name for the constructor; defaults to Name.
	Export string
	// Constructor is set for eagerly registered entries.
	Constructor any
}

// Lazy reports whether the descriptor must be materialized through a loader.
func (d Descriptor) Lazy() bool {
	return d.Constructor == nil && d.Module != ""
}

func (d Descriptor) export() string {
	if d.Export != "" {
		return d.Export
	}
	return d.Name
}

// identical reports whether two descriptors describe the same constructor.
func (d Descriptor) identical(o Descriptor) bool {
	if d.Task != o.Task || d.Module != o.Module || d.export() != o.export() {
		return false
	}
	return sameConstructor(d.Constructor, o.Constructor)
}

func sameConstructor(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Kind() == reflect.Func {
		return va.Pointer() == vb.Pointer()
	}
	if va.Type().Comparable() {
		return a == b
	}
	return false
}

type registerOptions struct {
	overwrite bool
	export    string
}

// RegisterOption configures a registration.
type RegisterOption func(*registerOptions)

// WithOverwrite replaces an existing descriptor instead of failing.
func WithOverwrite() RegisterOption {
	return func(o *registerOptions) { o.overwrite = true }
}

// WithExport sets the module's name for a lazily declared constructor when
// it differs from the registry name.
func WithExport(export string) RegisterOption {
	return func(o *registerOptions) { o.export = export }
}

// Option configures a Registry.
type Option func(*Registry)

// WithLoader attaches the loader used to materialize lazy descriptors.
func WithLoader(l *lazy.Loader) Option {
	return func(r *Registry) { r.loader = l }
}

// Registry is a concurrency-safe table of descriptors.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]map[string]Descriptor
	loader *lazy.Loader
}

// New creates an empty Registry. Without WithLoader a fresh lazy.Loader is
// attached.
func New(opts ...Option) *Registry {
	r := &Registry{groups: make(map[string]map[string]Descriptor)}
	for _, opt := range opts {
		opt(r)
	}
	if r.loader == nil {
		r.loader = lazy.New()
	}
	return r
}

// Loader returns the loader used for lazy descriptors.
func (r *Registry) Loader() *lazy.Loader {
	return r.loader
}

// Register stores d under (group, name).
func (r *Registry) Register(group, name string, d Descriptor, opts ...RegisterOption) error {
	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}
	group = normalizeGroup(group)
	if name == "" {
		return errors.InvalidInput("name", "registry name must not be empty")
	}
	if d.Constructor == nil && d.Module == "" {
		return errors.InvalidInput("constructor", fmt.Sprintf("%q needs a constructor or a module", name))
	}
	d.Group, d.Name = group, name
	if o.export != "" {
		d.Export = o.export
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, ok := r.groups[group]
	if !ok {
		entries = make(map[string]Descriptor)
		r.groups[group] = entries
	}
	if existing, exists := entries[name]; exists && !o.overwrite {
		if existing.identical(d) {
			return nil
		}
		return errors.DuplicateKey(group, name)
	}
	entries[name] = d

	logger.Get("registry").Debug("registered", logger.Fields(
		logger.FieldGroup, group, logger.FieldName, name, logger.FieldTask, d.Task, "lazy", d.Lazy(),
	))
	return nil
}

// Declare registers a lazy descriptor whose constructor module exports under
// name, or under the name given by WithExport.
func (r *Registry) Declare(group, name, task, module string, opts ...RegisterOption) error {
	return r.Register(group, name, Descriptor{Task: task, Module: module}, opts...)
}

// Lookup returns the descriptor under (group, name).
func (r *Registry) Lookup(group, name string) (Descriptor, error) {
	group = normalizeGroup(group)
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.groups[group][name]
	if !ok {
		return Descriptor{}, errors.NotFound(group, name)
	}
	return d, nil
}

// Has reports whether (group, name) is registered.
func (r *Registry) Has(group, name string) bool {
	_, err := r.Lookup(group, name)
	return err == nil
}

// ListGroup returns the sorted names registered in group.
func (r *Registry) ListGroup(group string) []string {
	group = normalizeGroup(group)
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := lo.Keys(r.groups[group])
	sort.Strings(names)
	return names
}

// Groups returns the sorted names of all non-empty groups.
func (r *Registry) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	groups := lo.Filter(lo.Keys(r.groups), func(g string, _ int) bool {
		return len(r.groups[g]) > 0
	})
	sort.Strings(groups)
	return groups
}

// Variants returns the sorted pipelines-group names serving task.
func (r *Registry) Variants(task string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, d := range r.groups[GroupPipelines] {
		if d.Task == task {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Tasks returns the sorted distinct tasks served by the pipelines group.
func (r *Registry) Tasks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tasks := lo.Uniq(lo.FilterMap(lo.Values(r.groups[GroupPipelines]), func(d Descriptor, _ int) (string, bool) {
		return d.Task, d.Task != ""
	}))
	sort.Strings(tasks)
	return tasks
}

// Materialize returns the constructor for (group, name), loading its module
// through the attached loader when the descriptor is lazy.
func (r *Registry) Materialize(ctx context.Context, group, name string) (any, error) {
	d, err := r.Lookup(group, name)
	if err != nil {
		return nil, err
	}
	if !d.Lazy() {
		return d.Constructor, nil
	}
	v, err := r.loader.GetFrom(ctx, d.Module, d.export())
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return nil, errors.ImportFailure(d.Module, err)
		}
		return nil, err
	}
	return v, nil
}

// Resolve materializes (group, name) and asserts its type.
func Resolve[T any](ctx context.Context, r *Registry, group, name string) (T, error) {
	var zero T
	v, err := r.Materialize(ctx, group, name)
	if err != nil {
		return zero, err
	}
	result, ok := v.(T)
	if !ok {
		return zero, errors.ConstructorFailure(name, fmt.Errorf("registered constructor is %T, expected %T", v, zero))
	}
	return result, nil
}

func normalizeGroup(group string) string {
	if group == "" {
		return GroupDefault
	}
	return group
}
