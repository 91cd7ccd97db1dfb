package registry

import "context"

var global = New()

// Global returns the process-wide registry populated by package init
// functions.
func Global() *Registry {
	return global
}

// Register stores d in the global registry.
func Register(group, name string, d Descriptor, opts ...RegisterOption) error {
	return global.Register(group, name, d, opts...)
}

// MustRegister is Register for init functions; it panics on conflict.
func MustRegister(group, name string, d Descriptor, opts ...RegisterOption) {
	if err := global.Register(group, name, d, opts...); err != nil {
		panic(err)
	}
}

// Declare registers a lazy descriptor in the global registry.
func Declare(group, name, task, module string, opts ...RegisterOption) error {
	return global.Declare(group, name, task, module, opts...)
}

// Lookup returns a descriptor from the global registry.
func Lookup(group, name string) (Descriptor, error) {
	return global.Lookup(group, name)
}

// ListGroup lists a group of the global registry.
func ListGroup(group string) []string {
	return global.ListGroup(group)
}

// Materialize materializes a constructor from the global registry.
func Materialize(ctx context.Context, group, name string) (any, error) {
	return global.Materialize(ctx, group, name)
}
