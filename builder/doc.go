// Package builder turns a task name into a ready pipeline. It resolves the
// model artifact through a hub, picks the unit variant from the registry,
// builds the declared pre- and postprocessors and wraps the unit with the
// standard middleware.
//
//	p, err := builder.Build(ctx, "echo")
//	out, err := p.Invoke(ctx, "hello", nil)
package builder
