// Package lazy defers materialization of exported symbols until first use.
//
// A Loader is built from a module table: each module declares the names it
// exports and a LoadFunc that produces them. Listing names never loads
// anything. The first Get for a name loads only its owning module; concurrent
// first callers block behind that single load and all receive the same value.
//
//	l := lazy.New()
//	l.Add("vision", []string{"image-stats"}, func(ctx context.Context) (map[string]any, error) {
//	    return map[string]any{"image-stats": imagestats.New}, nil
//	})
//	factory, err := l.Get(ctx, "image-stats")
//
// Export names are scoped by module. When two modules export the same name,
// GetFrom names the module explicitly.
//
// A failed load is reported as an IMPORT_FAILURE and is not remembered, so the
// next access tries again.
package lazy
