// Package registry maps (group, name) keys to constructor descriptors.
//
// Groups partition the namespace: "pipelines" holds compute unit factories
// keyed by variant, "preprocessors" and "postprocessors" hold processor
// factories, and "default" holds anything else. Descriptors are either
// concrete (carrying a constructor) or lazy (naming the module that exports
// the constructor), in which case the attached lazy.Loader materializes them
// on first use.
//
// Registering a name twice in a group fails with DUPLICATE_KEY unless the
// descriptors are identical or WithOverwrite is given.
//
// A process-wide registry is available through Global and the package-level
// helpers; tests and embedders can build their own with New.
package registry
