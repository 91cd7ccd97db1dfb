// Package processor defines the preprocessing and postprocessing stages that
// surround a compute unit, and the factories the builder uses to construct
// them from a model's configuration artifact.
//
// Builtin processors live in the image and text subpackages and register
// themselves in the global registry when imported.
package processor
