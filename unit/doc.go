// Package unit defines the compute unit contract every model backend
// implements, plus middleware for cross-cutting behavior around compute
// calls.
//
// A Unit turns one preprocessed input into an Output record. Units that can
// process several inputs in one call also implement BatchUnit and declare
// Batching in their Capabilities; the pipeline falls back to per-item calls
// for everything else.
//
//	u = unit.Chain(
//	    unit.WithLogging(logger.Get("unit")),
//	    unit.WithTracing(),
//	)(u)
package unit
