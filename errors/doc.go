// Package errors provides the structured error type used across modelkit.
// Every failure surfaced by the registry, loader, device placement, builder
// and pipeline is an *AppError carrying a machine-readable code, a retryable
// flag and the underlying cause.
package errors
