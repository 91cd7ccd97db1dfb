// Package device parses device specifications and scopes a unit of work to
// a compute device.
//
// Device strings are "cpu", "gpu" or "gpu:N" ("cuda" and "cuda:N" are
// accepted as aliases), case-insensitive. WithDevice runs a body with a
// device bound for its duration. When the requested accelerator is not
// present the call falls back to the cpu with a logged warning instead of
// failing. The effective binding travels in the context, so concurrent calls
// never observe each other's device.
package device
