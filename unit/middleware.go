package unit

import (
	"context"
	"fmt"

	"github.com/kbukum/modelkit/errors"
)

// Operation names passed to interceptors.
const (
	OpCompute      = "compute"
	OpComputeBatch = "compute_batch"
)

// Call describes the compute call an interceptor wraps.
type Call struct {
	Unit string
	Op   string
	Size int
}

// Interceptor runs around a compute call; next performs the call.
type Interceptor func(ctx context.Context, call Call, next func(ctx context.Context) error) error

// Middleware transforms a unit by wrapping it.
type Middleware func(Unit) Unit

// Chain composes middlewares. The first middleware is outermost.
//
// Chain(a, b, c)(u) is equivalent to a(b(c(u))).
func Chain(middlewares ...Middleware) Middleware {
	return func(inner Unit) Unit {
		for i := len(middlewares) - 1; i >= 0; i-- {
			inner = middlewares[i](inner)
		}
		return inner
	}
}

// Intercept turns an Interceptor into a Middleware. The wrapped unit keeps
// the capabilities of the unit it wraps.
func Intercept(around Interceptor) Middleware {
	return func(inner Unit) Unit {
		return &intercepted{inner: inner, around: around}
	}
}

type intercepted struct {
	inner  Unit
	around Interceptor
}

func (w *intercepted) Name() string               { return w.inner.Name() }
func (w *intercepted) Capabilities() Capabilities { return CapabilitiesOf(w.inner) }
func (w *intercepted) Close() error               { return Close(w.inner) }

// Unwrap returns the wrapped unit.
func (w *intercepted) Unwrap() Unit { return w.inner }

func (w *intercepted) Compute(ctx context.Context, input any, opts Options) (Output, error) {
	var out Output
	err := w.around(ctx, Call{Unit: w.inner.Name(), Op: OpCompute, Size: 1}, func(ctx context.Context) error {
		var err error
		out, err = w.inner.Compute(ctx, input, opts)
		return err
	})
	return out, err
}

func (w *intercepted) ComputeBatch(ctx context.Context, inputs []any, opts Options) ([]Output, error) {
	b, ok := AsBatch(w.inner)
	if !ok {
		return nil, errors.Internal(fmt.Errorf("unit %q does not support batching", w.inner.Name()))
	}
	var outs []Output
	err := w.around(ctx, Call{Unit: w.inner.Name(), Op: OpComputeBatch, Size: len(inputs)}, func(ctx context.Context) error {
		var err error
		outs, err = b.ComputeBatch(ctx, inputs, opts)
		return err
	})
	return outs, err
}

// Unwrap peels every middleware layer off u.
func Unwrap(u Unit) Unit {
	for {
		w, ok := u.(interface{ Unwrap() Unit })
		if !ok {
			return u
		}
		u = w.Unwrap()
	}
}
