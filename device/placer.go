package device

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/logger"
)

// State is the lifecycle of a device scope.
type State int32

const (
	Unbound State = iota
	Activating
	Active
	Restoring
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Activating:
		return "activating"
	case Active:
		return "active"
	case Restoring:
		return "restoring"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Activator makes a binding current for a backend and returns the function
// that undoes it.
type Activator interface {
	Activate(ctx context.Context, b Binding) (restore func(), err error)
}

// ActivatorFunc adapts a function to Activator.
type ActivatorFunc func(ctx context.Context, b Binding) (func(), error)

// Activate implements Activator.
func (f ActivatorFunc) Activate(ctx context.Context, b Binding) (func(), error) {
	return f(ctx, b)
}

type noopActivator struct{}

func (noopActivator) Activate(context.Context, Binding) (func(), error) {
	return func() {}, nil
}

// FallbackFunc observes a gpu request served on the cpu.
type FallbackFunc func(requested, actual Binding, reason string)

// Scope is the device state of one WithDevice call.
type Scope struct {
	Requested Binding
	Binding   Binding
	state     atomic.Int32
}

// State returns the scope's lifecycle state.
func (s *Scope) State() State { return State(s.state.Load()) }

// FellBack reports whether the requested device was replaced.
func (s *Scope) FellBack() bool { return s.Requested != s.Binding }

type scopeKey struct{}

// ScopeFromContext returns the innermost device scope.
func ScopeFromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok
}

// Current returns the effective binding of the innermost scope, or the cpu
// when ctx carries none.
func Current(ctx context.Context) Binding {
	if s, ok := ScopeFromContext(ctx); ok {
		return s.Binding
	}
	return CPUBinding
}

// Option configures a Placer.
type Option func(*Placer)

// WithDetector sets how accelerators are discovered.
func WithDetector(d Detector) Option {
	return func(p *Placer) { p.detector = d }
}

// WithActivator sets the backend activation hook.
func WithActivator(a Activator) Option {
	return func(p *Placer) { p.activator = a }
}

// WithFallbackHook registers an observer for cpu fallbacks.
func WithFallbackHook(fn FallbackFunc) Option {
	return func(p *Placer) { p.onFallback = append(p.onFallback, fn) }
}

// WithGPUDisabled forces every binding onto the cpu.
func WithGPUDisabled(disabled bool) Option {
	return func(p *Placer) { p.gpuDisabled = disabled }
}

// Placer resolves bindings against detected hardware and runs scoped work.
type Placer struct {
	detector    Detector
	activator   Activator
	onFallback  []FallbackFunc
	gpuDisabled bool

	fallbacks atomic.Int64
	warnOnce  sync.Map
}

// NewPlacer creates a Placer. Without options it inspects the host and
// activates nothing.
func NewPlacer(opts ...Option) *Placer {
	p := &Placer{}
	for _, opt := range opts {
		opt(p)
	}
	if p.detector == nil {
		p.detector = NewSystemDetector()
	}
	if p.activator == nil {
		p.activator = noopActivator{}
	}
	return p
}

// NewPlacerFromConfig creates a Placer honoring cfg.
func NewPlacerFromConfig(cfg Config, opts ...Option) *Placer {
	return NewPlacer(append([]Option{WithGPUDisabled(cfg.DisableGPU)}, opts...)...)
}

// Inventory returns the detected accelerators; detection errors yield an
// empty inventory.
func (p *Placer) Inventory(ctx context.Context) Inventory {
	if p.gpuDisabled {
		return Inventory{}
	}
	inv, err := p.detector.Detect(ctx)
	if err != nil {
		logger.Get("device").Warn("accelerator detection failed", logger.Fields(logger.FieldError, err.Error()))
		return Inventory{}
	}
	return inv
}

// Default returns the first accelerator, or the cpu when none is present.
func (p *Placer) Default(ctx context.Context) Binding {
	inv := p.Inventory(ctx)
	if len(inv.Accelerators) == 0 {
		return CPUBinding
	}
	return GPUBinding(inv.Accelerators[0].ID)
}

// Fallbacks returns how many scopes were served on the cpu instead of the
// requested accelerator.
func (p *Placer) Fallbacks() int64 {
	return p.fallbacks.Load()
}

// Resolve returns the binding that will serve requested and, when it
// differs, why.
func (p *Placer) Resolve(ctx context.Context, requested Binding) (Binding, string) {
	if !requested.IsGPU() {
		return CPUBinding, ""
	}
	if p.gpuDisabled {
		return CPUBinding, "gpu disabled by configuration"
	}
	inv := p.Inventory(ctx)
	if len(inv.Accelerators) == 0 {
		return CPUBinding, "no gpu available"
	}
	if !inv.Has(requested.ID) {
		return CPUBinding, fmt.Sprintf("gpu %d not present (%d visible)", requested.ID, len(inv.Accelerators))
	}
	return requested, ""
}

func (p *Placer) fallback(requested, actual Binding, reason string) {
	p.fallbacks.Add(1)
	// one warning per requested device keeps batch loops readable
	if _, seen := p.warnOnce.LoadOrStore(requested, struct{}{}); !seen {
		logger.Get("device").Warn("requested device unavailable, falling back to cpu", logger.Fields(
			"requested", requested.String(), logger.FieldDevice, actual.String(), "reason", reason,
		))
	} else {
		logger.Get("device").Debug("device fallback", logger.Fields("requested", requested.String(), "reason", reason))
	}
	for _, fn := range p.onFallback {
		fn(requested, actual, reason)
	}
}

// activate binds scope to its device, degrading a failed gpu activation to
// the cpu.
func (p *Placer) activate(ctx context.Context, scope *Scope) (func(), error) {
	restore, err := p.activator.Activate(ctx, scope.Binding)
	if err == nil {
		return restore, nil
	}
	if !scope.Binding.IsGPU() {
		return nil, errors.Internal(fmt.Errorf("activate cpu: %w", err))
	}
	p.fallback(scope.Requested, CPUBinding, "activation failed: "+err.Error())
	scope.Binding = CPUBinding
	restore, err = p.activator.Activate(ctx, CPUBinding)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("activate cpu: %w", err))
	}
	return restore, nil
}

// WithDevice runs body with b bound for its duration. The previous device
// state is restored when body returns, fails or panics.
func WithDevice[T any](ctx context.Context, p *Placer, b Binding, body func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	scope := &Scope{Requested: b}
	scope.state.Store(int32(Activating))

	effective, reason := p.Resolve(ctx, b)
	if reason != "" {
		p.fallback(b, effective, reason)
	}
	scope.Binding = effective

	restore, err := p.activate(ctx, scope)
	if err != nil {
		scope.state.Store(int32(Unbound))
		return zero, err
	}
	scope.state.Store(int32(Active))
	defer func() {
		scope.state.Store(int32(Restoring))
		restore()
		scope.state.Store(int32(Unbound))
	}()

	return body(context.WithValue(ctx, scopeKey{}, scope))
}
