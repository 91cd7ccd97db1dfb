package resilience

import (
	stderrors "errors"
	"sync"
	"time"

	"github.com/kbukum/modelkit/logger"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling through while the circuit is open.
var ErrCircuitOpen = stderrors.New("circuit breaker is open")

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the guarded source in logs.
	Name string `yaml:"-" mapstructure:"-"`
	// MaxFailures is the number of consecutive failures that open the circuit.
	MaxFailures int `yaml:"max_failures" mapstructure:"max_failures" validate:"gte=0"`
	// Timeout is how long the circuit stays open before probing again.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// IsFailure decides which errors count; nil counts every error.
	IsFailure func(error) bool `yaml:"-" mapstructure:"-"`
}

// CircuitBreaker fails fast after repeated failures of a remote source and
// lets a single probe through once the timeout elapses.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	probeActive bool
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &CircuitBreaker{config: config, now: time.Now}
}

// Execute runs fn through the circuit breaker.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err)
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.current()
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.current() {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.probeActive {
			return false
		}
		cb.probeActive = true
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil && (cb.config.IsFailure == nil || cb.config.IsFailure(err))
	state := cb.current()
	cb.probeActive = false

	if !failed {
		cb.failures = 0
		if state != StateClosed {
			cb.transition(StateClosed)
		}
		return
	}
	cb.failures++
	if state == StateHalfOpen || cb.failures >= cb.config.MaxFailures {
		cb.openedAt = cb.now()
		cb.transition(StateOpen)
	}
}

// current resolves the open -> half-open timeout; callers hold mu.
func (cb *CircuitBreaker) current() State {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.Timeout {
		cb.transition(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	logger.Get("resilience").Info("circuit state changed", logger.Fields(
		"breaker", cb.config.Name, "from", from.String(), "to", to.String(),
	))
}
