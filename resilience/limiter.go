package resilience

import (
	"context"
	stderrors "errors"
	"time"
)

// ErrLimiterTimeout is returned when no slot frees up within MaxWait.
var ErrLimiterTimeout = stderrors.New("concurrency limiter wait timeout")

// Limiter bounds the number of concurrent calls. Callers wait for a slot
// until their context ends or MaxWait elapses.
type Limiter struct {
	sem     chan struct{}
	maxWait time.Duration
}

// NewLimiter creates a limiter admitting maxConcurrent calls at a time.
// maxWait of zero waits as long as the context allows.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Limiter{sem: make(chan struct{}, maxConcurrent), maxWait: maxWait}
}

// Do runs fn once a slot is available.
func Do[T any](ctx context.Context, l *Limiter, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := l.acquire(ctx); err != nil {
		return zero, err
	}
	defer l.release()
	return fn(ctx)
}

func (l *Limiter) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	default:
	}

	var timeout <-chan time.Time
	if l.maxWait > 0 {
		timer := time.NewTimer(l.maxWait)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-timeout:
		return ErrLimiterTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) release() { <-l.sem }

// InUse returns the number of occupied slots.
func (l *Limiter) InUse() int { return len(l.sem) }

// Capacity returns the maximum number of concurrent calls.
func (l *Limiter) Capacity() int { return cap(l.sem) }
