package resilience

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiter_BoundsConcurrency(t *testing.T) {
	l := NewLimiter(2, 0)
	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Do(context.Background(), l, func(context.Context) (int, error) {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				active.Add(-1)
				return 0, nil
			})
			if err != nil {
				t.Errorf("Do: %v", err)
			}
		}()
	}
	wg.Wait()
	if peak.Load() > 2 {
		t.Errorf("expected at most 2 concurrent calls, saw %d", peak.Load())
	}
	if l.InUse() != 0 || l.Capacity() != 2 {
		t.Errorf("unexpected limiter state in_use=%d cap=%d", l.InUse(), l.Capacity())
	}
}

func TestLimiter_Timeout(t *testing.T) {
	l := NewLimiter(1, 10*time.Millisecond)
	release := make(chan struct{})
	go func() {
		_, _ = Do(context.Background(), l, func(context.Context) (int, error) {
			<-release
			return 0, nil
		})
	}()
	for l.InUse() == 0 {
		time.Sleep(time.Millisecond)
	}
	_, err := Do(context.Background(), l, func(context.Context) (int, error) { return 1, nil })
	close(release)
	if !stderrors.Is(err, ErrLimiterTimeout) {
		t.Errorf("expected ErrLimiterTimeout, got %v", err)
	}
}

func TestLimiter_ContextCanceled(t *testing.T) {
	l := NewLimiter(1, 0)
	release := make(chan struct{})
	defer close(release)
	go func() {
		_, _ = Do(context.Background(), l, func(context.Context) (int, error) {
			<-release
			return 0, nil
		})
	}()
	for l.InUse() == 0 {
		time.Sleep(time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := Do(ctx, l, func(context.Context) (int, error) { return 1, nil })
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
