package pipeline

import "context"

// Iterator provides pull-based sequential access to a stream of values.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

// Flow is a lazy, pull-based sequence of stages. No work happens until
// values are pulled via ToSlice, ForEach or Iter.
type Flow[T any] struct {
	create func(ctx context.Context) Iterator[T]
}

// From creates a flow from an existing Iterator.
func From[T any](iter Iterator[T]) *Flow[T] {
	return &Flow[T]{
		create: func(_ context.Context) Iterator[T] {
			return iter
		},
	}
}

// FromSlice creates a flow over a slice of values.
func FromSlice[T any](items []T) *Flow[T] {
	return &Flow[T]{
		create: func(_ context.Context) Iterator[T] {
			return &sliceIter[T]{items: items}
		},
	}
}

// ToSlice pulls every value and returns them as a slice.
func ToSlice[T any](ctx context.Context, f *Flow[T]) ([]T, error) {
	iter := f.create(ctx)
	defer iter.Close()
	var result []T
	for {
		val, ok, err := iter.Next(ctx)
		if err != nil {
			return result, err
		}
		if !ok {
			return result, nil
		}
		result = append(result, val)
	}
}

// ForEach pulls every value and calls fn for each, stopping at the first
// error.
func ForEach[T any](ctx context.Context, f *Flow[T], fn func(context.Context, T) error) error {
	iter := f.create(ctx)
	defer iter.Close()
	for {
		val, ok, err := iter.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(ctx, val); err != nil {
			return err
		}
	}
}

// Iter returns the raw Iterator for this flow. The caller must Close() it.
func (f *Flow[T]) Iter(ctx context.Context) Iterator[T] {
	return f.create(ctx)
}

type sliceIter[T any] struct {
	items []T
	index int
}

func (it *sliceIter[T]) Next(_ context.Context) (T, bool, error) {
	if it.index >= len(it.items) {
		var zero T
		return zero, false, nil
	}
	val := it.items[it.index]
	it.index++
	return val, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }
