package pipeline

import "context"

// Map transforms each value using fn.
func Map[I, O any](f *Flow[I], fn func(context.Context, I) (O, error)) *Flow[O] {
	return &Flow[O]{
		create: func(ctx context.Context) Iterator[O] {
			return &mapIter[I, O]{source: f.create(ctx), fn: fn}
		},
	}
}

// Filter keeps only values that satisfy the predicate.
func Filter[T any](f *Flow[T], fn func(T) bool) *Flow[T] {
	return &Flow[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &filterIter[T]{source: f.create(ctx), fn: fn}
		},
	}
}

// Tap calls fn for each value and passes the value through unchanged.
func Tap[T any](f *Flow[T], fn func(context.Context, T) error) *Flow[T] {
	return &Flow[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &tapIter[T]{source: f.create(ctx), fn: fn}
		},
	}
}

// Indexed pairs a value with its position in the source.
type Indexed[T any] struct {
	Index int
	Value T
}

// Enumerate tags each value with its zero-based position.
func Enumerate[T any](f *Flow[T]) *Flow[Indexed[T]] {
	return &Flow[Indexed[T]]{
		create: func(ctx context.Context) Iterator[Indexed[T]] {
			return &enumerateIter[T]{source: f.create(ctx)}
		},
	}
}

type mapIter[I, O any] struct {
	source Iterator[I]
	fn     func(context.Context, I) (O, error)
}

func (it *mapIter[I, O]) Next(ctx context.Context) (result O, ok bool, err error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return result, false, err
	}
	out, err := it.fn(ctx, val)
	if err != nil {
		return result, false, err
	}
	return out, true, nil
}

func (it *mapIter[I, O]) Close() error { return it.source.Close() }

type filterIter[T any] struct {
	source Iterator[T]
	fn     func(T) bool
}

func (it *filterIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	for {
		val, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return result, false, err
		}
		if it.fn(val) {
			return val, true, nil
		}
	}
}

func (it *filterIter[T]) Close() error { return it.source.Close() }

type tapIter[T any] struct {
	source Iterator[T]
	fn     func(context.Context, T) error
}

func (it *tapIter[T]) Next(ctx context.Context) (result T, ok bool, err error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return result, false, err
	}
	if err := it.fn(ctx, val); err != nil {
		return result, false, err
	}
	return val, true, nil
}

func (it *tapIter[T]) Close() error { return it.source.Close() }

type enumerateIter[T any] struct {
	source Iterator[T]
	next   int
}

func (it *enumerateIter[T]) Next(ctx context.Context) (Indexed[T], bool, error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return Indexed[T]{}, false, err
	}
	out := Indexed[T]{Index: it.next, Value: val}
	it.next++
	return out, true, nil
}

func (it *enumerateIter[T]) Close() error { return it.source.Close() }
