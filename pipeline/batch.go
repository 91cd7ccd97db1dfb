package pipeline

import "context"

// Batch groups consecutive values into slices of at most size elements.
// size <= 0 collects the whole source into a single slice.
func Batch[T any](f *Flow[T], size int) *Flow[[]T] {
	return &Flow[[]T]{
		create: func(ctx context.Context) Iterator[[]T] {
			return &batchIter[T]{source: f.create(ctx), size: size}
		},
	}
}

type batchIter[T any] struct {
	source  Iterator[T]
	size    int
	done    bool
	pending error
}

func (it *batchIter[T]) Next(ctx context.Context) ([]T, bool, error) {
	if it.pending != nil {
		err := it.pending
		it.pending = nil
		it.done = true
		return nil, false, err
	}
	if it.done {
		return nil, false, nil
	}

	var batch []T
	for it.size <= 0 || len(batch) < it.size {
		val, ok, err := it.source.Next(ctx)
		if err != nil {
			if len(batch) > 0 {
				// Emit the partial batch; the error surfaces on the next call.
				it.pending = err
				return batch, true, nil
			}
			it.done = true
			return nil, false, err
		}
		if !ok {
			it.done = true
			break
		}
		batch = append(batch, val)
	}
	if len(batch) == 0 {
		return nil, false, nil
	}
	return batch, true, nil
}

func (it *batchIter[T]) Close() error { return it.source.Close() }
