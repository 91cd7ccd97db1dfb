package pipeline

import (
	"context"

	"github.com/kbukum/modelkit/unit"
)

// Result is one item of a Stream.
type Result struct {
	Index  int
	Input  any
	Output unit.Output
	Err    error
}

// Stream lazily invokes the pipeline for each value pulled from src. Under
// Collect a failing item is delivered as a Result carrying Err; under
// FailFast the first failure ends the stream with that error.
func (p *Pipeline) Stream(ctx context.Context, src Iterator[any], opts unit.Options) Iterator[Result] {
	flow := Map(Enumerate(From(src)), func(ctx context.Context, it Indexed[any]) (Result, error) {
		out, err := p.Invoke(ctx, it.Value, opts)
		if err != nil && p.policy == FailFast {
			return Result{}, &BatchError{Policy: p.policy, Total: it.Index + 1, Items: []ItemError{{Index: it.Index, Err: err}}}
		}
		return Result{Index: it.Index, Input: it.Value, Output: out, Err: err}, nil
	})
	return flow.Iter(ctx)
}
