// Package pipeline runs inference: a Pipeline composes an optional
// preprocessor, a compute unit and an optional postprocessor, and executes
// them per call under a device scope.
//
//	p, _ := pipeline.New(u,
//	    pipeline.WithPreprocessor(pre),
//	    pipeline.WithBatchPolicy(pipeline.Collect),
//	)
//	out, err := p.Invoke(ctx, "hello", nil)
//	outs, err := p.InvokeBatch(ctx, []any{"a", "b"}, nil)
//
// InvokeBatch preserves input order. Units that implement unit.BatchUnit and
// declare batching receive chunks of BatchSize inputs per compute call;
// everything else is invoked once per item. The batch policy decides whether
// the first failure aborts the batch (FailFast) or is recorded per index
// while the rest proceeds (Collect).
//
// The package also carries the small pull-based Flow toolkit the engine is
// built on: Iterator, Map, Filter, Tap, Enumerate and Batch.
package pipeline
