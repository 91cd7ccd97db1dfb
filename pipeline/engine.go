package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/modelkit/device"
	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/logger"
	"github.com/kbukum/modelkit/observability"
	"github.com/kbukum/modelkit/processor"
	"github.com/kbukum/modelkit/unit"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTask labels the pipeline with the task it serves.
func WithTask(task string) Option {
	return func(p *Pipeline) { p.task = task }
}

// WithPreprocessor sets the stage run before compute.
func WithPreprocessor(pre processor.Preprocessor) Option {
	return func(p *Pipeline) { p.pre = pre }
}

// WithPostprocessor sets the stage run after compute.
func WithPostprocessor(post processor.Postprocessor) Option {
	return func(p *Pipeline) { p.post = post }
}

// WithDevice binds compute to b instead of the placer's default.
func WithDevice(b device.Binding) Option {
	return func(p *Pipeline) {
		p.device = b
		p.deviceSet = true
	}
}

// WithPlacer sets the placer used to resolve and activate devices.
func WithPlacer(pl *device.Placer) Option {
	return func(p *Pipeline) { p.placer = pl }
}

// WithBatchPolicy sets how InvokeBatch treats failing items.
func WithBatchPolicy(policy BatchPolicy) Option {
	return func(p *Pipeline) { p.policy = policy }
}

// WithBatchSize caps inputs per native batch call; 0 sends one chunk.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) { p.batchSize = n }
}

// WithObserver receives a CallRecord for every processed item.
func WithObserver(fn Observer) Option {
	return func(p *Pipeline) { p.observer = fn }
}

// Pipeline executes preprocess, compute and postprocess for a unit.
// A Pipeline may be shared between goroutines when its unit is thread-safe.
type Pipeline struct {
	task      string
	unit      unit.Unit
	pre       processor.Preprocessor
	post      processor.Postprocessor
	placer    *device.Placer
	device    device.Binding
	deviceSet bool
	policy    BatchPolicy
	batchSize int
	observer  Observer
}

// New creates a Pipeline around u. The batch policy defaults to FailFast.
func New(u unit.Unit, opts ...Option) (*Pipeline, error) {
	if u == nil {
		return nil, errors.InvalidInput("unit", "unit is required")
	}
	p := &Pipeline{unit: u, policy: FailFast}
	for _, opt := range opts {
		opt(p)
	}
	if p.batchSize < 0 {
		return nil, errors.InvalidInput("batch_size", "must not be negative")
	}
	if p.placer == nil {
		p.placer = device.NewPlacer()
	}
	if !p.deviceSet {
		p.device = p.placer.Default(context.Background())
	}

	logger.Get("pipeline").Info("pipeline created", logger.Fields(
		logger.FieldTask, p.task,
		logger.FieldUnit, u.Name(),
		logger.FieldDevice, p.device.String(),
		"batch_policy", p.policy.String(),
		logger.FieldBatch, p.batchSize,
		"native_batching", p.nativeBatching(),
	))
	return p, nil
}

// Task returns the task label.
func (p *Pipeline) Task() string { return p.task }

// Unit returns the compute unit.
func (p *Pipeline) Unit() unit.Unit { return p.unit }

// Device returns the requested device binding.
func (p *Pipeline) Device() device.Binding { return p.device }

// Policy returns the batch policy.
func (p *Pipeline) Policy() BatchPolicy { return p.policy }

// Preprocessor returns the preprocessing stage, or nil.
func (p *Pipeline) Preprocessor() processor.Preprocessor { return p.pre }

// Postprocessor returns the postprocessing stage, or nil.
func (p *Pipeline) Postprocessor() processor.Postprocessor { return p.post }

// Close releases the unit.
func (p *Pipeline) Close() error {
	return unit.Close(p.unit)
}

func (p *Pipeline) nativeBatching() bool {
	_, ok := unit.AsBatch(p.unit)
	return ok
}

// Invoke runs one input through the pipeline. An expired context stops the
// call before compute starts; compute itself is not interrupted.
func (p *Pipeline) Invoke(ctx context.Context, raw any, opts unit.Options) (unit.Output, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanInvoke,
		attribute.String(observability.AttrTask, p.task),
		attribute.String(observability.AttrUnit, p.unit.Name()),
	)
	rec := p.newRecord(raw)
	out, err := p.invoke(ctx, rec, raw, opts)
	observability.EndSpan(span, err)
	p.emit(rec, err)
	return out, err
}

func (p *Pipeline) invoke(ctx context.Context, rec *CallRecord, raw any, opts unit.Options) (unit.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in, err := p.preprocess(ctx, raw)
	if err != nil {
		return nil, err
	}
	rec.Preprocessed = in
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	computed, err := p.compute(ctx, rec, func(ctx context.Context) (unit.Output, error) {
		return p.unit.Compute(ctx, in, opts)
	})
	if err != nil {
		return nil, err
	}
	rec.Computed = computed

	out, err := p.postprocess(ctx, computed)
	if err != nil {
		return nil, err
	}
	rec.Output = out
	return out, nil
}

// InvokeBatch runs every input through the pipeline. out[i] always belongs
// to raws[i]. An empty batch returns immediately without entering a device
// scope.
func (p *Pipeline) InvokeBatch(ctx context.Context, raws []any, opts unit.Options) ([]unit.Output, error) {
	if len(raws) == 0 {
		return []unit.Output{}, nil
	}
	ctx, span := observability.StartSpan(ctx, observability.SpanInvokeBatch,
		attribute.String(observability.AttrTask, p.task),
		attribute.String(observability.AttrUnit, p.unit.Name()),
		attribute.Int(observability.AttrBatch, len(raws)),
	)

	var outs []unit.Output
	var err error
	if b, ok := unit.AsBatch(p.unit); ok {
		outs, err = p.invokeNative(ctx, b, raws, opts)
	} else {
		outs, err = p.invokeSequential(ctx, raws, opts)
	}
	observability.EndSpan(span, err)

	var batchErr *BatchError
	if errors.As(err, &batchErr) {
		logger.Get("pipeline").WithContext(ctx).Warn("batch items failed", logger.Fields(
			logger.FieldTask, p.task,
			logger.FieldUnit, p.unit.Name(),
			"batch_policy", p.policy.String(),
			"failed", batchErr.Failed(),
			logger.FieldBatch, len(raws),
		))
	}
	return outs, err
}

func (p *Pipeline) invokeSequential(ctx context.Context, raws []any, opts unit.Options) ([]unit.Output, error) {
	outs := make([]unit.Output, len(raws))
	failed := &BatchError{Policy: p.policy, Total: len(raws)}
	for i, raw := range raws {
		out, err := p.Invoke(ctx, raw, opts)
		if err != nil {
			failed.Items = append(failed.Items, ItemError{Index: i, Err: err})
			if p.policy == FailFast {
				return nil, failed
			}
			continue
		}
		outs[i] = out
	}
	if len(failed.Items) > 0 {
		return outs, failed
	}
	return outs, nil
}

// invokeNative preprocesses every input, computes chunks of batchSize in
// one call each and postprocesses the results back into input order.
func (p *Pipeline) invokeNative(ctx context.Context, b unit.BatchUnit, raws []any, opts unit.Options) ([]unit.Output, error) {
	outs := make([]unit.Output, len(raws))
	records := make([]*CallRecord, len(raws))
	failed := &BatchError{Policy: p.policy, Total: len(raws)}
	fail := func(i int, err error) error {
		records[i].Err = err
		failed.Items = append(failed.Items, ItemError{Index: i, Err: err})
		if p.policy == FailFast {
			return failed
		}
		return nil
	}
	defer func() {
		// items left pending by a fail-fast abort are not reported
		for _, rec := range records {
			if rec != nil && (rec.Err != nil || rec.Output != nil) {
				p.emit(rec, rec.Err)
			}
		}
	}()

	var ready []Indexed[any]
	for i, raw := range raws {
		records[i] = p.newRecord(raw)
		records[i].Batched = true
		if err := ctx.Err(); err != nil {
			records[i].Err = err
			return nil, err
		}
		in, err := p.preprocess(ctx, raw)
		if err != nil {
			if stop := fail(i, err); stop != nil {
				return nil, stop
			}
			continue
		}
		records[i].Preprocessed = in
		ready = append(ready, Indexed[any]{Index: i, Value: in})
	}

	size := p.chunkSize(b)
	err := ForEach(ctx, Batch(FromSlice(ready), size), func(ctx context.Context, chunk []Indexed[any]) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		inputs := lo.Map(chunk, func(it Indexed[any], _ int) any { return it.Value })
		computed, err := p.computeBatch(ctx, records[chunk[0].Index], b, inputs, opts)
		if err != nil {
			for _, it := range chunk {
				if stop := fail(it.Index, err); stop != nil {
					return stop
				}
			}
			return nil
		}
		for j, it := range chunk {
			rec := records[it.Index]
			rec.Computed = computed[j]
			rec.Device = records[chunk[0].Index].Device
			out, err := p.postprocess(ctx, computed[j])
			if err != nil {
				if stop := fail(it.Index, err); stop != nil {
					return stop
				}
				continue
			}
			rec.Output = out
			outs[it.Index] = out
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(failed.Items) > 0 {
		sort.Slice(failed.Items, func(i, j int) bool { return failed.Items[i].Index < failed.Items[j].Index })
		return outs, failed
	}
	return outs, nil
}

func (p *Pipeline) chunkSize(b unit.BatchUnit) int {
	size := p.batchSize
	if limit := unit.CapabilitiesOf(b).MaxBatchSize; limit > 0 && (size <= 0 || size > limit) {
		size = limit
	}
	return size
}

func (p *Pipeline) computeBatch(ctx context.Context, rec *CallRecord, b unit.BatchUnit, inputs []any, opts unit.Options) ([]unit.Output, error) {
	var outs []unit.Output
	_, err := p.compute(ctx, rec, func(ctx context.Context) (unit.Output, error) {
		var err error
		outs, err = b.ComputeBatch(ctx, inputs, opts)
		if err == nil && len(outs) != len(inputs) {
			err = fmt.Errorf("unit returned %d outputs for %d inputs", len(outs), len(inputs))
		}
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return outs, nil
}

// compute runs fn under the pipeline's device scope. Errors from fn become
// COMPUTE_ERROR; they are never retried.
func (p *Pipeline) compute(ctx context.Context, rec *CallRecord, fn func(ctx context.Context) (unit.Output, error)) (unit.Output, error) {
	var bodyErr error
	out, err := device.WithDevice(ctx, p.placer, p.device, func(ctx context.Context) (unit.Output, error) {
		rec.Device = device.Current(ctx)
		out, err := fn(ctx)
		bodyErr = err
		return out, err
	})
	if err == nil {
		return out, nil
	}
	if bodyErr == nil || errors.HasCode(err, errors.ErrCodeCompute) {
		return nil, err
	}
	return nil, errors.Compute(p.unit.Name(), err)
}

func (p *Pipeline) preprocess(ctx context.Context, raw any) (any, error) {
	if p.pre == nil {
		return raw, nil
	}
	if err := processor.CheckInput(p.pre, raw); err != nil {
		return nil, err
	}
	return p.pre.Preprocess(ctx, raw)
}

func (p *Pipeline) postprocess(ctx context.Context, out unit.Output) (unit.Output, error) {
	if p.post == nil {
		return out, nil
	}
	res, err := p.post.Postprocess(ctx, out)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodePostprocess) {
			return nil, err
		}
		return nil, errors.Postprocess(err)
	}
	return res, nil
}
