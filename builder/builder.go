package builder

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/modelkit/device"
	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/hub"
	"github.com/kbukum/modelkit/logger"
	"github.com/kbukum/modelkit/modelconfig"
	"github.com/kbukum/modelkit/observability"
	"github.com/kbukum/modelkit/pipeline"
	"github.com/kbukum/modelkit/processor"
	"github.com/kbukum/modelkit/registry"
	"github.com/kbukum/modelkit/unit"
)

type options struct {
	unit         unit.Unit
	model        string
	revision     string
	variant      string
	pre          processor.Preprocessor
	post         processor.Postprocessor
	config       map[string]any
	deviceSpec   string
	registry     *registry.Registry
	tasks        *Tasks
	resolver     hub.Resolver
	placer       *device.Placer
	metrics      *observability.Metrics
	limit        int
	middlewares  []unit.Middleware
	pipelineOpts []pipeline.Option
}

// Option configures Build.
type Option func(*options)

// WithUnit uses u as is; no artifact is resolved and no variant looked up.
func WithUnit(u unit.Unit) Option {
	return func(o *options) { o.unit = u }
}

// WithModel names the model artifact: a local directory or a hub key.
func WithModel(key string) Option {
	return func(o *options) { o.model = key }
}

// WithRevision pins the hub revision of the model.
func WithRevision(rev string) Option {
	return func(o *options) { o.revision = rev }
}

// WithVariant selects the registered unit variant.
func WithVariant(name string) Option {
	return func(o *options) { o.variant = name }
}

// WithPreprocessor overrides any declared preprocessor.
func WithPreprocessor(pre processor.Preprocessor) Option {
	return func(o *options) { o.pre = pre }
}

// WithPostprocessor overrides any declared postprocessor.
func WithPostprocessor(post processor.Postprocessor) Option {
	return func(o *options) { o.post = post }
}

// WithConfig sets unit configuration keys. They are deep-merged over the
// artifact's model section and win on conflict.
func WithConfig(cfg map[string]any) Option {
	return func(o *options) { o.config = cfg }
}

// WithDevice requests a device such as "cpu", "gpu" or "cuda:1".
func WithDevice(spec string) Option {
	return func(o *options) { o.deviceSpec = spec }
}

// WithRegistry looks up variants and processors in r instead of the global
// registry.
func WithRegistry(r *registry.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithTasks reads task defaults from t instead of DefaultTasks.
func WithTasks(t *Tasks) Option {
	return func(o *options) { o.tasks = t }
}

// WithResolver fetches remote artifacts through r. Without it a Hub with
// default configuration is created on demand.
func WithResolver(r hub.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithPlacer sets the device placer of the pipeline.
func WithPlacer(p *device.Placer) Option {
	return func(o *options) { o.placer = p }
}

// WithMetrics records unit invocations.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithConcurrencyLimit admits at most n concurrent compute calls into the
// unit.
func WithConcurrencyLimit(n int) Option {
	return func(o *options) { o.limit = n }
}

// WithMiddleware adds unit middleware inside the standard chain.
func WithMiddleware(mw ...unit.Middleware) Option {
	return func(o *options) { o.middlewares = append(o.middlewares, mw...) }
}

// WithPipelineOptions passes options through to pipeline.New.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(o *options) { o.pipelineOpts = append(o.pipelineOpts, opts...) }
}

// build carries the state of one Build call.
type build struct {
	options
	task     string
	def      Default
	binding  device.Binding
	model    string
	modelDir string
	artifact *modelconfig.Configuration
	variant  string
}

// Build constructs a pipeline for task.
func Build(ctx context.Context, task string, opts ...Option) (p *pipeline.Pipeline, err error) {
	o := options{registry: registry.Global(), tasks: DefaultTasks}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, span := observability.StartSpan(ctx, observability.SpanBuild,
		attribute.String(observability.AttrTask, task),
	)
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	b := &build{options: o, task: task}
	p, err = b.run(ctx)
	log := logger.Get("builder").WithContext(ctx)
	if err != nil {
		log.Error("pipeline build failed", logger.Fields(
			logger.FieldTask, task, logger.FieldVariant, b.variant, logger.FieldError, err.Error(),
		))
		return nil, err
	}
	log.Info("pipeline built", logger.MergeWithDuration(logger.Fields(
		logger.FieldTask, task,
		logger.FieldVariant, b.variant,
		logger.FieldModel, b.model,
		logger.FieldUnit, p.Unit().Name(),
		logger.FieldDevice, p.Device().String(),
	), time.Since(start)))
	return p, nil
}

func (b *build) run(ctx context.Context) (*pipeline.Pipeline, error) {
	if b.task == "" {
		return nil, errors.InvalidInput("task", "task must not be empty")
	}
	if b.placer == nil {
		b.placer = device.NewPlacer()
	}
	if b.deviceSpec != "" {
		binding, err := device.Parse(b.deviceSpec)
		if err != nil {
			return nil, err
		}
		b.binding = binding
	} else {
		b.binding = b.placer.Default(ctx)
	}
	b.def, _ = b.tasks.Default(b.task)

	u := b.unit
	if u == nil {
		if err := b.checkTask(); err != nil {
			return nil, err
		}
		if err := b.resolveArtifact(ctx); err != nil {
			return nil, err
		}
		if err := b.selectVariant(); err != nil {
			return nil, err
		}
		var err error
		if u, err = b.construct(ctx); err != nil {
			return nil, err
		}
	}

	// an injected unit belongs to the caller
	release := func() {
		if b.unit == nil {
			_ = unit.Close(u)
		}
	}

	pre, post, err := b.processors(ctx)
	if err != nil {
		release()
		return nil, err
	}

	popts := []pipeline.Option{
		pipeline.WithTask(b.task),
		pipeline.WithPlacer(b.placer),
		pipeline.WithDevice(b.binding),
	}
	if pre != nil {
		popts = append(popts, pipeline.WithPreprocessor(pre))
	}
	if post != nil {
		popts = append(popts, pipeline.WithPostprocessor(post))
	}
	p, err := pipeline.New(b.wrap(u), append(popts, b.pipelineOpts...)...)
	if err != nil {
		release()
		return nil, err
	}
	return p, nil
}

// checkTask fails for a task nothing can build.
func (b *build) checkTask() error {
	if _, ok := b.tasks.Default(b.task); ok {
		return nil
	}
	if len(b.registry.Variants(b.task)) > 0 {
		return nil
	}
	return errors.UnknownTask(b.task)
}

func (b *build) resolveArtifact(ctx context.Context) error {
	b.model, b.modelDir = b.options.model, ""
	revision := b.revision
	if b.model == "" {
		b.model = b.def.Model
		if revision == "" {
			revision = b.def.Revision
		}
	}

	switch {
	case b.model == "":
	case isDir(b.model):
		b.modelDir = b.model
	default:
		resolver := b.resolver
		if resolver == nil {
			h, err := hub.New(hub.Config{})
			if err != nil {
				return err
			}
			resolver = h
		}
		dir, err := resolver.Resolve(ctx, b.model, revision)
		if err != nil {
			if _, ok := errors.AsAppError(err); ok {
				return err
			}
			return errors.ArtifactFetchFailure(b.model, revision, err)
		}
		b.modelDir = dir
	}

	if b.modelDir == "" {
		b.artifact = &modelconfig.Configuration{Raw: map[string]any{}}
		return nil
	}
	cfg, err := modelconfig.Read(b.modelDir)
	if err != nil {
		return err
	}
	b.artifact = cfg
	return nil
}

// selectVariant picks the explicit variant, else the artifact's pipeline
// type, else the task default, else the only variant serving the task.
func (b *build) selectVariant() error {
	b.variant = b.options.variant
	if b.variant == "" {
		b.variant = b.artifact.Pipeline.Type
	}
	if b.variant == "" {
		b.variant = b.def.Variant
	}
	if b.variant == "" {
		variants := b.registry.Variants(b.task)
		if len(variants) != 1 {
			return errors.UnknownVariant(b.task, "").WithDetail("variants", variants)
		}
		b.variant = variants[0]
	}

	d, err := b.registry.Lookup(registry.GroupPipelines, b.variant)
	if err != nil {
		return errors.UnknownVariant(b.task, b.variant).WithCause(err)
	}
	if d.Task != "" && d.Task != b.task {
		return errors.UnknownVariant(b.task, b.variant).WithDetail("serves", d.Task)
	}
	return nil
}

func (b *build) construct(ctx context.Context) (unit.Unit, error) {
	ctor, err := b.registry.Materialize(ctx, registry.GroupPipelines, b.variant)
	if err != nil {
		return nil, err
	}
	factory, err := asFactory(b.variant, ctor)
	if err != nil {
		return nil, err
	}
	cfg, err := modelconfig.Merge(b.artifact.Model, b.config)
	if err != nil {
		return nil, errors.InvalidInput("config", "cannot merge unit configuration").WithCause(err)
	}

	u, err := factory(ctx, unit.Spec{
		Task:     b.task,
		Variant:  b.variant,
		ModelDir: b.modelDir,
		Config:   cfg,
		Device:   b.binding,
	})
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeConstructorFailure) {
			return nil, err
		}
		return nil, errors.ConstructorFailure(b.variant, err)
	}
	if u == nil {
		return nil, errors.ConstructorFailure(b.variant, fmt.Errorf("factory returned no unit"))
	}
	return u, nil
}

func asFactory(variant string, ctor any) (unit.Factory, error) {
	switch f := ctor.(type) {
	case unit.Factory:
		return f, nil
	case func(context.Context, unit.Spec) (unit.Unit, error):
		return f, nil
	default:
		return nil, errors.ConstructorFailure(variant, fmt.Errorf("registered constructor is %T, expected unit.Factory", ctor))
	}
}

// processors builds the pre- and postprocessor. Explicit options win over
// the artifact, which wins over the task default.
func (b *build) processors(ctx context.Context) (processor.Preprocessor, processor.Postprocessor, error) {
	var preSection, postSection modelconfig.Section
	if b.artifact != nil {
		preSection, postSection = b.artifact.Preprocessor, b.artifact.Postprocessor
	}
	if b.unit == nil {
		if preSection.Type == "" {
			preSection.Type = b.def.Preprocessor
		}
		if postSection.Type == "" {
			postSection.Type = b.def.Postprocessor
		}
	}

	pre := b.pre
	if pre == nil && preSection.Type != "" {
		var err error
		pre, err = processor.NewPreprocessor(ctx, b.registry, preSection.Type, processor.Params{
			ModelDir: b.modelDir, Config: preSection.Params,
		})
		if err != nil {
			return nil, nil, err
		}
	}
	post := b.post
	if post == nil && postSection.Type != "" {
		var err error
		post, err = processor.NewPostprocessor(ctx, b.registry, postSection.Type, processor.Params{
			ModelDir: b.modelDir, Config: postSection.Params,
		})
		if err != nil {
			return nil, nil, err
		}
	}
	return pre, post, nil
}

// wrap applies tracing, logging, metrics and the concurrency limit, in
// that order from the outside in, followed by caller middleware.
func (b *build) wrap(u unit.Unit) unit.Unit {
	mws := []unit.Middleware{unit.WithTracing(), unit.WithLogging(logger.Get("unit"))}
	if b.metrics != nil {
		mws = append(mws, unit.WithMetrics(b.metrics, b.task))
	}
	if b.limit > 0 {
		mws = append(mws, unit.WithConcurrencyLimit(b.limit))
	}
	mws = append(mws, b.middlewares...)
	return unit.Chain(mws...)(u)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
