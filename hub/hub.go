package hub

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/logger"
	"github.com/kbukum/modelkit/observability"
	"github.com/kbukum/modelkit/resilience"
)

// Resolver maps a model key and revision to a local directory.
type Resolver interface {
	Resolve(ctx context.Context, key, revision string) (string, error)
}

// Option configures a Hub.
type Option func(*Hub)

// WithSource installs a source for scheme, bypassing the registered factory.
func WithSource(scheme string, s Source) Option {
	return func(h *Hub) { h.sources[scheme] = s }
}

// WithMetrics records fetch outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// Hub resolves model keys through registered sources into a local cache.
type Hub struct {
	cfg     Config
	metrics *observability.Metrics
	group   singleflight.Group

	mu       sync.Mutex
	sources  map[string]Source
	breakers map[string]*resilience.CircuitBreaker
}

var _ Resolver = (*Hub)(nil)

// New creates a Hub.
func New(cfg Config, opts ...Option) (*Hub, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &Hub{
		cfg:      cfg,
		sources:  make(map[string]Source),
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Config returns the effective configuration.
func (h *Hub) Config() Config { return h.cfg }

// Dir returns the cache directory of ref.
func (h *Hub) Dir(ref Ref) string {
	parts := []string{h.cfg.CacheDir}
	if ref.Scheme != h.cfg.DefaultScheme {
		parts = append(parts, ref.Scheme)
	}
	parts = append(parts, filepath.FromSlash(ref.Path), ref.Revision)
	return filepath.Join(parts...)
}

// Cached returns the cache directory of key at revision when it has been
// completely fetched.
func (h *Hub) Cached(key, revision string) (string, bool) {
	if revision == "" {
		revision = h.cfg.DefaultRevision
	}
	ref, err := ParseRef(key, revision, h.cfg.DefaultScheme)
	if err != nil {
		return "", false
	}
	dir := h.Dir(ref)
	if _, ok := ReadManifest(dir); !ok {
		return "", false
	}
	return dir, true
}

// Resolve returns the local directory holding key at revision, fetching it
// first when it is not cached. Concurrent resolutions of the same artifact
// share one fetch.
func (h *Hub) Resolve(ctx context.Context, key, revision string) (string, error) {
	if revision == "" {
		revision = h.cfg.DefaultRevision
	}
	ref, err := ParseRef(key, revision, h.cfg.DefaultScheme)
	if err != nil {
		return "", err
	}
	dir := h.Dir(ref)
	if _, ok := ReadManifest(dir); ok {
		return dir, nil
	}
	if h.cfg.Offline {
		appErr := errors.ArtifactFetchFailure(key, revision, fmt.Errorf("not in cache %s and hub is offline", h.cfg.CacheDir))
		appErr.Retryable = false
		return "", appErr
	}

	// The shared fetch outlives any single caller; each waiter gives up on
	// its own context below.
	fetchCtx := context.WithoutCancel(ctx)
	ch := h.group.DoChan(dir, func() (any, error) {
		if _, ok := ReadManifest(dir); ok {
			return dir, nil
		}
		return dir, h.fetch(fetchCtx, ref, dir)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return dir, nil
	case <-ctx.Done():
		return "", errors.ArtifactFetchFailure(key, revision, ctx.Err())
	}
}

func (h *Hub) fetch(ctx context.Context, ref Ref, dir string) error {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, observability.SpanFetch,
		attribute.String(observability.AttrModel, ref.Key),
		attribute.String(observability.AttrRevision, ref.Revision),
	)
	files, err := h.download(ctx, ref, dir)
	observability.EndSpan(span, err)

	status := "ok"
	if err != nil {
		status = "error"
	}
	if h.metrics != nil {
		h.metrics.RecordFetch(ctx, ref.Scheme, status)
	}

	log := logger.Get("hub").WithContext(ctx)
	fields := logger.MergeWithDuration(logger.Fields(
		logger.FieldModel, ref.Key,
		logger.FieldRevision, ref.Revision,
		"source", ref.Scheme,
		"files", files,
	), time.Since(start))
	if err != nil {
		fields[logger.FieldError] = err.Error()
		log.Error("artifact fetch failed", fields)
		if errors.HasCode(err, errors.ErrCodeArtifactFetchFailure) {
			return err
		}
		return errors.ArtifactFetchFailure(ref.Key, ref.Revision, err)
	}
	log.Info("artifact fetched", fields)
	return nil
}

// download fetches every file of ref into a staging directory next to dir
// and renames it into place once the manifest is written.
func (h *Hub) download(ctx context.Context, ref Ref, dir string) (int, error) {
	src, err := h.source(ctx, ref.Scheme)
	if err != nil {
		return 0, err
	}
	breaker := h.breaker(ref.Scheme)

	files, err := resilience.Retry(ctx, h.cfg.Retry, func(ctx context.Context) ([]File, error) {
		var files []File
		err := breaker.Execute(func() error {
			var err error
			files, err = src.List(ctx, ref)
			return err
		})
		return files, classify(ref, err)
	})
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, errors.NotFound("model", ref.String())
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return 0, errors.Internal(err)
	}
	staging, err := os.MkdirTemp(filepath.Dir(dir), "."+ref.Revision+".partial-*")
	if err != nil {
		return 0, errors.Internal(err)
	}
	defer os.RemoveAll(staging)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.Concurrency)
	for _, f := range files {
		g.Go(func() error {
			dest, err := localPath(staging, f.Path)
			if err != nil {
				return errors.InvalidInput("file", err.Error())
			}
			return resilience.RetryFunc(gctx, h.cfg.Retry, func(ctx context.Context) error {
				err := breaker.Execute(func() error {
					return writeFile(ctx, dest, func(w io.Writer) error {
						return src.Fetch(ctx, ref, f, w)
					})
				})
				return classify(ref, err)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := writeManifest(staging, Manifest{
		Key:       ref.Key,
		Revision:  ref.Revision,
		Source:    ref.Scheme,
		Files:     files,
		FetchedAt: time.Now().UTC(),
	}); err != nil {
		return 0, errors.Internal(err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return 0, errors.Internal(err)
	}
	if err := os.Rename(staging, dir); err != nil {
		return 0, errors.Internal(err)
	}
	return len(files), nil
}

// classify marks transient source errors retryable. Missing artifacts,
// open circuits and cancellations are returned unchanged so they are not
// retried.
func classify(ref Ref, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.HasCode(err, errors.ErrCodeNotFound),
		errors.HasCode(err, errors.ErrCodeArtifactFetchFailure),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return errors.ArtifactFetchFailure(ref.Key, ref.Revision, err)
	}
}

func (h *Hub) source(ctx context.Context, scheme string) (Source, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sources[scheme]; ok {
		return s, nil
	}
	f, err := lookupFactory(scheme)
	if err != nil {
		return nil, err
	}
	s, err := f(ctx, h.cfg.Sources[scheme])
	if err != nil {
		return nil, errors.ConstructorFailure("hub source "+scheme, err)
	}
	h.sources[scheme] = s
	return s, nil
}

func (h *Hub) breaker(scheme string) *resilience.CircuitBreaker {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cb, ok := h.breakers[scheme]; ok {
		return cb
	}
	cfg := h.cfg.Breaker
	cfg.Name = "hub." + scheme
	cfg.IsFailure = func(err error) bool {
		return !errors.HasCode(err, errors.ErrCodeNotFound) &&
			!errors.Is(err, context.Canceled)
	}
	cb := resilience.NewCircuitBreaker(cfg)
	h.breakers[scheme] = cb
	return cb
}
