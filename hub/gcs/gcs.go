// Package gcs is the hub source for artifacts stored in Google Cloud Storage
// buckets. Keys take the form gs://bucket/prefix.
package gcs

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/hub"
)

// Scheme is the key scheme this source serves.
const Scheme = "gs"

func init() {
	hub.RegisterSource(Scheme, func(ctx context.Context, settings map[string]any) (hub.Source, error) {
		var cfg Config
		if err := hub.DecodeSettings(settings, &cfg); err != nil {
			return nil, err
		}
		return New(ctx, cfg)
	})
}

// Config configures the storage client.
type Config struct {
	// Endpoint overrides the storage API endpoint, e.g. for an emulator.
	Endpoint string `mapstructure:"endpoint"`
	// Anonymous skips credential lookup for public buckets.
	Anonymous bool `mapstructure:"anonymous"`
	// CredentialsFile points to a service account key.
	CredentialsFile string `mapstructure:"credentials_file"`
	// RevisionPrefix stores each revision under <prefix>/<revision>/.
	RevisionPrefix bool `mapstructure:"revision_prefix"`
}

// objectStore is the subset of bucket operations the source needs.
type objectStore interface {
	list(ctx context.Context, bucket, prefix string) ([]hub.File, error)
	open(ctx context.Context, bucket, name string) (io.ReadCloser, error)
}

// Source lists and downloads bucket objects.
type Source struct {
	store          objectStore
	revisionPrefix bool
}

var _ hub.Source = (*Source)(nil)

// New creates a Source backed by a storage client.
func New(ctx context.Context, cfg Config) (*Source, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Anonymous {
		opts = append(opts, option.WithoutAuthentication())
	} else if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GCS storage client: %w", err)
	}
	return &Source{store: &clientStore{client: client}, revisionPrefix: cfg.RevisionPrefix}, nil
}

func (s *Source) prefix(ref hub.Ref) (bucket, prefix string) {
	bucket, prefix = ref.Bucket()
	if s.revisionPrefix {
		prefix += ref.Revision + "/"
	}
	return bucket, prefix
}

// List returns the objects under the key prefix, relative to it.
func (s *Source) List(ctx context.Context, ref hub.Ref) ([]hub.File, error) {
	bucket, prefix := s.prefix(ref)
	objects, err := s.store.list(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}
	files := make([]hub.File, 0, len(objects))
	for _, o := range objects {
		rel := strings.TrimPrefix(o.Path, prefix)
		if rel == "" || strings.HasSuffix(rel, "/") {
			continue
		}
		files = append(files, hub.File{Path: rel, Size: o.Size})
	}
	if len(files) == 0 {
		return nil, errors.NotFound("model", "gs://"+bucket+"/"+prefix)
	}
	return files, nil
}

// Fetch streams one object into w.
func (s *Source) Fetch(ctx context.Context, ref hub.Ref, file hub.File, w io.Writer) error {
	bucket, prefix := s.prefix(ref)
	r, err := s.store.open(ctx, bucket, prefix+file.Path)
	if err != nil {
		return err
	}
	defer r.Close()
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("downloading gs://%s/%s%s: %w", bucket, prefix, file.Path, err)
	}
	return nil
}

type clientStore struct {
	client *storage.Client
}

func (c *clientStore) list(ctx context.Context, bucket, prefix string) ([]hub.File, error) {
	it := c.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var out []hub.File
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			if stderrors.Is(err, storage.ErrBucketNotExist) {
				return nil, errors.NotFound("bucket", bucket)
			}
			return nil, fmt.Errorf("listing gs://%s/%s: %w", bucket, prefix, err)
		}
		out = append(out, hub.File{Path: attrs.Name, Size: attrs.Size})
	}
	return out, nil
}

func (c *clientStore) open(ctx context.Context, bucket, name string) (io.ReadCloser, error) {
	r, err := c.client.Bucket(bucket).Object(name).NewReader(ctx)
	if err != nil {
		if stderrors.Is(err, storage.ErrObjectNotExist) {
			return nil, errors.NotFound("object", "gs://"+bucket+"/"+name)
		}
		return nil, fmt.Errorf("opening object from GCS %q: %w", "gs://"+bucket+"/"+name, err)
	}
	return r, nil
}
