// Package s3 is the hub source for artifacts stored in Amazon S3 or an
// S3-compatible service. Keys take the form s3://bucket/prefix.
package s3

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/hub"
)

// Scheme is the key scheme this source serves.
const Scheme = "s3"

// DefaultRegion is the default AWS region.
const DefaultRegion = "us-east-1"

func init() {
	hub.RegisterSource(Scheme, func(ctx context.Context, settings map[string]any) (hub.Source, error) {
		var cfg Config
		if err := hub.DecodeSettings(settings, &cfg); err != nil {
			return nil, err
		}
		cfg.ApplyDefaults()
		return New(ctx, cfg)
	})
}

// Config holds S3 client settings.
type Config struct {
	Region string `mapstructure:"region"`
	// Endpoint is a custom S3-compatible endpoint (e.g. MinIO).
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	// ForcePathStyle forces path-style URLs instead of virtual-hosted-style.
	ForcePathStyle bool `mapstructure:"force_path_style"`
	// RevisionPrefix stores each revision under <prefix>/<revision>/.
	RevisionPrefix bool `mapstructure:"revision_prefix"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
}

// API is the subset of the S3 client the source calls.
type API interface {
	awss3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
}

// Source lists and downloads S3 objects.
type Source struct {
	client         API
	revisionPrefix bool
}

var _ hub.Source = (*Source)(nil)

// New creates a Source from cfg, loading the default AWS credential chain
// unless static keys are given.
func New(ctx context.Context, cfg Config) (*Source, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		} else if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg.RevisionPrefix), nil
}

// NewWithClient creates a Source around an existing client.
func NewWithClient(client API, revisionPrefix bool) *Source {
	return &Source{client: client, revisionPrefix: revisionPrefix}
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
	p := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	var files []hub.File
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			var nsb *types.NoSuchBucket
			if stderrors.As(err, &nsb) {
				return nil, errors.NotFound("bucket", bucket)
			}
			return nil, fmt.Errorf("listing s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range out.Contents {
			rel := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if rel == "" || strings.HasSuffix(rel, "/") {
				continue
			}
			files = append(files, hub.File{Path: rel, Size: aws.ToInt64(obj.Size)})
		}
	}
	if len(files) == 0 {
		return nil, errors.NotFound("model", "s3://"+bucket+"/"+prefix)
	}
	return files, nil
}

// Fetch streams one object into w.
func (s *Source) Fetch(ctx context.Context, ref hub.Ref, file hub.File, w io.Writer) error {
	bucket, prefix := s.prefix(ref)
	key := prefix + file.Path
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if stderrors.As(err, &nsk) {
			return errors.NotFound("object", "s3://"+bucket+"/"+key)
		}
		return fmt.Errorf("s3 download %s: %w", key, err)
	}
	defer out.Body.Close()
	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("s3 download %s: %w", key, err)
	}
	return nil
}
