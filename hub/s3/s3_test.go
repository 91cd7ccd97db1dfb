package s3

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/hub"
)

// fakeS3 serves a fixed object set, one object per page to exercise
// pagination.
type fakeS3 struct {
	bucket  string
	objects map[string]string
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *awss3.ListObjectsV2Input, _ ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	if aws.ToString(in.Bucket) != f.bucket {
		return nil, &types.NoSuchBucket{}
	}
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &awss3.ListObjectsV2Output{}
	if len(keys) == 0 {
		return out, nil
	}
	out.Contents = []types.Object{{Key: aws.String(keys[0]), Size: aws.Int64(int64(len(f.objects[keys[0]])))}}
	if len(keys) > 1 {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[0])
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &awss3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestSource_ListPaginates(t *testing.T) {
	fake := &fakeS3{bucket: "models", objects: map[string]string{
		"bert/configuration.json": "{}",
		"bert/pytorch_model.bin":  "0000",
		"bert/vocab/":             "",
		"gpt/model.bin":           "1",
	}}
	src := NewWithClient(fake, false)
	ref, _ := hub.ParseRef("s3://models/bert", "master", "modelhub")

	files, err := src.List(context.Background(), ref)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []hub.File{{Path: "configuration.json", Size: 2}, {Path: "pytorch_model.bin", Size: 4}}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}

	var buf bytes.Buffer
	if err := src.Fetch(context.Background(), ref, files[1], &buf); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if buf.String() != "0000" {
		t.Errorf("body = %q", buf.String())
	}
}

func TestSource_NotFound(t *testing.T) {
	fake := &fakeS3{bucket: "models", objects: map[string]string{"bert/v1/a": "a"}}
	src := NewWithClient(fake, true)

	tests := []struct {
		name string
		call func() error
	}{
		{"missing bucket", func() error {
			ref, _ := hub.ParseRef("s3://other/bert", "v1", "modelhub")
			_, err := src.List(context.Background(), ref)
			return err
		}},
		{"missing revision", func() error {
			ref, _ := hub.ParseRef("s3://models/bert", "v2", "modelhub")
			_, err := src.List(context.Background(), ref)
			return err
		}},
		{"missing object", func() error {
			ref, _ := hub.ParseRef("s3://models/bert", "v1", "modelhub")
			return src.Fetch(context.Background(), ref, hub.File{Path: "b"}, io.Discard)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.HasCode(err, errors.ErrCodeNotFound) {
				t.Errorf("expected NOT_FOUND, got %v", err)
			}
		})
	}
}
