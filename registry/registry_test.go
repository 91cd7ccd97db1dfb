package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/modelkit/errors"
	"github.com/kbukum/modelkit/lazy"
)

type factory func(string) string

func upper(s string) string { return "U:" + s }
func lower(s string) string { return "l:" + s }

func TestRegisterLookup_Identity(t *testing.T) {
	r := New()
	d := Descriptor{Task: "echo", Constructor: factory(upper)}
	if err := r.Register(GroupPipelines, "echo", d); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := r.Lookup(GroupPipelines, "echo")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Group != GroupPipelines || got.Name != "echo" || got.Task != "echo" {
		t.Errorf("unexpected descriptor %+v", got)
	}
	if !sameConstructor(got.Constructor, d.Constructor) {
		t.Error("expected the registered constructor back")
	}
}

func TestRegister_DuplicatePolicy(t *testing.T) {
	tests := []struct {
		name      string
		second    Descriptor
		opts      []RegisterOption
		wantCode  errors.ErrorCode
		wantLower bool
	}{
		{"identical is idempotent", Descriptor{Task: "echo", Constructor: factory(upper)}, nil, "", false},
		{"different constructor conflicts", Descriptor{Task: "echo", Constructor: factory(lower)}, nil, errors.ErrCodeDuplicateKey, false},
		{"different task conflicts", Descriptor{Task: "other", Constructor: factory(upper)}, nil, errors.ErrCodeDuplicateKey, false},
		{"overwrite wins", Descriptor{Task: "echo", Constructor: factory(lower)}, []RegisterOption{WithOverwrite()}, "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := New()
			if err := r.Register(GroupPipelines, "echo", Descriptor{Task: "echo", Constructor: factory(upper)}); err != nil {
				t.Fatal(err)
			}
			err := r.Register(GroupPipelines, "echo", tc.second, tc.opts...)
			if tc.wantCode != "" {
				if !errors.HasCode(err, tc.wantCode) {
					t.Fatalf("expected %s, got %v", tc.wantCode, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			d, _ := r.Lookup(GroupPipelines, "echo")
			out := d.Constructor.(factory)("x")
			if tc.wantLower && out != "l:x" {
				t.Errorf("expected overwritten constructor, got %q", out)
			}
			if !tc.wantLower && out != "U:x" {
				t.Errorf("expected original constructor, got %q", out)
			}
		})
	}
}

func TestRegister_Invalid(t *testing.T) {
	r := New()
	if err := r.Register(GroupDefault, "", Descriptor{Constructor: factory(upper)}); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for empty name, got %v", err)
	}
	if err := r.Register(GroupDefault, "x", Descriptor{}); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for empty descriptor, got %v", err)
	}
}

func TestLookup_NotFound(t *testing.T) {
	r := New()
	_, err := r.Lookup(GroupPreprocessors, "missing")
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestListGroupAndGroups(t *testing.T) {
	r := New()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(GroupPostprocessors, name, Descriptor{Constructor: factory(upper)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Register("", "thing", Descriptor{Constructor: factory(upper)}); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"alpha", "mid", "zeta"}, r.ListGroup(GroupPostprocessors)); diff != "" {
		t.Errorf("ListGroup mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{GroupDefault, GroupPostprocessors}, r.Groups()); diff != "" {
		t.Errorf("Groups mismatch (-want +got):\n%s", diff)
	}
	if got := r.ListGroup("empty"); len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}
}

func TestVariantsAndTasks(t *testing.T) {
	r := New()
	_ = r.Register(GroupPipelines, "echo", Descriptor{Task: "echo", Constructor: factory(upper)})
	_ = r.Register(GroupPipelines, "echo-batch", Descriptor{Task: "echo", Constructor: factory(lower)})
	_ = r.Declare(GroupPipelines, "image-stats", "image-statistics", "vision")

	if diff := cmp.Diff([]string{"echo", "echo-batch"}, r.Variants("echo")); diff != "" {
		t.Errorf("Variants mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"echo", "image-statistics"}, r.Tasks()); diff != "" {
		t.Errorf("Tasks mismatch (-want +got):\n%s", diff)
	}
}

func TestMaterialize_Lazy(t *testing.T) {
	loads := 0
	l := lazy.New()
	_ = l.Add("vision", []string{"image-stats"}, func(context.Context) (map[string]any, error) {
		loads++
		return map[string]any{"image-stats": factory(upper)}, nil
	})
	r := New(WithLoader(l))
	if err := r.Declare(GroupPipelines, "image-stats", "image-statistics", "vision"); err != nil {
		t.Fatal(err)
	}
	if loads != 0 {
		t.Fatal("declaring must not load")
	}

	for i := 0; i < 3; i++ {
		f, err := Resolve[factory](context.Background(), r, GroupPipelines, "image-stats")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if f("a") != "U:a" {
			t.Errorf("unexpected constructor output")
		}
	}
	if loads != 1 {
		t.Errorf("expected one module load, got %d", loads)
	}
}

func TestMaterialize_LazyGroupsStayIsolated(t *testing.T) {
	l := lazy.New()
	_ = l.Add("text", []string{"bert"}, func(context.Context) (map[string]any, error) {
		return map[string]any{"bert": factory(upper)}, nil
	})
	if err := l.Add("textproc", []string{"bert", "bert-tokenizer"}, func(context.Context) (map[string]any, error) {
		return map[string]any{"bert": factory(lower), "bert-tokenizer": factory(lower)}, nil
	}); err != nil {
		t.Fatalf("a second module exporting the same name must be accepted: %v", err)
	}
	r := New(WithLoader(l))
	_ = r.Declare(GroupPipelines, "bert", "fill-mask", "text")
	_ = r.Declare(GroupPreprocessors, "bert", "", "textproc")
	_ = r.Declare(GroupPostprocessors, "wordpiece", "", "textproc", WithExport("bert-tokenizer"))
	_ = r.Declare(GroupPostprocessors, "stray", "", "text", WithExport("bert-tokenizer"))

	tests := []struct {
		group string
		name  string
		want  string
	}{
		{GroupPipelines, "bert", "U:x"},
		{GroupPreprocessors, "bert", "l:x"},
		{GroupPostprocessors, "wordpiece", "l:x"},
	}
	for _, tc := range tests {
		f, err := Resolve[factory](context.Background(), r, tc.group, tc.name)
		if err != nil {
			t.Fatalf("%s/%s: %v", tc.group, tc.name, err)
		}
		if got := f("x"); got != tc.want {
			t.Errorf("%s/%s resolved to %q, want %q", tc.group, tc.name, got, tc.want)
		}
	}

	d, _ := r.Lookup(GroupPostprocessors, "wordpiece")
	if d.Export != "bert-tokenizer" {
		t.Errorf("expected export bert-tokenizer, got %q", d.Export)
	}
	if _, err := r.Materialize(context.Background(), GroupPostprocessors, "stray"); !errors.HasCode(err, errors.ErrCodeImportFailure) {
		t.Errorf("export owned by another module must be IMPORT_FAILURE, got %v", err)
	}
}

func TestMaterialize_Errors(t *testing.T) {
	l := lazy.New()
	_ = l.Add("broken", []string{"bad"}, func(context.Context) (map[string]any, error) {
		return nil, fmt.Errorf("missing native library")
	})
	r := New(WithLoader(l))
	_ = r.Declare(GroupPipelines, "bad", "t", "broken")
	_ = r.Declare(GroupPipelines, "undeclared", "t", "ghost")
	_ = r.Register(GroupPipelines, "wrong-type", Descriptor{Constructor: "not a factory"})

	tests := []struct {
		name string
		key  string
		code errors.ErrorCode
	}{
		{"loader failure", "bad", errors.ErrCodeImportFailure},
		{"export not in loader", "undeclared", errors.ErrCodeImportFailure},
		{"missing key", "absent", errors.ErrCodeNotFound},
		{"wrong type", "wrong-type", errors.ErrCodeConstructorFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve[factory](context.Background(), r, GroupPipelines, tc.key)
			if !errors.HasCode(err, tc.code) {
				t.Errorf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = r.Register(GroupDefault, fmt.Sprintf("n%d", i), Descriptor{Constructor: factory(upper)})
		}(i)
		go func() {
			defer wg.Done()
			_ = r.ListGroup(GroupDefault)
		}()
	}
	wg.Wait()
	if got := len(r.ListGroup(GroupDefault)); got != 50 {
		t.Errorf("expected 50 entries, got %d", got)
	}
}
