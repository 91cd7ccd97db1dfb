package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError_New_Retryable(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		retryable bool
	}{
		{ErrCodeArtifactFetchFailure, true},
		{ErrCodeNotFound, false},
		{ErrCodeCompute, false},
		{ErrCodeDuplicateKey, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := New(tt.code, "msg")
			if err.Retryable != tt.retryable {
				t.Errorf("expected retryable=%v for %s", tt.retryable, tt.code)
			}
		})
	}
}

func TestAppError_NotFound_EmptyID(t *testing.T) {
	err := NotFound("export", "")
	if _, ok := err.Details["id"]; ok {
		t.Error("expected no 'id' key in details when id is empty")
	}
}

func TestAppError_DuplicateKey(t *testing.T) {
	err := DuplicateKey("pipelines", "echo")
	if err.Code != ErrCodeDuplicateKey {
		t.Errorf("expected DUPLICATE_KEY, got %s", err.Code)
	}
	if err.Details["group"] != "pipelines" || err.Details["name"] != "echo" {
		t.Errorf("unexpected details: %v", err.Details)
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("cuda out of memory")
	err := Compute("echo", cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
	if !strings.Contains(err.Error(), "cuda out of memory") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
}

func TestHasCode_WalksChain(t *testing.T) {
	root := fmt.Errorf("no such file")
	inner := ImportFailure("vision", root)
	outer := ConstructorFailure("image-stats", fmt.Errorf("materialize: %w", inner))

	if !HasCode(outer, ErrCodeConstructorFailure) {
		t.Error("expected outer code")
	}
	if !HasCode(outer, ErrCodeImportFailure) {
		t.Error("expected nested IMPORT_FAILURE to be found")
	}
	if HasCode(outer, ErrCodeCompute) {
		t.Error("did not expect COMPUTE_ERROR")
	}
	if HasCode(root, ErrCodeNotFound) {
		t.Error("plain error carries no code")
	}
	if HasCode(nil, ErrCodeNotFound) {
		t.Error("nil carries no code")
	}
}

func TestAsAppError(t *testing.T) {
	wrapped := fmt.Errorf("build: %w", UnknownTask("summarize"))
	appErr, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("expected AppError in chain")
	}
	if appErr.Code != ErrCodeUnknownTask {
		t.Errorf("expected UNKNOWN_TASK, got %s", appErr.Code)
	}
	if _, ok := AsAppError(fmt.Errorf("plain")); ok {
		t.Error("plain error should not convert")
	}
}

func TestToResponse(t *testing.T) {
	resp := ToResponse(ArtifactFetchFailure("org/model", "master", fmt.Errorf("503")))
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(data)
	for _, want := range []string{`"code":"ARTIFACT_FETCH_FAILURE"`, `"retryable":true`, `"cause":"503"`} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %s in %s", want, got)
		}
	}

	plain := ToResponse(fmt.Errorf("boom"))
	if plain.Error.Code != ErrCodeInternal {
		t.Errorf("expected INTERNAL_ERROR, got %s", plain.Error.Code)
	}
}

func TestWithDetail(t *testing.T) {
	err := InvalidInput("batch_size", "must be positive").WithDetail("value", -1)
	if err.Details["field"] != "batch_size" || err.Details["value"] != -1 {
		t.Errorf("unexpected details: %v", err.Details)
	}
}
