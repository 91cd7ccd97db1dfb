package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/modelkit/unit"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "modelkit.yml")
	content := "environment: development\n" +
		"logging:\n  level: error\n" +
		"hub:\n  cache_dir: " + filepath.Join(dir, "cache") + "\n  offline: true\n" +
		"device:\n  disable_gpu: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, a *app, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newCLI(a)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, "--config", writeConfig(t)))
	err := execute(context.Background(), a, cmd)
	return stdout.String(), stderr.String(), err
}

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, &app{}, args...)
}

func TestRun_Single(t *testing.T) {
	out, _, err := runCmd(t, "run", "echo", "hello")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var got unit.Output
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if diff := cmp.Diff(unit.Output{"text": "hello"}, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_Batch(t *testing.T) {
	out, _, err := runCmd(t, "run", "echo", "a", "b", "--variant", "echo-batch", "--set", "prefix=>")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var got []itemResult
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	want := []itemResult{
		{Index: 0, Output: unit.Output{"text": ">a"}},
		{Index: 1, Output: unit.Output{"text": ">b"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_Errors(t *testing.T) {
	_, stderr, err := runCmd(t, "run", "translation", "hi")
	if err == nil {
		t.Fatal("expected an error for an unknown task")
	}
	if !strings.Contains(stderr, `"code": "UNKNOWN_TASK"`) {
		t.Errorf("stderr = %s", stderr)
	}

	_, stderr, err = runCmd(t, "run", "echo", "hi", "--device", "tpu")
	if err == nil || !strings.Contains(stderr, "INVALID_DEVICE_SPEC") {
		t.Errorf("expected INVALID_DEVICE_SPEC, got %v\n%s", err, stderr)
	}

	_, stderr, err = runCmd(t, "run", "echo", "hi", "--model", "org/missing")
	if err == nil || !strings.Contains(stderr, "ARTIFACT_FETCH_FAILURE") {
		t.Errorf("expected ARTIFACT_FETCH_FAILURE in offline mode, got %v\n%s", err, stderr)
	}
}

func TestFetch_OfflineMiss(t *testing.T) {
	out, stderr, err := runCmd(t, "fetch", "org/missing", "--revision", "v1")
	if err == nil {
		t.Fatal("expected an error for an uncached model in offline mode")
	}
	if out != "" {
		t.Errorf("unexpected stdout %q", out)
	}
	if !strings.Contains(stderr, `"code": "ARTIFACT_FETCH_FAILURE"`) {
		t.Errorf("stderr = %s", stderr)
	}
}

func TestExecute_ShutsDownAfterFailedCommand(t *testing.T) {
	a := &app{}
	_, _, err := runCLI(t, a, "run", "translation", "hi")
	if err == nil {
		t.Fatal("expected the run to fail")
	}
	if a.cfg == nil {
		t.Fatal("expected setup to have run")
	}
	if a.shutdown != nil {
		t.Error("telemetry must be shut down when the command fails")
	}

	calls := 0
	a.shutdown = func(context.Context) error { calls++; return nil }
	if err := a.close(context.Background()); err != nil || calls != 1 {
		t.Fatalf("close: %v, calls %d", err, calls)
	}
	if err := a.close(context.Background()); err != nil || calls != 1 {
		t.Errorf("second close must be a no-op, calls %d", calls)
	}
}

func TestTasks(t *testing.T) {
	out, _, err := runCmd(t, "tasks")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"echo", "echo-batch", "image-statistics", "image-stats"} {
		if !strings.Contains(out, want) {
			t.Errorf("tasks output lacks %q:\n%s", want, out)
		}
	}
}

func TestDevices(t *testing.T) {
	out, _, err := runCmd(t, "devices")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "default: cpu") {
		t.Errorf("devices output:\n%s", out)
	}
}

func TestVersion(t *testing.T) {
	out, _, err := runCmd(t, "version", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"version"`) {
		t.Errorf("version output:\n%s", out)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Pipeline.BatchPolicy != "fail-fast" || cfg.Hub.DefaultScheme != "modelhub" || cfg.Observability.ServiceName != "modelkit" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if !cfg.Hub.Offline || !cfg.Device.DisableGPU {
		t.Errorf("file values lost: %+v", cfg)
	}
}
