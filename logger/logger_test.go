package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

func jsonLogger(buf *bytes.Buffer, level string) *Logger {
	cfg := &Config{Level: level, Format: "json"}
	return NewWithWriter(cfg, "test", buf)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid json log line %q: %v", line, err)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "warn")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
	l.Warn("device fallback")
	if !strings.Contains(buf.String(), "device fallback") {
		t.Errorf("expected warn line, got %q", buf.String())
	}
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "invalid-level")
	l.Debug("hidden")
	l.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestWithComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info").WithComponent("pipeline").WithFields(Fields(FieldTask, "echo"))
	l.Info("invoked", Fields(FieldDevice, "cpu"))

	m := decodeLine(t, &buf)
	for k, want := range map[string]string{FieldComponent: "pipeline", FieldTask: "echo", FieldDevice: "cpu"} {
		if m[k] != want {
			t.Errorf("expected %s=%s, got %v", k, want, m[k])
		}
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf, "info").WithError(fmt.Errorf("boom")).Error("failed")
	m := decodeLine(t, &buf)
	if m["error"] != "boom" {
		t.Errorf("expected error=boom, got %v", m["error"])
	}
}

func TestFields(t *testing.T) {
	m := Fields("a", 1, "b", "two", 3, "ignored")
	if m["a"] != 1 || m["b"] != "two" {
		t.Errorf("unexpected fields %v", m)
	}
	if len(m) != 2 {
		t.Errorf("expected 2 fields, got %d", len(m))
	}
}

func TestErrorFields(t *testing.T) {
	m := ErrorFields("resolve", fmt.Errorf("timeout"))
	if m[FieldOperation] != "resolve" || m[FieldError] != "timeout" {
		t.Errorf("unexpected fields %v", m)
	}
}

func TestMergeWithDuration(t *testing.T) {
	m := MergeWithDuration(nil, 1500*time.Millisecond)
	if m[FieldDuration] != int64(1500) {
		t.Errorf("expected 1500, got %v", m[FieldDuration])
	}
}

func TestConfig_ApplyDefaultsAndValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != "console" || cfg.Output != "stderr" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	bad := Config{Level: "loud", Format: "json"}
	if err := bad.Validate(); err == nil {
		t.Error("expected invalid level error")
	}
	bad = Config{Level: "info", Format: "xml"}
	if err := bad.Validate(); err == nil {
		t.Error("expected invalid format error")
	}
}

func TestGetReturnsRegisteredLogger(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info")
	Register("custom", l)
	defer registry.reset()

	if Get("custom") != l {
		t.Error("expected registered logger")
	}
	if Get("other") == nil {
		t.Error("expected fallback component logger")
	}
}

func TestGetHonorsComponentLevels(t *testing.T) {
	var buf bytes.Buffer
	prev := GetGlobalLogger()
	SetGlobalLogger(jsonLogger(&buf, "info"))
	registry.setLevels(map[string]string{"hub": "debug", "pipeline": "bogus"})
	defer func() {
		registry.setLevels(nil)
		SetGlobalLogger(prev)
	}()

	Get("hub").Debug("resolving artifact")
	if !strings.Contains(buf.String(), "resolving artifact") {
		t.Errorf("expected hub debug line, got %q", buf.String())
	}

	buf.Reset()
	Get("pipeline").Debug("hidden")
	Get("builder").Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug should be filtered without an override, got %q", buf.String())
	}
}

func TestConfig_ValidateComponents(t *testing.T) {
	cfg := Config{Level: "info", Format: "json", Components: map[string]string{"hub": "debug"}}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	cfg.Components["device"] = "chatty"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "logging.components.device") {
		t.Errorf("expected component level error, got %v", err)
	}
}
