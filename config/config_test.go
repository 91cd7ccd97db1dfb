package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type testHub struct {
	CacheDir string `mapstructure:"cache_dir"`
	Endpoint string `mapstructure:"endpoint"`
}

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Hub           testHub `mapstructure:"hub"`
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool        { return m.files[path] }
func (m *mockFS) LoadEnv(string) error           { return nil }
func (m *mockFS) UserConfigDir() (string, error) { return "/home/u/.config", nil }

func TestServiceConfig_ApplyDefaults(t *testing.T) {
	t.Run("empty config", func(t *testing.T) {
		cfg := ServiceConfig{}
		cfg.ApplyDefaults()
		if cfg.Name != "modelkit" || cfg.Environment != "development" {
			t.Errorf("unexpected defaults %+v", cfg)
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected info level, got %q", cfg.Logging.Level)
		}
	})

	t.Run("debug raises log level", func(t *testing.T) {
		cfg := ServiceConfig{Debug: true}
		cfg.ApplyDefaults()
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected debug level, got %q", cfg.Logging.Level)
		}
	})
}

func TestServiceConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		wantErr string
	}{
		{"development", "development", ""},
		{"production", "production", ""},
		{"test", "test", ""},
		{"invalid environment", "qa", "config.environment must be one of"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := ServiceConfig{Environment: tc.env}
			cfg.Logging.ApplyDefaults()
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "modelkit.yml")
	content := `
name: runner
environment: staging
logging:
  level: warn
hub:
  cache_dir: /var/cache/models
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var cfg testConfig
	if err := LoadConfig("modelkit", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "runner" || cfg.Environment != "staging" {
		t.Errorf("unexpected service config %+v", cfg.ServiceConfig)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected warn level, got %q", cfg.Logging.Level)
	}
	if cfg.Hub.CacheDir != "/var/cache/models" {
		t.Errorf("expected cache dir, got %q", cfg.Hub.CacheDir)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "modelkit.yml")
	if err := os.WriteFile(configPath, []byte("hub:\n  cache_dir: /from/file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MODELKIT_HUB_CACHE_DIR", "/from/env")

	var cfg testConfig
	if err := LoadConfig("modelkit", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Hub.CacheDir != "/from/env" {
		t.Errorf("expected env override, got %q", cfg.Hub.CacheDir)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("modelkit", &cfg,
		WithFileSystem(&mockFS{}),
		WithDefault("hub.endpoint", "https://hub.example.com"),
	)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Hub.Endpoint != "https://hub.example.com" {
		t.Errorf("expected default endpoint, got %q", cfg.Hub.Endpoint)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("modelkit", &cfg, WithConfigFile("/nonexistent/path.yml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestResolverWithMockFS(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]bool
		want  string
	}{
		{"root file", map[string]bool{"./modelkit.yml": true}, "./modelkit.yml"},
		{"cmd dir", map[string]bool{"./cmd/modelkit/config.yml": true}, "./cmd/modelkit/config.yml"},
		{"user config dir", map[string]bool{"/home/u/.config/modelkit/config.yml": true}, "/home/u/.config/modelkit/config.yml"},
		{"nothing", map[string]bool{}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resolver := &Resolver{FileSystem: &mockFS{files: tc.files}}
			files := resolver.ResolveFiles("modelkit", LoaderConfig{})
			if files.ConfigFile != tc.want {
				t.Errorf("expected %q, got %q", tc.want, files.ConfigFile)
			}
		})
	}
}

func TestGenerateEnvKeyVariants(t *testing.T) {
	got := generateEnvKeyVariants("HUB_CACHE_DIR")
	want := []string{"hub_cache_dir", "hub.cache.dir", "hub.cache_dir"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("variants mismatch (-want +got):\n%s", diff)
	}
	if got := generateEnvKeyVariants("DEBUG"); len(got) != 1 || got[0] != "debug" {
		t.Errorf("unexpected single-part variants %v", got)
	}
}
