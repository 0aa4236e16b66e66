package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/aellingwood/mdenhance/internal/enhance"
)

// testdataPath returns the absolute path to a file inside the testdata
// directory, relative to this test file's location on disk.
func testdataPath(name string) string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "testdata", name)
}

// ---------------------------------------------------------------------------
// TestDefault
// ---------------------------------------------------------------------------

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Identifiers != "counter" {
		t.Errorf("Identifiers: got %q, want %q", cfg.Identifiers, "counter")
	}
	if cfg.Markdown.HighlightStyle != "github" {
		t.Errorf("Markdown.HighlightStyle: got %q, want %q", cfg.Markdown.HighlightStyle, "github")
	}
	if cfg.Markdown.Extension != ".svelte" {
		t.Errorf("Markdown.Extension: got %q, want %q", cfg.Markdown.Extension, ".svelte")
	}
	if cfg.Markdown.TOC {
		t.Error("Markdown.TOC: got true, want false")
	}
	if cfg.Build.Content != "content" || cfg.Build.Destination != "src/routes" {
		t.Errorf("Build: got %+v", cfg.Build)
	}
	if cfg.Watch.Debounce != 200*time.Millisecond {
		t.Errorf("Watch.Debounce: got %s, want 200ms", cfg.Watch.Debounce)
	}
	if cfg.Logging.Level != "normal" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "normal")
	}
	if cfg.Enhance.Attributes != nil || cfg.Enhance.Directives != nil {
		t.Error("no image defaults should be configured")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// TestLoad
// ---------------------------------------------------------------------------

func TestLoadMinimal(t *testing.T) {
	cfg, err := Load(testdataPath("minimal.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if v, _ := cfg.Enhance.Attributes.Get("loading"); v != "lazy" {
		t.Errorf("attributes.loading: got %v", v)
	}
	if cfg.Enhance.Directives != nil {
		t.Errorf("imagetoolsDirectives should be unset, got %v", cfg.Enhance.Directives.Keys())
	}
	if cfg.Build.Destination != "src/routes" {
		t.Errorf("defaults should survive, got Build.Destination %q", cfg.Build.Destination)
	}
}

func TestLoadFull(t *testing.T) {
	for _, name := range []string{"full.yaml", "full.toml"} {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(testdataPath(name))
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}

			if got := strings.Join(cfg.Enhance.Attributes.Keys(), ","); got != "loading,decoding,class" {
				t.Errorf("attribute order: got %s", got)
			}
			if got := strings.Join(cfg.Enhance.Directives.Keys(), ","); got != "format,quality,progressive" {
				t.Errorf("directive order: got %s", got)
			}

			res, err := enhance.Resolve("./a.png?class=extra", &cfg.Enhance)
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if res.Directives != "&format=webp&quality=80&progressive=true" {
				t.Errorf("Directives: got %q", res.Directives)
			}
			if res.Class != `class="rounded shadow extra"` {
				t.Errorf("Class: got %q", res.Class)
			}

			if !cfg.Markdown.TOC {
				t.Error("Markdown.TOC: got false, want true")
			}
			if cfg.Markdown.HighlightStyle != "dracula" {
				t.Errorf("Markdown.HighlightStyle: got %q", cfg.Markdown.HighlightStyle)
			}
			if cfg.Build.Content != "pages" {
				t.Errorf("Build.Content: got %q", cfg.Build.Content)
			}
		})
	}
}

func TestLoadFullYAMLValues(t *testing.T) {
	cfg, err := Load(testdataPath("full.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Identifiers != "slug" {
		t.Errorf("Identifiers: got %q", cfg.Identifiers)
	}
	if cfg.Markdown.Extension != ".svx" {
		t.Errorf("Markdown.Extension: got %q", cfg.Markdown.Extension)
	}
	if cfg.Build.Workers != 4 {
		t.Errorf("Build.Workers: got %d", cfg.Build.Workers)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("Watch.Debounce: got %s", cfg.Watch.Debounce)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level: got %q", cfg.Logging.Level)
	}
}

func TestLoadFullTOMLValues(t *testing.T) {
	cfg, err := Load(testdataPath("full.toml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Identifiers != "random" {
		t.Errorf("Identifiers: got %q", cfg.Identifiers)
	}
	if cfg.Markdown.Extension != ".svelte" {
		t.Errorf("unset keys keep defaults, got Markdown.Extension %q", cfg.Markdown.Extension)
	}
	if cfg.Build.Workers != 2 {
		t.Errorf("Build.Workers: got %d", cfg.Build.Workers)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("Watch.Debounce: got %s", cfg.Watch.Debounce)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		invalid bool
	}{
		{"missing file", testdataPath("nope.yaml"), false},
		{"non-scalar attribute", testdataPath("nested_attribute.yaml"), true},
		{"unknown identifiers", testdataPath("bad_identifiers.yaml"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			if err == nil {
				t.Fatal("Load() expected an error")
			}
			if tt.invalid && !errors.Is(err, enhance.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Setenv("MDENHANCE_BUILD_WORKERS", "8")
	t.Setenv("MDENHANCE_LOGGING_LEVEL", "none")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "mdenhance.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg.Build.Workers != 8 {
		t.Errorf("Build.Workers: got %d, want 8 from the environment", cfg.Build.Workers)
	}
	if cfg.Logging.Level != "none" {
		t.Errorf("Logging.Level: got %q, want none from the environment", cfg.Logging.Level)
	}
	if cfg.Build.Content != "content" {
		t.Errorf("Build.Content: got %q", cfg.Build.Content)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("MDENHANCE_BUILD_CONTENT", "docs")

	cfg, err := LoadOrDefault(testdataPath("full.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg.Build.Content != "docs" {
		t.Errorf("Build.Content: got %q, want docs", cfg.Build.Content)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("MDENHANCE_TEST_DOTENV=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MDENHANCE_TEST_DOTENV", "")
	os.Unsetenv("MDENHANCE_TEST_DOTENV")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), envFile); err != nil {
		t.Fatalf("LoadDotEnv() error: %v", err)
	}
	if got := os.Getenv("MDENHANCE_TEST_DOTENV"); got != "from-file" {
		t.Errorf("MDENHANCE_TEST_DOTENV: got %q, want from-file", got)
	}
}

// ---------------------------------------------------------------------------
// TestValidate
// ---------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad logging level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"extension without dot", func(c *Config) { c.Markdown.Extension = "svelte" }, "markdown.extension"},
		{"negative workers", func(c *Config) { c.Build.Workers = -1 }, "build.workers"},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = -time.Second }, "watch.debounce"},
		{"unknown identifiers", func(c *Config) { c.Identifiers = "uuid" }, "identifiers"},
		{"non-scalar directive", func(c *Config) {
			c.Enhance.Directives = enhance.NewParams().Set("w", []int{1})
		}, "imagetoolsDirectives"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestWithOverrides
// ---------------------------------------------------------------------------

func TestWithOverrides(t *testing.T) {
	cfg := Default().WithOverrides(map[string]any{
		"content":     "docs",
		"destination": "",
		"workers":     3,
		"debounce":    time.Second,
		"toc":         true,
		"verbose":     true,
		"unknown":     "ignored",
	})

	if cfg.Build.Content != "docs" {
		t.Errorf("Build.Content: got %q", cfg.Build.Content)
	}
	if cfg.Build.Destination != "src/routes" {
		t.Errorf("empty overrides are ignored, got Build.Destination %q", cfg.Build.Destination)
	}
	if cfg.Build.Workers != 3 {
		t.Errorf("Build.Workers: got %d", cfg.Build.Workers)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("Watch.Debounce: got %s", cfg.Watch.Debounce)
	}
	if !cfg.Markdown.TOC {
		t.Error("Markdown.TOC: got false")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("verbose forces debug logging, got %q", cfg.Logging.Level)
	}

	quiet := Default().WithOverrides(map[string]any{"verbose": false})
	if quiet.Logging.Level != "normal" {
		t.Errorf("verbose=false keeps the level, got %q", quiet.Logging.Level)
	}
}

// ---------------------------------------------------------------------------
// TestMarshal
// ---------------------------------------------------------------------------

func TestMarshalKeepsImageDefaults(t *testing.T) {
	cfg, err := Load(testdataPath("full.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("yaml.Marshal() error: %v", err)
	}
	s := string(out)
	for _, want := range []string{"attributes:", "imagetoolsDirectives:", "debounce: 500ms", "identifiers: slug"} {
		if !strings.Contains(s, want) {
			t.Errorf("marshalled config missing %q:\n%s", want, s)
		}
	}
	if strings.Index(s, "loading: lazy") > strings.Index(s, "class: rounded shadow") {
		t.Errorf("attribute order lost:\n%s", s)
	}
}

// ---------------------------------------------------------------------------
// TestLogger
// ---------------------------------------------------------------------------

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{"debug", true, true},
		{"normal", false, true},
		{"none", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			log := LoggingConfig{Level: tt.level}.PrepareTo(&stdout, &stderr)

			log.Debug("debug message")
			log.Info("info message")
			log.Error("error message", zap.Error(errors.New("boom")))

			if got := strings.Contains(stdout.String(), "debug message"); got != tt.wantDebug {
				t.Errorf("debug on stdout = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(stdout.String(), "info message"); got != tt.wantInfo {
				t.Errorf("info on stdout = %v, want %v", got, tt.wantInfo)
			}
			if strings.Contains(stdout.String(), "error message") {
				t.Error("errors must not go to stdout")
			}
			if got := strings.Contains(stderr.String(), "error message"); got != tt.wantInfo {
				t.Errorf("error on stderr = %v, want %v", got, tt.wantInfo)
			}
		})
	}
}
