// Package config handles loading, validating, and managing mdenhance
// configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/aellingwood/mdenhance/internal/enhance"
)

// EnvPrefix prefixes environment variables overriding configuration keys,
// e.g. MDENHANCE_BUILD_WORKERS.
const EnvPrefix = "MDENHANCE"

// Config is the top-level mdenhance configuration.
type Config struct {
	// Enhance holds the attributes and imagetools directives applied to
	// every image. Viper does not keep map key order, so these two maps are
	// decoded from the file separately.
	Enhance     enhance.Config `yaml:",inline"     mapstructure:"-"`
	Identifiers string         `yaml:"identifiers" mapstructure:"identifiers"`
	Markdown    MarkdownConfig `yaml:"markdown"    mapstructure:"markdown"`
	Build       BuildConfig    `yaml:"build"       mapstructure:"build"`
	Watch       WatchConfig    `yaml:"watch"       mapstructure:"watch"`
	Logging     LoggingConfig  `yaml:"logging"     mapstructure:"logging"`
}

// MarkdownConfig controls page rendering.
type MarkdownConfig struct {
	TOC            bool   `yaml:"toc"            mapstructure:"toc"`
	HighlightStyle string `yaml:"highlightStyle" mapstructure:"highlightStyle"`
	Extension      string `yaml:"extension"      mapstructure:"extension"`
}

// BuildConfig controls which pages are built and where they go.
type BuildConfig struct {
	Content     string `yaml:"content"     mapstructure:"content"`
	Destination string `yaml:"destination" mapstructure:"destination"`
	Workers     int    `yaml:"workers"     mapstructure:"workers"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// LoggingConfig selects how much is logged: none, normal or debug.
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Identifiers: string(enhance.NamingCounter),
		Markdown: MarkdownConfig{
			HighlightStyle: "github",
			Extension:      ".svelte",
		},
		Build: BuildConfig{
			Content:     "content",
			Destination: "src/routes",
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "normal",
		},
	}
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load reads a configuration file from configPath (YAML or TOML) and returns
// a Config with defaults applied first, file values overlaid on top and
// MDENHANCE_* environment variables over both.
func Load(configPath string) (*Config, error) {
	cfg := Default()
	v := newViper(cfg)

	format := formatOf(configPath)
	v.SetConfigType(format)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := loadImageDefaults(configPath, format, &cfg.Enhance); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults
// with environment overrides applied.
func LoadOrDefault(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		if err := newViper(cfg).Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("parsing environment: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating config: %w", err)
		}
		return cfg, nil
	}
	return Load(configPath)
}

// newViper returns a viper instance that knows every key of cfg, so that
// AutomaticEnv can resolve them.
func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("identifiers", cfg.Identifiers)
	v.SetDefault("markdown.toc", cfg.Markdown.TOC)
	v.SetDefault("markdown.highlightStyle", cfg.Markdown.HighlightStyle)
	v.SetDefault("markdown.extension", cfg.Markdown.Extension)
	v.SetDefault("build.content", cfg.Build.Content)
	v.SetDefault("build.destination", cfg.Build.Destination)
	v.SetDefault("build.workers", cfg.Build.Workers)
	v.SetDefault("watch.debounce", cfg.Watch.Debounce)
	v.SetDefault("logging.level", cfg.Logging.Level)
	return v
}

func formatOf(path string) string {
	switch strings.TrimPrefix(filepath.Ext(path), ".") {
	case "toml":
		return "toml"
	default:
		// Default to yaml if unrecognised.
		return "yaml"
	}
}

// loadImageDefaults decodes attributes and imagetoolsDirectives keeping the
// order their keys are declared in.
func loadImageDefaults(path, format string, dst *enhance.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if format == "yaml" {
		return yaml.Unmarshal(data, dst)
	}

	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return err
	}
	for _, key := range md.Keys() {
		if len(key) != 2 {
			continue
		}
		table, ok := raw[key[0]].(map[string]any)
		if !ok {
			continue
		}
		var p **enhance.Params
		switch key[0] {
		case "attributes":
			p = &dst.Attributes
		case "imagetoolsDirectives":
			p = &dst.Directives
		default:
			continue
		}
		if *p == nil {
			*p = enhance.NewParams()
		}
		(*p).Set(key[1], table[key[1]])
	}
	return nil
}

// Validate checks the Config for errors.
func (c *Config) Validate() error {
	if err := c.Enhance.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := enhance.ParseNaming(c.Identifiers); err != nil {
		return fmt.Errorf("config: identifiers: %w", err)
	}
	switch c.Logging.Level {
	case "none", "normal", "debug":
	default:
		return fmt.Errorf("config: logging.level must be none, normal or debug (got %q)", c.Logging.Level)
	}
	if !strings.HasPrefix(c.Markdown.Extension, ".") {
		return fmt.Errorf("config: markdown.extension must start with a dot (got %q)", c.Markdown.Extension)
	}
	if c.Build.Workers < 0 {
		return fmt.Errorf("config: build.workers must not be negative (got %d)", c.Build.Workers)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("config: watch.debounce must not be negative (got %s)", c.Watch.Debounce)
	}
	return nil
}

// WithOverrides applies CLI flag overrides to the config. Known keys are
// mapped to their corresponding struct fields. The modified config is returned
// for convenient chaining.
func (c *Config) WithOverrides(overrides map[string]any) *Config {
	for key, val := range overrides {
		switch key {
		case "content":
			if s, ok := val.(string); ok && s != "" {
				c.Build.Content = s
			}
		case "destination":
			if s, ok := val.(string); ok && s != "" {
				c.Build.Destination = s
			}
		case "workers":
			if n, ok := val.(int); ok {
				c.Build.Workers = n
			}
		case "debounce":
			if d, ok := val.(time.Duration); ok {
				c.Watch.Debounce = d
			}
		case "toc":
			if b, ok := val.(bool); ok {
				c.Markdown.TOC = b
			}
		case "verbose":
			if b, ok := val.(bool); ok && b {
				c.Logging.Level = "debug"
			}
		}
	}
	return c
}
