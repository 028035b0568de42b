package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/dejo1307/swiftmetrics/internal/metrics"
	"github.com/dejo1307/swiftmetrics/internal/naming"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "swiftmetrics.yaml"

// Config represents the swiftmetrics.yaml (or .toml) configuration.
type Config struct {
	Source               string        `yaml:"source" toml:"source"`
	Exclude              []string      `yaml:"exclude" toml:"exclude"`
	Ignore               []string      `yaml:"ignore" toml:"ignore"`
	TestsPaths           []string      `yaml:"tests_paths" toml:"tests_paths"`
	OverrideFile         string        `yaml:"override_file" toml:"override_file"`
	SystemLibraries      []string      `yaml:"system_libraries" toml:"system_libraries"`
	ExtraSystemLibraries []string      `yaml:"extra_system_libraries" toml:"extra_system_libraries"`
	Explainers           []string      `yaml:"explainers" toml:"explainers"`
	Renderers            []string      `yaml:"renderers" toml:"renderers"`
	Output               OutputConfig  `yaml:"output" toml:"output"`
	History              HistoryConfig `yaml:"history" toml:"history"`
	Watch                WatchConfig   `yaml:"watch" toml:"watch"`
}

// OutputConfig controls where output artifacts are written.
type OutputConfig struct {
	Dir string `yaml:"dir" toml:"dir"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"` // default: <output.dir>/history.db
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms" toml:"debounce_ms"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Source: ".",
		Ignore: []string{
			".git/**",
			".build/**",
			".swiftmetrics/**",
			"Pods/**",
			"Carthage/**",
			"DerivedData/**",
			"**/*.generated.swift",
		},
		TestsPaths:   []string{"Test", "Tests"},
		OverrideFile: naming.DefaultOverrideFile,
		Explainers:   []string{"cycles", "zones"},
		Renderers:    []string{"json", "markdown", "dot"},
		Output: OutputConfig{
			Dir: ".swiftmetrics",
		},
		Watch: WatchConfig{
			DebounceMS: 500,
		},
	}
}

// Load reads a configuration file from the given path. The format follows
// the extension: .toml is TOML, anything else YAML.
// Missing fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("[config] warning: %s not found, using defaults", path)
		return Default(), nil
	}
	return nil, err
}

// Ensure required defaults
func (c *Config) applyDefaults() {
	d := Default()
	if c.Source == "" {
		c.Source = d.Source
	}
	if len(c.TestsPaths) == 0 {
		c.TestsPaths = d.TestsPaths
	}
	if c.OverrideFile == "" {
		c.OverrideFile = d.OverrideFile
	}
	if c.Output.Dir == "" {
		c.Output.Dir = d.Output.Dir
	}
	if c.Watch.DebounceMS <= 0 {
		c.Watch.DebounceMS = d.Watch.DebounceMS
	}
}

// SystemLibraryAllowlist returns the configured allowlist: system_libraries
// when set (the built-in list otherwise), extended by extra_system_libraries.
func (c *Config) SystemLibraryAllowlist() metrics.SystemLibraries {
	base := metrics.DefaultSystemLibraries()
	if len(c.SystemLibraries) > 0 {
		base = metrics.NewSystemLibraries(c.SystemLibraries...)
	}
	return base.With(c.ExtraSystemLibraries...)
}

// HistoryPath returns the history database path for the given root.
func (c *Config) HistoryPath(root string) string {
	if c.History.Path != "" {
		if filepath.IsAbs(c.History.Path) {
			return c.History.Path
		}
		return filepath.Join(root, c.History.Path)
	}
	return filepath.Join(root, c.Output.Dir, "history.db")
}

// IsExplainerEnabled returns true if the named explainer is enabled.
func (c *Config) IsExplainerEnabled(name string) bool {
	return contains(c.Explainers, name)
}

// IsRendererEnabled returns true if the named renderer is enabled.
func (c *Config) IsRendererEnabled(name string) bool {
	return contains(c.Renderers, name)
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
