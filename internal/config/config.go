// Package config provides configuration management for jampass using Viper
// for loading from a .jampass.yml file, JAMPASS_ prefixed environment
// variables, and command-line flags.
//
// Load applies defaults for anything left unset and validates the result, so
// callers always receive a usable configuration or an error describing the
// first invalid field.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// Config is the resolved project configuration.
type Config struct {
	Build BuildConfig `yaml:"build" mapstructure:"build"`
	Watch WatchConfig `yaml:"watch" mapstructure:"watch"`
	Log   LogConfig   `yaml:"log"   mapstructure:"log"`
}

// BuildConfig controls where sources are read from and pages written to.
type BuildConfig struct {
	// Root is the project root; "/x" references resolve against it.
	Root string `yaml:"root" mapstructure:"root"`
	// Src is the directory scanned for pages, relative to Root. When empty
	// it is "src" if that directory exists, otherwise Root itself.
	Src     string   `yaml:"src"      mapstructure:"src"`
	Output  string   `yaml:"output"   mapstructure:"output"`
	DataDir string   `yaml:"data_dir" mapstructure:"data_dir"`
	Ignore  []string `yaml:"ignore"   mapstructure:"ignore"`
}

// WatchConfig tunes the watch loop.
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms" mapstructure:"debounce_ms"`
}

// LogConfig selects the logger level and handler.
type LogConfig struct {
	Level  string `yaml:"level"  mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

const (
	DefaultOutput     = "public"
	DefaultDataDir    = "data"
	DefaultDebounceMS = 300
	defaultSrcDir     = "src"
)

// DefaultIgnore lists directory names never scanned for pages.
var DefaultIgnore = []string{"node_modules", ".git"}

// RegisterDefaults registers every key with viper. Keys viper does not know
// are invisible to Unmarshal even when a JAMPASS_* variable sets them.
func RegisterDefaults() {
	viper.SetDefault("build.root", ".")
	viper.SetDefault("build.src", "")
	viper.SetDefault("build.output", DefaultOutput)
	viper.SetDefault("build.data_dir", DefaultDataDir)
	viper.SetDefault("build.ignore", slices.Clone(DefaultIgnore))
	viper.SetDefault("watch.debounce_ms", DefaultDebounceMS)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

// Load unmarshals the viper state, fills in defaults and validates
func Load() (*Config, error) {
	var config Config

	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Build.Root == "" {
		config.Build.Root = "."
	}

	if config.Build.Src == "" {
		config.Build.Src = "."
		info, err := os.Stat(filepath.Join(config.Build.Root, defaultSrcDir))
		if err == nil && info.IsDir() {
			config.Build.Src = defaultSrcDir
		}
	}

	if config.Build.Output == "" {
		config.Build.Output = DefaultOutput
	}

	if config.Build.DataDir == "" {
		config.Build.DataDir = DefaultDataDir
	}

	if len(config.Build.Ignore) == 0 {
		config.Build.Ignore = slices.Clone(DefaultIgnore)
	}

	if config.Watch.DebounceMS == 0 {
		config.Watch.DebounceMS = DefaultDebounceMS
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}

	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// SrcDir is the absolute-or-relative directory pages are read from.
func (c *Config) SrcDir() string {
	return filepath.Join(c.Build.Root, c.Build.Src)
}

// OutputDir is the directory compiled pages are written to.
func (c *Config) OutputDir() string {
	return filepath.Join(c.Build.Root, c.Build.Output)
}

// DataPath is the directory data records are loaded from.
func (c *Config) DataPath() string {
	return filepath.Join(c.Build.Root, c.Build.DataDir)
}

// EnvPath is the dotenv file consulted before each build.
func (c *Config) EnvPath() string {
	return filepath.Join(c.Build.Root, ".env")
}

// Ignored reports whether a directory or file base name matches one of the
// ignore patterns.
func (c *Config) Ignored(name string) bool {
	for _, pattern := range c.Build.Ignore {
		if pattern == name {
			return true
		}
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

func validateConfig(config *Config) error {
	if err := validateBuildConfig(&config.Build); err != nil {
		return fmt.Errorf("build config: %w", err)
	}

	if config.Watch.DebounceMS < 0 {
		return fmt.Errorf("watch config: debounce_ms %d must not be negative", config.Watch.DebounceMS)
	}

	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}

	return nil
}

func validateBuildConfig(config *BuildConfig) error {
	for field, path := range map[string]string{
		"src":      config.Src,
		"output":   config.Output,
		"data_dir": config.DataDir,
	} {
		if err := validatePath(path); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", field, path, err)
		}
	}

	if filepath.Clean(config.Output) == "." {
		return fmt.Errorf("output must not be the project root")
	}

	if filepath.Clean(config.DataDir) == "." {
		return fmt.Errorf("data_dir must not be the project root")
	}

	if filepath.Clean(config.Output) == filepath.Clean(config.Src) {
		return fmt.Errorf("output '%s' must differ from src", config.Output)
	}

	for _, pattern := range config.Ignore {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid ignore pattern '%s': %w", pattern, err)
		}
	}

	return nil
}

func validateLogConfig(config *LogConfig) error {
	switch strings.ToLower(config.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown level '%s'", config.Level)
	}

	switch strings.ToLower(config.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown format '%s'", config.Format)
	}

	return nil
}

// validatePath validates a project-relative path
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains a null byte")
	}

	cleanPath := filepath.Clean(path)

	if filepath.IsAbs(cleanPath) {
		return fmt.Errorf("path should be relative to the project root")
	}

	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes the project root")
	}

	return nil
}
