// Package config provides configuration types, defaults and loading for shctl.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/zjrosen/subjecthierarchy/internal/consistency"
	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/plugins"
	"github.com/zjrosen/subjecthierarchy/internal/tracing"
)

// Config holds all configuration options for shctl.
type Config struct {
	Database    string           `mapstructure:"database"`
	Debug       bool             `mapstructure:"debug"`
	Hierarchy   HierarchyConfig  `mapstructure:"hierarchy"`
	Resolver    ResolverConfig   `mapstructure:"resolver"`
	Transforms  TransformsConfig `mapstructure:"transforms"`
	Tracing     tracing.Config   `mapstructure:"tracing"`
	Flags       map[string]bool  `mapstructure:"flags"`
	WatchConfig bool             `mapstructure:"watch_config"` // reload on config file changes
}

// HierarchyConfig controls the consistency controller.
type HierarchyConfig struct {
	AutoCreate         bool   `mapstructure:"auto_create"`          // add items for claimed data objects
	AutoDeleteChildren bool   `mapstructure:"auto_delete_children"` // cascade when a data object goes away
	Mode               string `mapstructure:"mode"`                 // "incremental" (default) or "bulk"
}

// ResolverConfig controls ownership resolution.
type ResolverConfig struct {
	// Interactive asks the user to break confidence ties.
	Interactive bool `mapstructure:"interactive"`

	// PluginOrder moves the named plugins to the front of the registration
	// order, which is also the tie-break order. Unnamed plugins keep their
	// relative order after them.
	PluginOrder []string `mapstructure:"plugin_order"`
}

// TransformsConfig controls the transforms plugin.
type TransformsConfig struct {
	HardenOnReparent bool `mapstructure:"harden_on_reparent"`
}

// Settings converts the hierarchy section into controller settings.
func (c Config) Settings() (consistency.Settings, error) {
	mode, err := consistency.ParseMode(c.Hierarchy.Mode)
	if err != nil {
		return consistency.Settings{}, err
	}
	return consistency.Settings{
		AutoCreate:         c.Hierarchy.AutoCreate,
		AutoDeleteChildren: c.Hierarchy.AutoDeleteChildren,
		Mode:               mode,
	}, nil
}

// PluginOptions returns the options for the built-in plugins.
func (c Config) PluginOptions() plugins.Options {
	return plugins.Options{HardenOnReparent: c.Transforms.HardenOnReparent}
}

// TracingConfig returns the tracing section with the file path filled in.
func (c Config) TracingConfig() tracing.Config {
	t := c.Tracing
	if t.FilePath == "" {
		t.FilePath = DefaultTracesFilePath()
	}
	return t
}

// Validate checks the configuration for errors. Every problem found is
// reported.
func (c Config) Validate() error {
	var errs []error
	if _, err := consistency.ParseMode(c.Hierarchy.Mode); err != nil {
		errs = append(errs, fmt.Errorf("hierarchy.mode: %w", err))
	}
	seen := map[string]bool{}
	for i, name := range c.Resolver.PluginOrder {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("resolver.plugin_order[%d]: name is required", i))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("resolver.plugin_order[%d]: %q listed twice", i, name))
		}
		seen[name] = true
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(t tracing.Config) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}

	if t.Exporter != "" {
		switch t.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", t.Exporter)
		}
	}

	// Path requirements only matter when tracing is on.
	if t.Enabled && t.Exporter == "otlp" && t.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
	}
	return nil
}

// DefaultTracesFilePath returns ~/.config/shctl/traces/traces.jsonl, or
// "" when the home directory is unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "shctl", "traces", "traces.jsonl")
}

// DefaultDatabasePath returns .shctl/scene.db under the current directory.
func DefaultDatabasePath() string {
	return filepath.Join(LocalDir, "scene.db")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Database: DefaultDatabasePath(),
		Hierarchy: HierarchyConfig{
			AutoCreate: true,
			Mode:       consistency.ModeIncremental.String(),
		},
		Tracing: tracing.DefaultConfig(),
		Flags:   map[string]bool{},
	}
}

// SetDefaults registers the defaults with v so unset keys fall back to them.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("database", d.Database)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("hierarchy.auto_create", d.Hierarchy.AutoCreate)
	v.SetDefault("hierarchy.auto_delete_children", d.Hierarchy.AutoDeleteChildren)
	v.SetDefault("hierarchy.mode", d.Hierarchy.Mode)
	v.SetDefault("resolver.interactive", d.Resolver.Interactive)
	v.SetDefault("transforms.harden_on_reparent", d.Transforms.HardenOnReparent)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("watch_config", d.WatchConfig)
}

// Config file locations.
const (
	LocalDir  = ".shctl"
	LocalFile = ".shctl/config.yaml"
)

// UserConfigDir returns ~/.config/shctl.
func UserConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "shctl")
}

// Load reads configuration into v and decodes it.
//
// Lookup order:
//  1. explicit (the --config flag)
//  2. .shctl/config.yaml in the current directory
//  3. ~/.config/shctl/config.yaml
//
// When nothing is found a commented default file is written to
// .shctl/config.yaml. Load returns the path of the file used, "" when
// running on defaults alone.
func Load(v *viper.Viper, explicit string) (Config, string, error) {
	SetDefaults(v)
	v.SetEnvPrefix("SHCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	switch {
	case explicit != "":
		v.SetConfigFile(explicit)
	case fileExists(LocalFile):
		v.SetConfigFile(LocalFile)
	default:
		v.AddConfigPath(UserConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return Config{}, "", fmt.Errorf("reading config: %w", err)
		}
		if writeErr := WriteDefaultConfig(LocalFile); writeErr == nil {
			v.SetConfigFile(LocalFile)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, "", fmt.Errorf("reading config: %w", err)
			}
		} else {
			log.Warn(log.CatConfig, "running with default config", "error", writeErr)
		}
	}

	cfg, err := Decode(v)
	if err != nil {
		return Config{}, "", err
	}
	return cfg, v.ConfigFileUsed(), nil
}

// Decode unmarshals and validates the settings currently held by v.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Flags == nil {
		cfg.Flags = map[string]bool{}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# shctl configuration

# Path to the scene database
# database: .shctl/scene.db

# Write debug logs to debug.log
debug: false

# Consistency controller
hierarchy:
  auto_create: true            # Add items for data objects a plugin claims
  auto_delete_children: false  # Remove children with their data item instead of moving them up
  mode: incremental            # incremental or bulk (bulk waits for an explicit flush)

# Ownership resolution
resolver:
  interactive: false           # Ask which plugin wins when confidences tie
  # Plugins named here move to the front of the tie-break order:
  # plugin_order: [Transforms, Volumes]

transforms:
  harden_on_reparent: false    # Clear the transform after applying it on reparent

# Reload this file when it changes (long running commands only)
watch_config: false

# Feature flags
# flags:
#   ownership-cache: true

# Distributed tracing
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # none, file, stdout, otlp (default: file)
#   file_path: ~/.config/shctl/traces/traces.jsonl
#   otlp_endpoint: localhost:4317
#   sample_rate: 1.0               # 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
