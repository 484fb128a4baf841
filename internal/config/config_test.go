package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/subjecthierarchy/internal/consistency"
	"github.com/zjrosen/subjecthierarchy/internal/tracing"
)

func TestDefaults(t *testing.T) {
	d := Defaults()
	require.True(t, d.Hierarchy.AutoCreate)
	require.False(t, d.Hierarchy.AutoDeleteChildren)
	require.Equal(t, "incremental", d.Hierarchy.Mode)
	require.False(t, d.Tracing.Enabled)
	require.Equal(t, filepath.Join(".shctl", "scene.db"), d.Database)
	require.NoError(t, d.Validate())
}

func TestConfig_Settings(t *testing.T) {
	c := Defaults()
	c.Hierarchy.Mode = "bulk"
	c.Hierarchy.AutoDeleteChildren = true

	s, err := c.Settings()
	require.NoError(t, err)
	require.Equal(t, consistency.Settings{AutoCreate: true, AutoDeleteChildren: true, Mode: consistency.ModeBulk}, s)
}

func TestConfig_SettingsRejectsUnknownMode(t *testing.T) {
	c := Defaults()
	c.Hierarchy.Mode = "eager"
	_, err := c.Settings()
	require.Error(t, err)
}

func TestConfig_PluginOptions(t *testing.T) {
	c := Defaults()
	require.False(t, c.PluginOptions().HardenOnReparent)
	c.Transforms.HardenOnReparent = true
	require.True(t, c.PluginOptions().HardenOnReparent)
}

func TestConfig_TracingConfigFillsFilePath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c := Defaults()
	require.NotEmpty(t, c.TracingConfig().FilePath)

	c.Tracing.FilePath = "/tmp/spans.jsonl"
	require.Equal(t, "/tmp/spans.jsonl", c.TracingConfig().FilePath)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"unknown mode", func(c *Config) { c.Hierarchy.Mode = "eager" }, "hierarchy.mode"},
		{"blank plugin name", func(c *Config) { c.Resolver.PluginOrder = []string{"Volumes", " "} }, "resolver.plugin_order[1]: name is required"},
		{"duplicate plugin", func(c *Config) { c.Resolver.PluginOrder = []string{"Volumes", "Volumes"} }, `"Volumes" listed twice`},
		{"sample rate too high", func(c *Config) { c.Tracing.SampleRate = 1.5 }, "sample_rate"},
		{"sample rate negative", func(c *Config) { c.Tracing.SampleRate = -0.1 }, "sample_rate"},
		{"unknown exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }, "tracing.exporter"},
		{"otlp without endpoint", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
			c.Tracing.OTLPEndpoint = ""
		}, "otlp_endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Defaults()
			tt.modify(&c)
			err := c.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	c := Defaults()
	c.Hierarchy.Mode = "eager"
	c.Tracing.Exporter = "jaeger"
	err := c.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "hierarchy.mode")
	require.Contains(t, err.Error(), "tracing.exporter")
}

func TestValidateTracing_DisabledOTLPNeedsNoEndpoint(t *testing.T) {
	require.NoError(t, ValidateTracing(tracing.Config{Exporter: "otlp", SampleRate: 1}))
}

func TestLoad_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	content := `database: /data/scene.db
hierarchy:
  mode: bulk
  auto_create: false
resolver:
  interactive: true
  plugin_order: [Transforms, Volumes]
transforms:
  harden_on_reparent: true
flags:
  ownership-cache: true
tracing:
  enabled: true
  exporter: stdout
  sample_rate: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, used, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, path, used)
	require.Equal(t, "/data/scene.db", cfg.Database)
	require.Equal(t, "bulk", cfg.Hierarchy.Mode)
	require.False(t, cfg.Hierarchy.AutoCreate)
	require.True(t, cfg.Resolver.Interactive)
	require.Equal(t, []string{"Transforms", "Volumes"}, cfg.Resolver.PluginOrder)
	require.True(t, cfg.Transforms.HardenOnReparent)
	require.True(t, cfg.Flags["ownership-cache"])
	require.True(t, cfg.Tracing.Enabled)
	require.Equal(t, "stdout", cfg.Tracing.Exporter)
	require.InDelta(t, 0.5, cfg.Tracing.SampleRate, 1e-9)
	require.Equal(t, tracing.DefaultServiceName, cfg.Tracing.ServiceName, "unset keys keep defaults")
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, _, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hierarchy:\n  mode: eager\n"), 0o600))

	_, _, err := Load(viper.New(), path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid config")
}

func TestLoad_PrefersLocalFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.MkdirAll(LocalDir, 0o750))
	require.NoError(t, os.WriteFile(LocalFile, []byte("debug: true\n"), 0o600))

	cfg, used, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, LocalFile, used)
	require.True(t, cfg.Debug)
}

func TestLoad_UserConfigDir(t *testing.T) {
	t.Chdir(t.TempDir())
	home := t.TempDir()
	t.Setenv("HOME", home)
	userDir := filepath.Join(home, ".config", "shctl")
	require.NoError(t, os.MkdirAll(userDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "config.yaml"), []byte("watch_config: true\n"), 0o600))

	cfg, used, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(userDir, "config.yaml"), used)
	require.True(t, cfg.WatchConfig)
}

func TestLoad_WritesDefaultWhenNothingFound(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, used, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, LocalFile, used)
	_, err = os.Stat(LocalFile)
	require.NoError(t, err)
	require.Equal(t, "incremental", cfg.Hierarchy.Mode)
	require.True(t, cfg.Hierarchy.AutoCreate)
	require.NotNil(t, cfg.Flags)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hierarchy:\n  mode: incremental\n"), 0o600))
	t.Setenv("SHCTL_HIERARCHY_MODE", "bulk")
	t.Setenv("SHCTL_DEBUG", "true")

	cfg, _, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, "bulk", cfg.Hierarchy.Mode)
	require.True(t, cfg.Debug)
}

func TestDefaultConfigTemplate_Decodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	cfg, err := Decode(v)
	require.NoError(t, err)
	require.Equal(t, Defaults().Hierarchy, cfg.Hierarchy)
	require.Equal(t, Defaults().Resolver, cfg.Resolver)
}

func TestWriteDefaultConfig_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hierarchy:")
	require.Contains(t, string(data), "plugin_order")
}
