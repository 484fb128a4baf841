package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/subjecthierarchy/internal/consistency"
)

func load(t *testing.T, path string) Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	cfg, err := Decode(v)
	require.NoError(t, err)
	return cfg
}

func TestSavePluginOrder_CreatesNewFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, SavePluginOrder(configPath, []string{"Transforms", "Volumes"}))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "resolver:")
	assert.Contains(t, string(data), "plugin_order: [Transforms, Volumes]")
	assert.Equal(t, []string{"Transforms", "Volumes"}, load(t, configPath).Resolver.PluginOrder)
}

func TestSavePluginOrder_PreservesOtherConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	initial := `# top comment
debug: true
resolver:
  interactive: true  # ask on ties
hierarchy:
  mode: bulk
`
	require.NoError(t, os.WriteFile(configPath, []byte(initial), 0o600))

	require.NoError(t, SavePluginOrder(configPath, []string{"Models"}))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "# top comment")
	assert.Contains(t, content, "# ask on ties")
	assert.Contains(t, content, "debug: true")
	assert.Contains(t, content, "mode: bulk")

	cfg := load(t, configPath)
	assert.True(t, cfg.Resolver.Interactive)
	assert.Equal(t, []string{"Models"}, cfg.Resolver.PluginOrder)
}

func TestSavePluginOrder_ReplacesAndClears(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SavePluginOrder(configPath, []string{"A", "B"}))
	require.NoError(t, SavePluginOrder(configPath, []string{"C"}))
	assert.Equal(t, []string{"C"}, load(t, configPath).Resolver.PluginOrder)

	require.NoError(t, SavePluginOrder(configPath, nil))
	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "plugin_order")
	assert.Contains(t, string(data), "resolver:")
}

func TestSaveHierarchyMode(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(configPath))

	require.NoError(t, SaveHierarchyMode(configPath, consistency.ModeBulk))

	cfg := load(t, configPath)
	assert.Equal(t, "bulk", cfg.Hierarchy.Mode)
	assert.True(t, cfg.Hierarchy.AutoCreate, "sibling keys survive")
}

func TestSaveHierarchyMode_RejectsUnknownMode(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.Error(t, SaveHierarchyMode(configPath, consistency.Mode(9)))
	_, err := os.Stat(configPath)
	require.True(t, os.IsNotExist(err))
}

func TestSaveFlag(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveFlag(configPath, "ownership-cache", true))
	require.NoError(t, SaveFlag(configPath, "other", false))

	cfg := load(t, configPath)
	assert.True(t, cfg.Flags["ownership-cache"])
	assert.False(t, cfg.Flags["other"])
	assert.Len(t, cfg.Flags, 2)
}

func TestUpdateFile_RejectsNonMapping(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("- a\n- b\n"), 0o600))
	require.Error(t, SavePluginOrder(configPath, []string{"A"}))
}

func TestUpdateFile_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, SaveFlag(configPath, "x", true))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
