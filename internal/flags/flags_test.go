package flags

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/plugin"
	"github.com/zjrosen/subjecthierarchy/internal/plugins"
	"github.com/zjrosen/subjecthierarchy/internal/resolver"
)

func TestRegistry_Enabled(t *testing.T) {
	tests := []struct {
		name     string
		registry *Registry
		flag     string
		expected bool
	}{
		{"set on", New(map[string]bool{FlagOwnershipCache: true}), FlagOwnershipCache, true},
		{"set off", New(map[string]bool{FlagTieWarnings: false}), FlagTieWarnings, false},
		{"default off", New(nil), FlagOwnershipCache, false},
		{"default on", New(nil), FlagTieWarnings, true},
		{"unknown flag", New(map[string]bool{"unknown-flag": true}), "unknown-flag", false},
		{"nil registry", nil, FlagTieWarnings, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.registry.Enabled(tt.flag))
		})
	}
}

func TestRegistry_All(t *testing.T) {
	require.Equal(t, map[string]bool{FlagOwnershipCache: false, FlagTieWarnings: true}, New(nil).All())
	require.Equal(t,
		map[string]bool{FlagOwnershipCache: true, FlagTieWarnings: true, "legacy": true},
		New(map[string]bool{FlagOwnershipCache: true, "legacy": true}).All())
}

func TestRegistry_IsolatedFromCallerMaps(t *testing.T) {
	source := map[string]bool{FlagOwnershipCache: true}
	r := New(source)
	source[FlagOwnershipCache] = false
	require.True(t, r.Enabled(FlagOwnershipCache))

	out := r.All()
	out[FlagTieWarnings] = false
	require.True(t, r.Enabled(FlagTieWarnings))
}

func TestUnknownFlagIsWarned(t *testing.T) {
	var buf bytes.Buffer
	log.SetConsole(&buf, log.LevelWarn)
	t.Cleanup(func() { log.SetConsole(nil, log.LevelWarn) })

	New(map[string]bool{"session-resume": true})
	require.Contains(t, buf.String(), "unknown feature flag in config flag=session-resume")
}

func TestCheckAndKnown(t *testing.T) {
	require.NoError(t, Check(FlagOwnershipCache))
	err := Check("ownership_cache")
	require.ErrorContains(t, err, `unknown flag "ownership_cache"`)
	require.ErrorContains(t, err, FlagTieWarnings)

	var names []string
	for _, f := range Known() {
		names = append(names, f.Name)
		require.NotEmpty(t, f.Usage)
	}
	require.Equal(t, []string{FlagOwnershipCache, FlagTieWarnings}, names)
}

func TestRegistry_ResolverOptions(t *testing.T) {
	for on, wantQueries := range map[bool]uint64{false: 3, true: 1} {
		reg, err := plugins.NewRegistry(plugins.Options{}, nil)
		require.NoError(t, err)
		tree := hierarchy.New()
		store := datastore.New()
		res := resolver.New(reg, &plugin.Env{Tree: tree, Store: store},
			New(map[string]bool{FlagOwnershipCache: on}).ResolverOptions()...)

		folder, err := tree.CreateFolder(tree.Root(), "F")
		require.NoError(t, err)
		for range 3 {
			p, err := res.OwnerFor(folder)
			require.NoError(t, err)
			require.Equal(t, plugins.FolderName, p.Name())
		}
		require.Equal(t, wantQueries, res.Stats().Queries)
		res.Close()
	}
}
