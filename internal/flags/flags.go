// Package flags holds the feature flags read from the config file's flags
// map. Each known flag has a default that applies when the map leaves it
// out; names shctl does not know are kept but report false.
package flags

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/resolver"
)

const (
	// FlagOwnershipCache caches each item's owner until the tree or store
	// changes the item or its branch.
	FlagOwnershipCache = "ownership-cache"
	// FlagTieWarnings reports ties settled by registration order as
	// warnings rather than debug lines.
	FlagTieWarnings = "tie-warnings"
)

// Flag describes a flag shctl understands.
type Flag struct {
	Name    string
	Default bool
	Usage   string
}

var known = []Flag{
	{Name: FlagOwnershipCache, Default: false, Usage: "cache item owners between changes"},
	{Name: FlagTieWarnings, Default: true, Usage: "warn when plugins tie on confidence"},
}

// Known returns the flags shctl understands, sorted by name.
func Known() []Flag {
	out := slices.Clone(known)
	slices.SortFunc(out, func(a, b Flag) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

func lookup(name string) (Flag, bool) {
	i := slices.IndexFunc(known, func(f Flag) bool { return f.Name == name })
	if i < 0 {
		return Flag{}, false
	}
	return known[i], true
}

// Check returns an error naming an unknown flag.
func Check(name string) error {
	if _, ok := lookup(name); !ok {
		names := make([]string, 0, len(known))
		for _, f := range Known() {
			names = append(names, f.Name)
		}
		return fmt.Errorf("unknown flag %q (known: %v)", name, names)
	}
	return nil
}

// Registry is the flag state of one run. It is read-only after New.
type Registry struct {
	set map[string]bool
}

// New copies the config map. Unknown names are logged and kept.
func New(set map[string]bool) *Registry {
	r := &Registry{set: maps.Clone(set)}
	for name := range r.set {
		if _, ok := lookup(name); !ok {
			log.Warn(log.CatConfig, "unknown feature flag in config", "flag", name)
		}
	}
	log.Debug(log.CatConfig, "feature flags", "flags", r.All())
	return r
}

// Enabled reports the configured value of a known flag, or its default.
// Unknown flags and a nil registry report false.
func (r *Registry) Enabled(name string) bool {
	f, ok := lookup(name)
	if !ok || r == nil {
		return false
	}
	if v, set := r.set[name]; set {
		return v
	}
	return f.Default
}

// All returns every known flag's effective value plus any unknown names
// from the config.
func (r *Registry) All() map[string]bool {
	out := make(map[string]bool, len(known))
	if r != nil {
		maps.Copy(out, r.set)
	}
	for _, f := range known {
		out[f.Name] = r.Enabled(f.Name)
	}
	return out
}

// ResolverOptions maps the flags that affect ownership resolution to
// resolver options.
func (r *Registry) ResolverOptions() []resolver.Option {
	return []resolver.Option{
		resolver.WithOwnershipCache(r.Enabled(FlagOwnershipCache)),
		resolver.WithTieWarnings(r.Enabled(FlagTieWarnings)),
	}
}
