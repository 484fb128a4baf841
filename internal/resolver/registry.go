package resolver

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zjrosen/subjecthierarchy/internal/plugin"
)

// Registry errors
var (
	ErrNilPlugin       = errors.New("plugin cannot be nil")
	ErrDuplicatePlugin = errors.New("duplicate plugin name")
	ErrUnknownPlugin   = errors.New("plugin not registered")
)

// Provider gives read access to registered plugins.
type Provider interface {
	Plugins() []plugin.Plugin
	Default() plugin.Plugin
	ByName(name string) (plugin.Plugin, bool)
}

var _ Provider = (*Registry)(nil)

// Registry holds plugins in registration order. The order is the tie-break
// order. The default plugin is kept apart: it is never polled, it only
// wins by fallback.
type Registry struct {
	plugins []plugin.Plugin
	def     plugin.Plugin
}

// NewRegistry creates a registry with def as the fallback plugin. A nil
// def selects plugin.NewDefault().
func NewRegistry(def plugin.Plugin) *Registry {
	if def == nil {
		def = plugin.NewDefault()
	}
	return &Registry{def: def}
}

// Register appends p. Names must be unique, including against the default
// plugin.
func (r *Registry) Register(p plugin.Plugin) error {
	if p == nil {
		return ErrNilPlugin
	}
	if _, exists := r.ByName(p.Name()); exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, p.Name())
	}
	r.plugins = append(r.plugins, p)
	return nil
}

// MustRegister registers every plugin and panics on the first error. Meant
// for wiring code with a fixed plugin set.
func (r *Registry) MustRegister(ps ...plugin.Plugin) *Registry {
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}

// Plugins returns the registered plugins in order, without the default.
func (r *Registry) Plugins() []plugin.Plugin {
	return slices.Clone(r.plugins)
}

// Default returns the fallback plugin.
func (r *Registry) Default() plugin.Plugin {
	return r.def
}

// ByName finds a plugin, the default included.
func (r *Registry) ByName(name string) (plugin.Plugin, bool) {
	if r.def.Name() == name {
		return r.def, true
	}
	for _, p := range r.plugins {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Len returns the number of registered plugins, without the default.
func (r *Registry) Len() int {
	return len(r.plugins)
}

// Prioritize moves the named plugins to the front in the given order. The
// rest keep their relative order. Unknown names are an error and leave
// the order unchanged.
func (r *Registry) Prioritize(names []string) error {
	front := make([]plugin.Plugin, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		idx := slices.IndexFunc(r.plugins, func(p plugin.Plugin) bool { return p.Name() == name })
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
		}
		seen[name] = struct{}{}
		front = append(front, r.plugins[idx])
	}
	rest := slices.DeleteFunc(slices.Clone(r.plugins), func(p plugin.Plugin) bool {
		_, moved := seen[p.Name()]
		return moved
	})
	r.plugins = append(front, rest...)
	return nil
}
