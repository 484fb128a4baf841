package plugins

import (
	"github.com/zjrosen/subjecthierarchy/internal/plugin"
	"github.com/zjrosen/subjecthierarchy/internal/resolver"
)

// Options selects behavior of the built-in plugins.
type Options struct {
	HardenOnReparent bool
}

// Builtin returns the built-in plugins in their default registration
// order, which is also the tie-break order.
func Builtin(opts Options) []plugin.Plugin {
	return []plugin.Plugin{
		NewFolder(),
		NewSubject(),
		NewSegmentations(),
		NewTransforms(WithHarden(opts.HardenOnReparent)),
		NewVolumes(),
		NewModels(),
		NewTexts(),
	}
}

// NewRegistry returns a registry holding the built-in plugins. A non-empty
// order moves the named plugins to the front.
func NewRegistry(opts Options, order []string) (*resolver.Registry, error) {
	reg := resolver.NewRegistry(nil)
	for _, p := range Builtin(opts) {
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	if len(order) > 0 {
		if err := reg.Prioritize(order); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
