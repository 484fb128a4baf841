package plugin

import "github.com/zjrosen/subjecthierarchy/internal/hierarchy"

// DefaultName is the name of the fallback plugin.
const DefaultName = "Default"

// Default owns every item no other plugin claims. It reports zero
// confidence for everything, so it only ever wins by fallback.
type Default struct {
	Base
}

var _ Plugin = (*Default)(nil)

// NewDefault creates the fallback plugin.
func NewDefault() *Default {
	return &Default{Base: NewBase(DefaultName)}
}

// Role marks items the registered plugins could not account for.
func (d *Default) Role(env *Env, id hierarchy.ItemID) string {
	if it, err := env.Tree.Item(id); err == nil && it.DataObject != "" {
		if _, ok := env.Store.Object(DataObjectRef(it)); !ok {
			return "Missing data object"
		}
	}
	return "Unknown"
}

func (d *Default) Icon(*Env, hierarchy.ItemID) string {
	return "?"
}
