package plugin

import (
	"fmt"

	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/log"
)

// Base implements every Plugin method with the neutral behavior: no
// confidence, a plain item on add and a structural move on reparent.
// Concrete plugins embed it and override what they need.
type Base struct {
	name string
}

// NewBase creates a Base reporting name.
func NewBase(name string) Base {
	return Base{name: name}
}

func (b Base) Name() string {
	return b.name
}

func (Base) CanOwnItem(*Env, hierarchy.ItemID) float64 {
	return 0
}

func (Base) CanAddDataObject(*Env, datastore.ObjectID, hierarchy.ItemID) float64 {
	return 0
}

func (Base) CanReparent(*Env, hierarchy.ItemID, hierarchy.ItemID) float64 {
	return 0
}

// AddDataObject creates a plain item named after the object.
func (b Base) AddDataObject(env *Env, obj datastore.ObjectID, parent hierarchy.ItemID) (hierarchy.ItemID, error) {
	o, ok := env.Store.Object(obj)
	if !ok {
		return hierarchy.InvalidItemID, &datastore.NotFoundError{What: "data object", ID: string(obj)}
	}
	id, err := env.Tree.CreateItem(parent, o.Name, "", string(obj))
	if err != nil {
		return hierarchy.InvalidItemID, fmt.Errorf("adding %s: %w", obj, err)
	}
	log.Debug(log.CatPlugin, "item added for data object", "plugin", b.name, "item", id, "object", obj)
	return id, nil
}

// Reparent moves the item structurally.
func (b Base) Reparent(env *Env, id, newParent hierarchy.ItemID) (Outcome, error) {
	if err := env.Tree.SetParent(id, newParent); err != nil {
		return 0, err
	}
	return OutcomeMoved, nil
}

func (Base) Role(*Env, hierarchy.ItemID) string {
	return ""
}

func (Base) Icon(*Env, hierarchy.ItemID) string {
	return ""
}

func (Base) ContextActions(*Env, hierarchy.ItemID) []string {
	return nil
}
