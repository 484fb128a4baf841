// Package plugin defines the capability interface every subject hierarchy
// plugin implements, and the Default plugin that owns whatever nobody
// else claims.
//
// Confidence methods must be pure: they read the tree and the store passed
// in Env and never change them. Effects run only on the plugin that won
// resolution.
package plugin

import (
	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
)

// Env is the state a plugin may read or, in effect methods, change. It is
// handed to every call; plugins must not keep it.
type Env struct {
	Tree  *hierarchy.Tree
	Store *datastore.Store
}

// Outcome says how a Reparent effect was carried out.
type Outcome uint8

const (
	// OutcomeMoved means the item now sits under the new parent.
	OutcomeMoved Outcome = iota + 1
	// OutcomeEffectApplied means the plugin applied an equivalent effect
	// instead of moving the item.
	OutcomeEffectApplied
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMoved:
		return "moved"
	case OutcomeEffectApplied:
		return "effect-applied"
	default:
		return "none"
	}
}

// Plugin is one competitor in ownership resolution.
type Plugin interface {
	Name() string

	// CanOwnItem returns 0 when the plugin cannot own the item and 1 when
	// it owns it exclusively.
	CanOwnItem(env *Env, id hierarchy.ItemID) float64
	// CanAddDataObject reports whether the plugin can create the item for
	// a data object not yet in the tree.
	CanAddDataObject(env *Env, obj datastore.ObjectID, parent hierarchy.ItemID) float64
	// CanReparent reports special handling for moving id under newParent.
	// 0 means none is needed and a plain structural move is fine.
	CanReparent(env *Env, id, newParent hierarchy.ItemID) float64

	// AddDataObject and Reparent may change the tree and the transform or
	// attributes of the objects involved. When they return an error the
	// controller puts those back; other store changes are the plugin's to
	// undo.
	AddDataObject(env *Env, obj datastore.ObjectID, parent hierarchy.ItemID) (hierarchy.ItemID, error)
	Reparent(env *Env, id, newParent hierarchy.ItemID) (Outcome, error)

	Role(env *Env, id hierarchy.ItemID) string
	Icon(env *Env, id hierarchy.ItemID) string
	ContextActions(env *Env, id hierarchy.ItemID) []string
}

// DataObjectOf returns the data object referenced by an item.
func DataObjectOf(env *Env, id hierarchy.ItemID) (datastore.DataObject, bool) {
	it, err := env.Tree.Item(id)
	if err != nil || it.DataObject == "" {
		return datastore.DataObject{}, false
	}
	return env.Store.Object(datastore.ObjectID(it.DataObject))
}

// KindOf returns the kind of the item's data object, if it has one.
func KindOf(env *Env, id hierarchy.ItemID) (datastore.Kind, bool) {
	obj, ok := DataObjectOf(env, id)
	if !ok {
		return datastore.KindOther, false
	}
	return obj.Kind, true
}

// DataObjectRef converts an item's data object reference to a store ID.
func DataObjectRef(it hierarchy.Item) datastore.ObjectID {
	return datastore.ObjectID(it.DataObject)
}

// Refresher is implemented by plugins whose items derive part of their
// structure from the data object. Refresh is called after the object
// changes.
type Refresher interface {
	Refresh(env *Env, id hierarchy.ItemID) error
}
