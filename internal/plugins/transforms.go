package plugins

import (
	"errors"
	"fmt"

	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/plugin"
)

// TransformsName is the registered name of the transforms plugin.
const TransformsName = "Transforms"

// AttrHardenedTransform is set on an object whose transform was applied
// permanently. The value is the transform's object ID.
const AttrHardenedTransform = "hardened-transform"

// ErrTransformLoop is returned when applying a transform would make a
// transform depend on itself.
var ErrTransformLoop = errors.New("transform would depend on itself")

// Transforms owns transform objects. Dropping transformable data onto a
// transform applies the transform instead of moving the data.
type Transforms struct {
	plugin.Base
	harden bool
}

var _ plugin.Plugin = (*Transforms)(nil)

// TransformsOption configures the transforms plugin.
type TransformsOption func(*Transforms)

// WithHarden makes Reparent apply the transform permanently and then
// clear it.
func WithHarden(on bool) TransformsOption {
	return func(t *Transforms) {
		t.harden = on
	}
}

// NewTransforms creates the transforms plugin.
func NewTransforms(opts ...TransformsOption) *Transforms {
	t := &Transforms{Base: plugin.NewBase(TransformsName)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transforms) CanOwnItem(env *plugin.Env, id hierarchy.ItemID) float64 {
	if kind, ok := plugin.KindOf(env, id); ok && kind == datastore.KindTransform {
		return 0.5
	}
	return 0
}

func (t *Transforms) CanAddDataObject(env *plugin.Env, obj datastore.ObjectID, _ hierarchy.ItemID) float64 {
	if o, ok := env.Store.Object(obj); ok && o.Kind == datastore.KindTransform {
		return 0.5
	}
	return 0
}

// CanReparent claims moving transformable data onto a transform.
func (t *Transforms) CanReparent(env *plugin.Env, id, newParent hierarchy.ItemID) float64 {
	target, ok := plugin.DataObjectOf(env, newParent)
	if !ok || target.Kind != datastore.KindTransform {
		return 0
	}
	obj, ok := plugin.DataObjectOf(env, id)
	if !ok || !obj.Kind.Transformable() || obj.ID == target.ID {
		return 0
	}
	return 1
}

// Reparent applies the parent's transform to the item's object and every
// transformable object below it. The item stays where it is. On error
// every object is put back the way it was.
func (t *Transforms) Reparent(env *plugin.Env, id, newParent hierarchy.ItemID) (plugin.Outcome, error) {
	target, ok := plugin.DataObjectOf(env, newParent)
	if !ok || target.Kind != datastore.KindTransform {
		return 0, fmt.Errorf("%d does not hold a transform", newParent)
	}

	var objects []datastore.DataObject
	for _, item := range append([]hierarchy.ItemID{id}, env.Tree.Descendants(id)...) {
		if obj, ok := plugin.DataObjectOf(env, item); ok && obj.Kind.Transformable() && obj.ID != target.ID {
			objects = append(objects, obj)
		}
	}
	for _, obj := range objects {
		if dependsOn(env, target.ID, obj.ID) {
			return 0, fmt.Errorf("applying %s to %s: %w", target.Name, obj.Name, ErrTransformLoop)
		}
	}

	applied := make([]datastore.DataObject, 0, len(objects))
	rollback := func() {
		for _, obj := range applied {
			if err := env.Store.SetTransform(obj.ID, obj.TransformID); err != nil {
				log.ErrorErr(log.CatPlugin, "restoring transform failed", err, "object", obj.ID)
			}
			if t.harden {
				restoreAttribute(env, obj, AttrHardenedTransform)
			}
		}
	}
	for _, obj := range objects {
		applied = append(applied, obj)
		if err := t.apply(env, obj.ID, target.ID); err != nil {
			rollback()
			return 0, err
		}
	}

	log.Debug(log.CatPlugin, "transform applied", "transform", target.ID, "objects", len(objects), "harden", t.harden)
	return plugin.OutcomeEffectApplied, nil
}

func (t *Transforms) apply(env *plugin.Env, obj, transform datastore.ObjectID) error {
	if err := env.Store.SetTransform(obj, transform); err != nil {
		return err
	}
	if !t.harden {
		return nil
	}
	if err := env.Store.SetObjectAttribute(obj, AttrHardenedTransform, string(transform)); err != nil {
		return err
	}
	return env.Store.SetTransform(obj, "")
}

// dependsOn reports whether transform is obj or is itself transformed,
// directly or through a chain, by obj.
func dependsOn(env *plugin.Env, transform, obj datastore.ObjectID) bool {
	seen := map[datastore.ObjectID]bool{}
	for cur := transform; cur != "" && !seen[cur]; {
		if cur == obj {
			return true
		}
		seen[cur] = true
		o, ok := env.Store.Object(cur)
		if !ok {
			return false
		}
		cur = o.TransformID
	}
	return false
}

func restoreAttribute(env *plugin.Env, obj datastore.DataObject, name string) {
	old := obj.Attributes[name]
	if cur, ok := env.Store.Object(obj.ID); ok && cur.Attributes[name] == old {
		return
	}
	if err := env.Store.SetObjectAttribute(obj.ID, name, old); err != nil {
		log.ErrorErr(log.CatPlugin, "restoring attribute failed", err, "object", obj.ID, "attribute", name)
	}
}

func (t *Transforms) Role(env *plugin.Env, id hierarchy.ItemID) string {
	return "Transform"
}

func (t *Transforms) Icon(*plugin.Env, hierarchy.ItemID) string {
	return "⤧"
}

func (t *Transforms) ContextActions(env *plugin.Env, id hierarchy.ItemID) []string {
	return []string{"Invert transform", "Harden transform"}
}
