package resolver

import (
	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/log"
)

// onTreeChange drops cached owners whose inputs changed. Confidence may
// depend on ancestors, so a move invalidates the whole moved branch.
func (r *Resolver) onTreeChange(c hierarchy.Change) {
	switch c.Kind {
	case hierarchy.ChangeAttribute, hierarchy.ChangeDataObject, hierarchy.ChangeReparented:
		r.invalidateBranch(c.Item)
	case hierarchy.ChangeRemoved:
		r.owners.Forget(c.Item)
	case hierarchy.ChangeCleared, hierarchy.ChangeRestored:
		r.owners.Reset()
	}
}

// onStoreEvent drops the branch of the item referencing the object. An
// item may name its object before the store holds it, so additions count.
func (r *Resolver) onStoreEvent(ev datastore.Event) {
	switch ev.Kind {
	case datastore.EventObjectAdded, datastore.EventObjectModified,
		datastore.EventObjectAboutToBeRemoved, datastore.EventObjectRemoved:
		if id, ok := r.env.Tree.ItemByDataObject(string(ev.Object)); ok {
			r.invalidateBranch(id)
		}
	case datastore.EventSceneClosed, datastore.EventSceneRestored:
		r.owners.Reset()
	}
}

func (r *Resolver) invalidateBranch(id hierarchy.ItemID) {
	ids := append([]hierarchy.ItemID{id}, r.env.Tree.Descendants(id)...)
	log.Debug(log.CatCache, "owner cache invalidated", "item", id, "entries", len(ids))
	r.owners.Forget(ids...)
}

// InvalidateAll empties the owner cache.
func (r *Resolver) InvalidateAll() {
	r.owners.Reset()
}
