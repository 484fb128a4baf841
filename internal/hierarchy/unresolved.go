package hierarchy

import (
	"fmt"
	"maps"

	"github.com/zjrosen/subjecthierarchy/internal/log"
)

// UnresolvedItem is an item read back from a document. Its identity and
// parent are the IDs it was saved with, which mean nothing to the live
// tree until it is resolved.
type UnresolvedItem struct {
	TempID          string
	ParentTempID    string // empty for children of the scene root
	Name            string
	Level           string
	Owner           string
	OwnerAutoSearch bool
	DataObject      string
	Attributes      map[string]string
	UIDs            map[string]string
	Expanded        bool
}

// ResolveUnresolved adds the items to the tree, parents before children,
// preserving input order among siblings. It returns the mapping from
// saved ID to live ID. When a pass places nothing while items remain (a
// missing parent or a cycle), the tree is rolled back and ErrUnresolvable
// is returned.
func (t *Tree) ResolveUnresolved(items []UnresolvedItem) (map[string]ItemID, error) {
	resolved := make(map[string]ItemID, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, u := range items {
		if u.TempID == "" {
			return nil, fmt.Errorf("%w: item %q has no saved id", ErrUnresolvable, u.Name)
		}
		if _, dup := seen[u.TempID]; dup {
			return nil, fmt.Errorf("%w: saved id %s appears twice", ErrUnresolvable, u.TempID)
		}
		seen[u.TempID] = struct{}{}
	}

	snap := t.Snapshot()
	remaining := items
	for pass := 1; len(remaining) > 0; pass++ {
		var next []UnresolvedItem
		for _, u := range remaining {
			parent := t.root
			if u.ParentTempID != "" {
				p, ok := resolved[u.ParentTempID]
				if !ok {
					next = append(next, u)
					continue
				}
				parent = p
			}
			id, err := t.place(parent, u)
			if err != nil {
				t.Restore(snap)
				return nil, fmt.Errorf("resolving item %s: %w", u.TempID, err)
			}
			resolved[u.TempID] = id
		}
		if len(next) == len(remaining) {
			t.Restore(snap)
			log.Warn(log.CatTree, "unresolved items left after pass", "pass", pass, "count", len(next))
			return nil, fmt.Errorf("%w: %d items have no reachable parent", ErrUnresolvable, len(next))
		}
		log.Debug(log.CatTree, "resolve pass", "pass", pass, "placed", len(remaining)-len(next))
		remaining = next
	}
	return resolved, nil
}

func (t *Tree) place(parent ItemID, u UnresolvedItem) (ItemID, error) {
	if u.DataObject != "" {
		if _, dup := t.byData[u.DataObject]; dup {
			log.Warn(log.CatTree, "data object referenced twice in document, merging", "object", u.DataObject)
		}
	}
	id, err := t.CreateItem(parent, u.Name, u.Level, u.DataObject)
	if err != nil {
		return InvalidItemID, err
	}
	it := t.items[id]
	maps.Copy(it.Attributes, u.Attributes)
	maps.Copy(it.UIDs, u.UIDs)
	it.Owner = u.Owner
	it.OwnerAutoSearch = u.OwnerAutoSearch
	it.Expanded = u.Expanded
	t.changed(id, "document")
	return id, nil
}
