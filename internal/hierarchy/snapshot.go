package hierarchy

import (
	"maps"
	"slices"
)

// Snapshot is a deep copy of a tree's items used to roll back a failed
// operation.
type Snapshot struct {
	items map[ItemID]*Item
}

// Snapshot captures the current state.
func (t *Tree) Snapshot() Snapshot {
	items := make(map[ItemID]*Item, len(t.items))
	for id, it := range t.items {
		items[id] = it.clone()
	}
	return Snapshot{items: items}
}

// Restore puts the tree back in the captured state. The ID counter is not
// rewound, so IDs handed out after the snapshot stay unused. Observers get
// a ChangeRestored for the root.
func (t *Tree) Restore(s Snapshot) {
	t.items = make(map[ItemID]*Item, len(s.items))
	clear(t.byData)
	for id, it := range s.items {
		c := it.clone()
		t.items[id] = c
		if c.DataObject != "" {
			t.byData[c.DataObject] = id
		}
	}
	t.emit(Change{Kind: ChangeRestored, Item: t.root})
	t.modified.Post(t.root)
}

// Equal reports whether two snapshots hold identical items.
func (s Snapshot) Equal(o Snapshot) bool {
	return maps.EqualFunc(s.items, o.items, func(a, b *Item) bool {
		return a.ID == b.ID &&
			a.Name == b.Name &&
			a.Level == b.Level &&
			a.Owner == b.Owner &&
			a.OwnerAutoSearch == b.OwnerAutoSearch &&
			a.DataObject == b.DataObject &&
			a.Expanded == b.Expanded &&
			a.Parent == b.Parent &&
			maps.Equal(a.Attributes, b.Attributes) &&
			maps.Equal(a.UIDs, b.UIDs) &&
			slices.Equal(a.Children, b.Children)
	})
}

// Len returns the number of captured items.
func (s Snapshot) Len() int {
	return len(s.items)
}
