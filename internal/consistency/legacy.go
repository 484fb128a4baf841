package consistency

import (
	"errors"
	"fmt"

	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/log"
)

// The legacy hierarchy is a parent-pointer tree kept in the store. Every
// legacy node without a data object has a shadow item carrying
// hierarchy.AttrLegacyNode; a node with a data object is represented by
// that object's item. The two structures agree when every represented
// node with a legacy parent sits directly under the parent's shadow, and
// every top-level node sits outside any shadow.
//
// Store changes flow into the tree through healLegacy. Tree moves flow
// into the store through syncLegacyPointer.

type legacyPointer struct {
	node   string
	parent string
}

// legacyNodeOf returns the legacy node an item represents.
func (c *Controller) legacyNodeOf(id hierarchy.ItemID) (datastore.LegacyNode, bool) {
	it, err := c.tree.Item(id)
	if err != nil {
		return datastore.LegacyNode{}, false
	}
	if ln := it.Attributes[hierarchy.AttrLegacyNode]; ln != "" {
		return c.store.LegacyNode(ln)
	}
	return c.store.LegacyNodeForObject(datastore.ObjectID(it.DataObject))
}

func (c *Controller) shadowOf(node string) (hierarchy.ItemID, bool) {
	found := hierarchy.InvalidItemID
	c.tree.Walk(func(it hierarchy.Item) bool {
		if it.Attributes[hierarchy.AttrLegacyNode] == node {
			found = it.ID
			return false
		}
		return true
	})
	return found, found != hierarchy.InvalidItemID
}

func (c *Controller) captureLegacy(id hierarchy.ItemID) legacyPointer {
	n, ok := c.legacyNodeOf(id)
	if !ok {
		return legacyPointer{}
	}
	return legacyPointer{node: n.ID, parent: n.ParentID}
}

func (c *Controller) restoreLegacy(p legacyPointer) {
	if p.node == "" {
		return
	}
	n, ok := c.store.LegacyNode(p.node)
	if !ok || n.ParentID == p.parent {
		return
	}
	c.syncingLegacy = true
	defer func() { c.syncingLegacy = false }()
	if err := c.store.SetLegacyParent(p.node, p.parent); err != nil {
		log.ErrorErr(log.CatLegacy, "restoring legacy parent failed", err, "node", p.node)
	}
}

// syncLegacyPointer points the legacy node of id at the node its new tree
// parent represents, or at the top level. A parent whose node carries a
// data object is refused by the store.
func (c *Controller) syncLegacyPointer(id hierarchy.ItemID) error {
	node, ok := c.legacyNodeOf(id)
	if !ok {
		return nil
	}
	parent, err := c.tree.Parent(id)
	if err != nil {
		return err
	}
	want := ""
	if pn, ok := c.legacyNodeOf(parent); ok {
		want = pn.ID
	}
	if node.ParentID == want {
		return nil
	}

	c.syncingLegacy = true
	defer func() { c.syncingLegacy = false }()
	if err := c.store.SetLegacyParent(node.ID, want); err != nil {
		if errors.Is(err, datastore.ErrLegacyDataParent) {
			log.Warn(log.CatLegacy, "refusing legacy parent carrying a data object", "node", node.ID, "parent", want)
		}
		return fmt.Errorf("legacy parent of %s: %w", node.ID, err)
	}
	log.Debug(log.CatLegacy, "legacy pointer synced", "node", node.ID, "parent", want)
	return nil
}

// healLegacy makes the tree agree with the legacy hierarchy: stale
// shadows go, missing shadows are created and misplaced items are moved.
// It returns the number of changes.
func (c *Controller) healLegacy() int {
	nodes := c.store.LegacyNodes()
	live := make(map[string]datastore.LegacyNode, len(nodes))
	for _, n := range nodes {
		live[n.ID] = n
	}

	changes := 0
	shadows := map[string]hierarchy.ItemID{}
	var stale []hierarchy.ItemID
	c.tree.Walk(func(it hierarchy.Item) bool {
		ln := it.Attributes[hierarchy.AttrLegacyNode]
		if ln == "" {
			return true
		}
		n, ok := live[ln]
		_, dup := shadows[ln]
		if !ok || dup || n.AssociatedObjectID != "" {
			stale = append(stale, it.ID)
			return true
		}
		shadows[ln] = it.ID
		return true
	})
	for _, id := range stale {
		if !c.tree.Has(id) {
			continue
		}
		if err := c.tree.RemoveItem(id, false); err != nil {
			log.ErrorErr(log.CatLegacy, "removing stale shadow failed", err, "item", id)
			continue
		}
		changes++
	}

	root := c.tree.Root()
	for _, n := range nodes {
		if n.AssociatedObjectID != "" || shadows[n.ID] != hierarchy.InvalidItemID {
			continue
		}
		id, err := c.tree.CreateItem(root, n.Name, "", "")
		if err == nil {
			err = c.tree.SetAttribute(id, hierarchy.AttrLegacyNode, n.ID)
		}
		if err != nil {
			log.ErrorErr(log.CatLegacy, "creating shadow failed", err, "node", n.ID)
			continue
		}
		shadows[n.ID] = id
		c.assignBranch(id)
		changes++
	}

	itemFor := func(n datastore.LegacyNode) (hierarchy.ItemID, bool) {
		if n.AssociatedObjectID != "" {
			return c.tree.ItemByDataObject(string(n.AssociatedObjectID))
		}
		id, ok := shadows[n.ID]
		return id, ok
	}
	isShadow := func(id hierarchy.ItemID) bool {
		return c.tree.Attribute(id, hierarchy.AttrLegacyNode) != ""
	}

	type move struct{ item, to hierarchy.ItemID }
	var moves []move
	for _, n := range nodes {
		item, ok := itemFor(n)
		if !ok {
			continue
		}
		cur, _ := c.tree.Parent(item)
		want := hierarchy.InvalidItemID
		if p, ok := live[n.ParentID]; ok && p.AssociatedObjectID == "" {
			want = shadows[p.ID]
		}
		switch {
		case want != hierarchy.InvalidItemID && cur != want:
			moves = append(moves, move{item, want})
		case want == hierarchy.InvalidItemID && isShadow(cur):
			moves = append(moves, move{item, root})
		}
	}
	// Detach first so attaching cannot run into a cycle through a shadow
	// that is about to move.
	for _, m := range moves {
		if err := c.tree.SetParent(m.item, root); err != nil {
			log.ErrorErr(log.CatLegacy, "detaching item failed", err, "item", m.item)
		}
	}
	for _, m := range moves {
		if m.to == root {
			changes++
			continue
		}
		if err := c.tree.SetParent(m.item, m.to); err != nil {
			log.Warn(log.CatLegacy, "cannot place item under its legacy parent", "item", m.item, "parent", m.to, "error", err)
			continue
		}
		changes++
	}
	return changes
}
