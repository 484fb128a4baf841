package datastore

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/zjrosen/subjecthierarchy/internal/log"
)

// AddLegacyNode inserts a legacy hierarchy node, assigning an ID when it
// has none. Its parent, when given, must exist and must not carry a data
// object.
func (s *Store) AddLegacyNode(n LegacyNode) (string, error) {
	if n.ID == "" {
		n.ID = "legacy-" + uuid.NewString()
	}
	if _, ok := s.legacy[n.ID]; ok {
		return "", fmt.Errorf("legacy node %s already exists", n.ID)
	}
	if err := s.checkLegacyParent(n.ID, n.ParentID); err != nil {
		return "", err
	}
	node := n
	s.legacy[n.ID] = &node
	s.legacyOrder = append(s.legacyOrder, n.ID)
	s.emit(Event{Kind: EventLegacyAdded, Legacy: n.ID, Object: n.AssociatedObjectID})
	return n.ID, nil
}

// RemoveLegacyNode deletes a legacy node. Its children move to the top
// level.
func (s *Store) RemoveLegacyNode(id string) error {
	if _, ok := s.legacy[id]; !ok {
		return &NotFoundError{What: "legacy node", ID: id}
	}
	for _, cid := range slices.Clone(s.legacyOrder) {
		c := s.legacy[cid]
		if c.ParentID == id {
			c.ParentID = ""
			s.emit(Event{Kind: EventLegacyReparented, Legacy: cid})
		}
	}
	delete(s.legacy, id)
	s.legacyOrder = slices.DeleteFunc(s.legacyOrder, func(x string) bool { return x == id })
	s.emit(Event{Kind: EventLegacyRemoved, Legacy: id})
	return nil
}

// SetLegacyParent repoints a legacy node ("" for top level).
func (s *Store) SetLegacyParent(id, parent string) error {
	n, ok := s.legacy[id]
	if !ok {
		return &NotFoundError{What: "legacy node", ID: id}
	}
	if err := s.checkLegacyParent(id, parent); err != nil {
		return err
	}
	if n.ParentID == parent {
		return nil
	}
	n.ParentID = parent
	log.Debug(log.CatLegacy, "legacy node reparented", "node", id, "parent", parent)
	s.emit(Event{Kind: EventLegacyReparented, Legacy: id})
	return nil
}

func (s *Store) checkLegacyParent(id, parent string) error {
	if parent == "" {
		return nil
	}
	p, ok := s.legacy[parent]
	if !ok {
		return &NotFoundError{What: "legacy node", ID: parent}
	}
	if p.AssociatedObjectID != "" {
		return fmt.Errorf("%w: %s", ErrLegacyDataParent, parent)
	}
	for cur := p; cur != nil; cur = s.legacy[cur.ParentID] {
		if cur.ID == id {
			return fmt.Errorf("%w: %s under %s", ErrLegacyCycle, id, parent)
		}
	}
	return nil
}

// LegacyNode returns a copy of a legacy node.
func (s *Store) LegacyNode(id string) (LegacyNode, bool) {
	n, ok := s.legacy[id]
	if !ok {
		return LegacyNode{}, false
	}
	return *n, true
}

// LegacyNodes returns copies of all legacy nodes in insertion order.
func (s *Store) LegacyNodes() []LegacyNode {
	out := make([]LegacyNode, 0, len(s.legacyOrder))
	for _, id := range s.legacyOrder {
		out = append(out, *s.legacy[id])
	}
	return out
}

// LegacyNodeForObject returns the legacy node associated with obj.
func (s *Store) LegacyNodeForObject(obj ObjectID) (LegacyNode, bool) {
	if obj == "" {
		return LegacyNode{}, false
	}
	for _, id := range s.legacyOrder {
		if n := s.legacy[id]; n.AssociatedObjectID == obj {
			return *n, true
		}
	}
	return LegacyNode{}, false
}
