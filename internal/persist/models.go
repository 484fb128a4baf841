package persist

import (
	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
)

// itemModel is a row of the items table.
type itemModel struct {
	Key             string
	ParentKey       *string // nullable, NULL for children of the scene
	Position        int
	Name            string
	Level           string
	Owner           string
	OwnerAutoSearch bool
	DataObject      *string // nullable
	Expanded        bool
}

// objectModel is a row of the data_objects table.
type objectModel struct {
	ID              string
	Position        int
	Name            string
	Kind            string
	HideFromEditors bool
	TransformID     *string // nullable
	DisplayID       *string // nullable
}

// legacyModel is a row of the legacy_nodes table.
type legacyModel struct {
	ID       string
	Position int
	Name     string
	ParentID *string // nullable
	ObjectID *string // nullable
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toItemModel(u hierarchy.UnresolvedItem, pos int) itemModel {
	return itemModel{
		Key:             u.TempID,
		ParentKey:       nullable(u.ParentTempID),
		Position:        pos,
		Name:            u.Name,
		Level:           u.Level,
		Owner:           u.Owner,
		OwnerAutoSearch: u.OwnerAutoSearch,
		DataObject:      nullable(u.DataObject),
		Expanded:        u.Expanded,
	}
}

func (m itemModel) toUnresolved() hierarchy.UnresolvedItem {
	return hierarchy.UnresolvedItem{
		TempID:          m.Key,
		ParentTempID:    deref(m.ParentKey),
		Name:            m.Name,
		Level:           m.Level,
		Owner:           m.Owner,
		OwnerAutoSearch: m.OwnerAutoSearch,
		DataObject:      deref(m.DataObject),
		Expanded:        m.Expanded,
		Attributes:      map[string]string{},
		UIDs:            map[string]string{},
	}
}

func toObjectModel(o datastore.DataObject, pos int) objectModel {
	return objectModel{
		ID:              string(o.ID),
		Position:        pos,
		Name:            o.Name,
		Kind:            o.Kind.String(),
		HideFromEditors: o.HideFromEditors,
		TransformID:     nullable(string(o.TransformID)),
		DisplayID:       nullable(string(o.DisplayID)),
	}
}

func (m objectModel) toDataObject() (datastore.DataObject, error) {
	kind, err := datastore.ParseKind(m.Kind)
	if err != nil {
		return datastore.DataObject{}, err
	}
	return datastore.DataObject{
		ID:              datastore.ObjectID(m.ID),
		Name:            m.Name,
		Kind:            kind,
		HideFromEditors: m.HideFromEditors,
		TransformID:     datastore.ObjectID(deref(m.TransformID)),
		DisplayID:       datastore.DisplayID(deref(m.DisplayID)),
		Attributes:      map[string]string{},
	}, nil
}

func toLegacyModel(n datastore.LegacyNode, pos int) legacyModel {
	return legacyModel{
		ID:       n.ID,
		Position: pos,
		Name:     n.Name,
		ParentID: nullable(n.ParentID),
		ObjectID: nullable(string(n.AssociatedObjectID)),
	}
}

func (m legacyModel) toLegacyNode() datastore.LegacyNode {
	return datastore.LegacyNode{
		ID:                 m.ID,
		Name:               m.Name,
		ParentID:           deref(m.ParentID),
		AssociatedObjectID: datastore.ObjectID(deref(m.ObjectID)),
	}
}

// nullArg turns a nullable column value into a query argument.
func nullArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
