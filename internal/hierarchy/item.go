// Package hierarchy is the item store: the tree of subject hierarchy items,
// their attributes and the structural operations on them. It holds no
// ownership policy; plugins and the consistency controller decide what
// goes where.
package hierarchy

import (
	"maps"
	"slices"
)

// ItemID identifies an item for the lifetime of a Tree. IDs are never
// reused.
type ItemID uint64

// InvalidItemID is the zero ID. No item ever has it.
const InvalidItemID ItemID = 0

// Well-known level tags. Any string is a valid level; empty means a plain
// data item.
const (
	LevelScene   = "Scene"
	LevelFolder  = "Folder"
	LevelPatient = "Patient"
	LevelStudy   = "Study"
	LevelSeries  = "Series"
)

// Reserved attribute names.
const (
	// AttrVirtualBranch marks an item whose children are computed from its
	// data object and cannot be moved independently.
	AttrVirtualBranch = "virtual-branch"
	// AttrApplyColorToBranch turns on the folder color override.
	AttrApplyColorToBranch = "apply-color-to-branch"
	// AttrExcludeFromTree keeps a data object out of the hierarchy.
	AttrExcludeFromTree = "exclude-from-tree"
	// AttrLegacyNode marks the shadow item of a legacy hierarchy node. The
	// value is the legacy node ID.
	AttrLegacyNode = "legacy-node"
	// AttrFolderDisplay holds the display record ID owned by a folder.
	AttrFolderDisplay = "folder-display"
)

// Item is a copy of an item's state. Mutating it has no effect on the tree.
type Item struct {
	ID              ItemID
	Name            string
	Level           string
	Owner           string
	OwnerAutoSearch bool
	DataObject      string
	Attributes      map[string]string
	UIDs            map[string]string
	Expanded        bool
	Parent          ItemID
	Children        []ItemID
}

// Attribute returns the named attribute or "".
func (it Item) Attribute(name string) string {
	return it.Attributes[name]
}

// IsVirtualBranch reports whether the item hosts a virtual branch.
func (it Item) IsVirtualBranch() bool {
	return it.Attributes[AttrVirtualBranch] != ""
}

// IsStructural reports whether the item exists only to group others:
// it has a level or is a legacy shadow, and references no data object.
func (it Item) IsStructural() bool {
	return it.DataObject == "" && (it.Level != "" || it.Attributes[AttrLegacyNode] != "")
}

func (it *Item) clone() *Item {
	c := *it
	c.Attributes = maps.Clone(it.Attributes)
	c.UIDs = maps.Clone(it.UIDs)
	c.Children = slices.Clone(it.Children)
	if c.Attributes == nil {
		c.Attributes = map[string]string{}
	}
	if c.UIDs == nil {
		c.UIDs = map[string]string{}
	}
	return &c
}

// ChangeKind classifies a tree change.
type ChangeKind uint8

const (
	ChangeAdded ChangeKind = iota + 1
	ChangeAboutToBeRemoved
	ChangeRemoved
	ChangeReparented
	ChangeAttribute
	ChangeDataObject
	ChangeOwner
	ChangeCleared
	ChangeRestored
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeAboutToBeRemoved:
		return "about-to-be-removed"
	case ChangeRemoved:
		return "removed"
	case ChangeReparented:
		return "reparented"
	case ChangeAttribute:
		return "attribute"
	case ChangeDataObject:
		return "data-object"
	case ChangeOwner:
		return "owner"
	case ChangeCleared:
		return "cleared"
	case ChangeRestored:
		return "restored"
	default:
		return "unknown"
	}
}

// Change is delivered synchronously to tree observers for every mutation.
// For ChangeReparented, OldParent and Parent hold both ends of the move.
// For ChangeAttribute, Key names the attribute ("name" and "level" are used
// for those fields, "uid:<name>" for UIDs).
type Change struct {
	Kind      ChangeKind
	Item      ItemID
	Parent    ItemID
	OldParent ItemID
	Key       string
}

// Observer receives synchronous tree changes.
type Observer func(Change)
