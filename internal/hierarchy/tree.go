package hierarchy

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/notify"
)

// Tree holds every item reachable from the scene root.
//
// Structural changes are reported synchronously to observers registered
// with Observe. Item-modified notifications (used to refresh views) go
// through a coalescing queue and reach OnModified callbacks at most once
// per drain.
type Tree struct {
	items  map[ItemID]*Item
	byData map[string]ItemID
	root   ItemID
	nextID ItemID

	observers   []observerEntry
	modObs      []modifiedEntry
	nextObserve int
	modified    *notify.Queue[ItemID]
}

type observerEntry struct {
	id int
	fn Observer
}

type modifiedEntry struct {
	id int
	fn func(ItemID)
}

// New creates a tree containing only the scene root.
func New() *Tree {
	t := &Tree{
		items:  make(map[ItemID]*Item),
		byData: make(map[string]ItemID),
	}
	t.modified = notify.New(t.deliverModified)
	t.root = t.allocate()
	t.items[t.root] = &Item{
		ID:         t.root,
		Name:       "Scene",
		Level:      LevelScene,
		Attributes: map[string]string{},
		UIDs:       map[string]string{},
		Expanded:   true,
	}
	return t
}

func (t *Tree) allocate() ItemID {
	t.nextID++
	return t.nextID
}

// Root returns the scene item.
func (t *Tree) Root() ItemID {
	return t.root
}

// Len returns the number of items including the root.
func (t *Tree) Len() int {
	return len(t.items)
}

// Has reports whether id names a live item.
func (t *Tree) Has(id ItemID) bool {
	_, ok := t.items[id]
	return ok
}

func (t *Tree) get(op string, id ItemID) (*Item, error) {
	it, ok := t.items[id]
	if !ok {
		return nil, opError(op, id, InvalidItemID, ErrInvalidItem)
	}
	return it, nil
}

// Item returns a copy of the item.
func (t *Tree) Item(id ItemID) (Item, error) {
	it, err := t.get("get", id)
	if err != nil {
		return Item{}, err
	}
	return *it.clone(), nil
}

// Parent returns the parent of id. The root's parent is InvalidItemID.
func (t *Tree) Parent(id ItemID) (ItemID, error) {
	it, err := t.get("parent", id)
	if err != nil {
		return InvalidItemID, err
	}
	return it.Parent, nil
}

// Children returns the direct children of id in display order.
func (t *Tree) Children(id ItemID) []ItemID {
	it, ok := t.items[id]
	if !ok {
		return nil
	}
	return slices.Clone(it.Children)
}

// Descendants returns every item below id in pre-order.
func (t *Tree) Descendants(id ItemID) []ItemID {
	var out []ItemID
	var walk func(ItemID)
	walk = func(cur ItemID) {
		it, ok := t.items[cur]
		if !ok {
			return
		}
		for _, c := range it.Children {
			out = append(out, c)
			walk(c)
		}
	}
	walk(id)
	return out
}

// Walk visits items in pre-order from the root until fn returns false.
func (t *Tree) Walk(fn func(Item) bool) {
	var walk func(ItemID) bool
	walk = func(id ItemID) bool {
		it, ok := t.items[id]
		if !ok {
			return true
		}
		if !fn(*it.clone()) {
			return false
		}
		for _, c := range it.Children {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(t.root)
}

// IsAncestor reports whether anc is a strict ancestor of id.
func (t *Tree) IsAncestor(anc, id ItemID) bool {
	it, ok := t.items[id]
	if !ok {
		return false
	}
	for p := it.Parent; p != InvalidItemID; {
		if p == anc {
			return true
		}
		pi, ok := t.items[p]
		if !ok {
			return false
		}
		p = pi.Parent
	}
	return false
}

// Depth returns the number of edges between id and the root.
func (t *Tree) Depth(id ItemID) int {
	depth := 0
	it, ok := t.items[id]
	for ok && it.Parent != InvalidItemID {
		depth++
		it, ok = t.items[it.Parent]
	}
	return depth
}

// CreateItem adds an item under parent. When dataObject already has an
// item, that item is reused: it is moved under parent if needed and its
// ID returned.
func (t *Tree) CreateItem(parent ItemID, name, level, dataObject string) (ItemID, error) {
	if _, err := t.get("create", parent); err != nil {
		return InvalidItemID, err
	}
	if dataObject != "" {
		if existing, ok := t.byData[dataObject]; ok {
			log.Debug(log.CatTree, "reusing item for data object", "item", existing, "object", dataObject)
			if t.items[existing].Parent != parent {
				if err := t.SetParent(existing, parent); err != nil {
					return InvalidItemID, err
				}
			}
			return existing, nil
		}
	}

	id := t.allocate()
	it := &Item{
		ID:              id,
		Name:            name,
		Level:           level,
		OwnerAutoSearch: true,
		DataObject:      dataObject,
		Attributes:      map[string]string{},
		UIDs:            map[string]string{},
		Parent:          parent,
	}
	t.items[id] = it
	if dataObject != "" {
		t.byData[dataObject] = id
	}
	p := t.items[parent]
	p.Children = append(p.Children, id)

	log.Debug(log.CatTree, "item created", "item", id, "parent", parent, "level", level)
	t.emit(Change{Kind: ChangeAdded, Item: id, Parent: parent})
	t.modified.Post(parent)
	return id, nil
}

// CreateFolder adds a folder item.
func (t *Tree) CreateFolder(parent ItemID, name string) (ItemID, error) {
	return t.CreateItem(parent, name, LevelFolder, "")
}

// CreateSubject adds a patient-level item.
func (t *Tree) CreateSubject(parent ItemID, name string) (ItemID, error) {
	return t.CreateItem(parent, name, LevelPatient, "")
}

// CreateStudy adds a study-level item.
func (t *Tree) CreateStudy(parent ItemID, name string) (ItemID, error) {
	return t.CreateItem(parent, name, LevelStudy, "")
}

// RemoveItem deletes id. Without cascade its children move to id's parent
// at id's position. Children of a virtual branch are always removed with
// it. The root cannot be removed.
func (t *Tree) RemoveItem(id ItemID, cascade bool) error {
	it, err := t.get("remove", id)
	if err != nil {
		return err
	}
	if id == t.root {
		return opError("remove", id, InvalidItemID, fmt.Errorf("%w: the scene item cannot be removed", ErrInvalidItem))
	}

	if cascade || it.IsVirtualBranch() {
		for _, c := range slices.Clone(it.Children) {
			if err := t.RemoveItem(c, true); err != nil {
				return err
			}
		}
	} else if err := t.ReparentChildrenToParent(id); err != nil {
		return err
	}

	t.emit(Change{Kind: ChangeAboutToBeRemoved, Item: id, Parent: it.Parent})

	parent := t.items[it.Parent]
	parent.Children = slices.DeleteFunc(parent.Children, func(c ItemID) bool { return c == id })
	delete(t.items, id)
	if it.DataObject != "" {
		delete(t.byData, it.DataObject)
	}

	log.Debug(log.CatTree, "item removed", "item", id, "cascade", cascade)
	t.emit(Change{Kind: ChangeRemoved, Item: id, Parent: it.Parent})
	t.modified.Post(it.Parent)
	return nil
}

// RemoveChildren removes every child of id, cascading.
func (t *Tree) RemoveChildren(id ItemID) error {
	it, err := t.get("remove children", id)
	if err != nil {
		return err
	}
	for _, c := range slices.Clone(it.Children) {
		if err := t.RemoveItem(c, true); err != nil {
			return err
		}
	}
	return nil
}

// ReparentChildrenToParent moves every child of id to id's parent, keeping
// their order and placing them where id sits.
func (t *Tree) ReparentChildrenToParent(id ItemID) error {
	it, err := t.get("reparent children", id)
	if err != nil {
		return err
	}
	if id == t.root {
		return opError("reparent children", id, InvalidItemID, ErrInvalidItem)
	}
	children := slices.Clone(it.Children)
	if len(children) == 0 {
		return nil
	}
	grand := t.items[it.Parent]
	pos := slices.Index(grand.Children, id)

	it.Children = nil
	for i, c := range children {
		t.items[c].Parent = it.Parent
		grand.Children = slices.Insert(grand.Children, pos+1+i, c)
		t.emit(Change{Kind: ChangeReparented, Item: c, Parent: it.Parent, OldParent: id})
	}
	t.modified.Post(it.Parent)
	return nil
}

// SetParent moves id under newParent, appending it to the children list.
// Moving an item under itself or under one of its descendants fails with
// ErrCyclicReparent.
func (t *Tree) SetParent(id, newParent ItemID) error {
	it, err := t.get("reparent", id)
	if err != nil {
		return err
	}
	if _, err := t.get("reparent", newParent); err != nil {
		return opError("reparent", id, newParent, ErrInvalidItem)
	}
	if id == t.root {
		return opError("reparent", id, newParent, fmt.Errorf("%w: the scene item cannot be moved", ErrInvalidItem))
	}
	if id == newParent || t.IsAncestor(id, newParent) {
		return opError("reparent", id, newParent, ErrCyclicReparent)
	}
	if it.Parent == newParent {
		return nil
	}

	old := it.Parent
	op := t.items[old]
	op.Children = slices.DeleteFunc(op.Children, func(c ItemID) bool { return c == id })
	np := t.items[newParent]
	np.Children = append(np.Children, id)
	it.Parent = newParent

	log.Debug(log.CatTree, "item reparented", "item", id, "from", old, "to", newParent)
	t.emit(Change{Kind: ChangeReparented, Item: id, Parent: newParent, OldParent: old})
	t.modified.Post(old)
	t.modified.Post(newParent)
	return nil
}

// PositionUnderParent returns the index of id among its siblings, or -1.
func (t *Tree) PositionUnderParent(id ItemID) int {
	it, ok := t.items[id]
	if !ok || it.Parent == InvalidItemID {
		return -1
	}
	return slices.Index(t.items[it.Parent].Children, id)
}

// MoveBefore reorders id among its siblings so that it sits right before
// before. With InvalidItemID as before the item moves to the end.
func (t *Tree) MoveBefore(id, before ItemID) error {
	it, err := t.get("move", id)
	if err != nil {
		return err
	}
	if id == t.root {
		return opError("move", id, before, ErrInvalidItem)
	}
	siblings := &t.items[it.Parent].Children
	if before != InvalidItemID {
		b, ok := t.items[before]
		if !ok || b.Parent != it.Parent {
			return opError("move", id, before, fmt.Errorf("%w: not a sibling", ErrInvalidItem))
		}
	}
	if id == before {
		return nil
	}
	*siblings = slices.DeleteFunc(*siblings, func(c ItemID) bool { return c == id })
	if before == InvalidItemID {
		*siblings = append(*siblings, id)
	} else {
		*siblings = slices.Insert(*siblings, slices.Index(*siblings, before), id)
	}
	t.modified.Post(it.Parent)
	return nil
}

// SetName renames id.
func (t *Tree) SetName(id ItemID, name string) error {
	it, err := t.get("rename", id)
	if err != nil {
		return err
	}
	if it.Name == name {
		return nil
	}
	it.Name = name
	t.changed(id, "name")
	return nil
}

// SetLevel changes the level tag of id.
func (t *Tree) SetLevel(id ItemID, level string) error {
	it, err := t.get("set level", id)
	if err != nil {
		return err
	}
	if it.Level == level {
		return nil
	}
	it.Level = level
	t.changed(id, "level")
	return nil
}

// SetExpanded records the display expansion state.
func (t *Tree) SetExpanded(id ItemID, expanded bool) error {
	it, err := t.get("expand", id)
	if err != nil {
		return err
	}
	if it.Expanded == expanded {
		return nil
	}
	it.Expanded = expanded
	t.modified.Post(id)
	return nil
}

// SetOwner stores the owner plugin name. autoSearch false pins the owner
// so that later resolution passes leave it alone.
func (t *Tree) SetOwner(id ItemID, plugin string, autoSearch bool) error {
	it, err := t.get("set owner", id)
	if err != nil {
		return err
	}
	if id == t.root {
		return opError("set owner", id, InvalidItemID, fmt.Errorf("%w: the scene item has no owner", ErrInvalidItem))
	}
	if it.Owner == plugin && it.OwnerAutoSearch == autoSearch {
		return nil
	}
	it.Owner = plugin
	it.OwnerAutoSearch = autoSearch
	t.emit(Change{Kind: ChangeOwner, Item: id, Parent: it.Parent})
	t.modified.Post(id)
	return nil
}

// SetDataObject associates id with a data object ("" detaches it). A data
// object may be referenced by one item only.
func (t *Tree) SetDataObject(id ItemID, obj string) error {
	it, err := t.get("set data object", id)
	if err != nil {
		return err
	}
	if it.DataObject == obj {
		return nil
	}
	if obj != "" {
		if other, ok := t.byData[obj]; ok && other != id {
			return opError("set data object", id, other, ErrDuplicateDataObject)
		}
	}
	if it.DataObject != "" {
		delete(t.byData, it.DataObject)
	}
	it.DataObject = obj
	if obj != "" {
		t.byData[obj] = id
	}
	t.emit(Change{Kind: ChangeDataObject, Item: id, Parent: it.Parent})
	t.modified.Post(id)
	return nil
}

// ItemByDataObject returns the item referencing obj.
func (t *Tree) ItemByDataObject(obj string) (ItemID, bool) {
	id, ok := t.byData[obj]
	return id, ok
}

// Attribute returns an attribute value or "".
func (t *Tree) Attribute(id ItemID, name string) string {
	it, ok := t.items[id]
	if !ok {
		return ""
	}
	return it.Attributes[name]
}

// HasAttribute reports whether the attribute is set on id.
func (t *Tree) HasAttribute(id ItemID, name string) bool {
	it, ok := t.items[id]
	if !ok {
		return false
	}
	_, has := it.Attributes[name]
	return has
}

// AttributeNames returns the attribute names of id, sorted.
func (t *Tree) AttributeNames(id ItemID) []string {
	it, ok := t.items[id]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(it.Attributes))
	for k := range it.Attributes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetAttribute sets an attribute. Empty names are rejected.
func (t *Tree) SetAttribute(id ItemID, name, value string) error {
	it, err := t.get("set attribute", id)
	if err != nil {
		return err
	}
	if name == "" {
		return opError("set attribute", id, InvalidItemID, fmt.Errorf("%w: empty attribute name", ErrInvalidItem))
	}
	if old, ok := it.Attributes[name]; ok && old == value {
		return nil
	}
	it.Attributes[name] = value
	t.changed(id, name)
	return nil
}

// RemoveAttribute deletes an attribute. It reports whether it was set.
func (t *Tree) RemoveAttribute(id ItemID, name string) bool {
	it, ok := t.items[id]
	if !ok {
		return false
	}
	if _, has := it.Attributes[name]; !has {
		return false
	}
	delete(it.Attributes, name)
	t.changed(id, name)
	return true
}

// AttributeFromAncestor returns the value of attr on the closest strict
// ancestor of id that has it. A non-empty level limits the search to
// ancestors with that level.
func (t *Tree) AttributeFromAncestor(id ItemID, attr, level string) string {
	it, ok := t.items[id]
	if !ok {
		return ""
	}
	for p := it.Parent; p != InvalidItemID; {
		pi := t.items[p]
		if level == "" || pi.Level == level {
			if v, has := pi.Attributes[attr]; has {
				return v
			}
		}
		p = pi.Parent
	}
	return ""
}

// AncestorAtLevel returns the closest strict ancestor of id whose level is
// level.
func (t *Tree) AncestorAtLevel(id ItemID, level string) (ItemID, bool) {
	it, ok := t.items[id]
	if !ok {
		return InvalidItemID, false
	}
	for p := it.Parent; p != InvalidItemID; {
		pi := t.items[p]
		if pi.Level == level {
			return p, true
		}
		p = pi.Parent
	}
	return InvalidItemID, false
}

// SetUID sets a named unique identifier (for example a DICOM UID).
func (t *Tree) SetUID(id ItemID, name, uid string) error {
	it, err := t.get("set uid", id)
	if err != nil {
		return err
	}
	if it.UIDs[name] == uid {
		return nil
	}
	it.UIDs[name] = uid
	t.changed(id, "uid:"+name)
	return nil
}

// UID returns a named unique identifier or "".
func (t *Tree) UID(id ItemID, name string) string {
	it, ok := t.items[id]
	if !ok {
		return ""
	}
	return it.UIDs[name]
}

// ItemByUID finds the first item, in tree order, carrying the UID.
func (t *Tree) ItemByUID(name, uid string) (ItemID, bool) {
	found := InvalidItemID
	t.Walk(func(it Item) bool {
		if it.UIDs[name] == uid {
			found = it.ID
			return false
		}
		return true
	})
	return found, found != InvalidItemID
}

// GenerateUniqueName returns base, or base_N with the smallest N >= 1
// such that no child of parent is named so.
func (t *Tree) GenerateUniqueName(parent ItemID, base string) string {
	taken := map[string]struct{}{}
	for _, c := range t.Children(parent) {
		taken[t.items[c].Name] = struct{}{}
	}
	if _, ok := taken[base]; !ok {
		return base
	}
	for n := 1; ; n++ {
		candidate := base + "_" + strconv.Itoa(n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

// Clear removes everything but the root.
func (t *Tree) Clear() {
	root := t.items[t.root]
	for id := range t.items {
		if id != t.root {
			delete(t.items, id)
		}
	}
	clear(t.byData)
	root.Children = nil
	t.modified.Discard()
	log.Debug(log.CatTree, "tree cleared")
	t.emit(Change{Kind: ChangeCleared, Item: t.root})
}

// Path returns the names from the root's first child down to id, joined
// by "/".
func (t *Tree) Path(id ItemID) string {
	var parts []string
	for it, ok := t.items[id]; ok && it.ID != t.root; it, ok = t.items[it.Parent] {
		parts = append(parts, it.Name)
	}
	slices.Reverse(parts)
	return strings.Join(parts, "/")
}

func (t *Tree) changed(id ItemID, key string) {
	t.emit(Change{Kind: ChangeAttribute, Item: id, Parent: t.items[id].Parent, Key: key})
	t.modified.Post(id)
}
