// Package datastore models the scene the hierarchy organizes: data
// objects, their display records and the legacy parent-pointer hierarchy.
// It knows nothing about items; it only announces what happened through
// its event feed.
package datastore

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/log"
)

// Store errors
var (
	ErrDuplicateObject  = errors.New("data object already exists")
	ErrLegacyDataParent = errors.New("a legacy node carrying a data object cannot be a parent")
	ErrLegacyCycle      = errors.New("legacy reparent would create a cycle")
)

// NotFoundError is returned when an object, display record or legacy
// node does not exist.
type NotFoundError struct {
	What string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.What, e.ID)
}

// ObjectID identifies a data object.
type ObjectID string

// NewObjectID returns a fresh random ID.
func NewObjectID() ObjectID {
	return ObjectID(uuid.NewString())
}

// DisplayID identifies a display record.
type DisplayID string

// DataObject is an externally owned scene object.
type DataObject struct {
	ID              ObjectID
	Name            string
	Kind            Kind
	Attributes      map[string]string
	HideFromEditors bool
	TransformID     ObjectID
	DisplayID       DisplayID
}

// DisplayRecord holds the display properties the hierarchy touches.
type DisplayRecord struct {
	ID       DisplayID
	Color    string
	Visible  bool
	Modified uint64
}

// LegacyNode is a node of the older parent-pointer hierarchy.
type LegacyNode struct {
	ID                 string
	Name               string
	ParentID           string
	AssociatedObjectID ObjectID
}

// Store is the in-memory scene.
type Store struct {
	objects     map[ObjectID]*DataObject
	order       []ObjectID
	displays    map[DisplayID]*DisplayRecord
	legacy      map[string]*LegacyNode
	legacyOrder []string

	importing int
	batching  int
	closing   bool

	observers []observerEntry
	nextObs   int
}

type observerEntry struct {
	id int
	fn func(Event)
}

// New creates an empty store.
func New() *Store {
	return &Store{
		objects:  make(map[ObjectID]*DataObject),
		displays: make(map[DisplayID]*DisplayRecord),
		legacy:   make(map[string]*LegacyNode),
	}
}

// Subscribe registers fn for synchronous event delivery and returns a
// function that removes it.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.nextObs++
	id := s.nextObs
	s.observers = append(s.observers, observerEntry{id: id, fn: fn})
	return func() {
		s.observers = slices.DeleteFunc(s.observers, func(e observerEntry) bool { return e.id == id })
	}
}

func (s *Store) emit(ev Event) {
	for _, o := range slices.Clone(s.observers) {
		o.fn(ev)
	}
}

// AddOption customizes AddObject.
type AddOption func(*Event)

// WithParentHint asks the hierarchy to place the new object's item under
// parent instead of the default location.
func WithParentHint(parent hierarchy.ItemID) AddOption {
	return func(ev *Event) {
		ev.ParentHint = parent
	}
}

// AddObject inserts obj, assigning an ID when it has none and a display
// record when its kind is displayable.
func (s *Store) AddObject(obj DataObject, opts ...AddOption) (ObjectID, error) {
	if obj.ID == "" {
		obj.ID = NewObjectID()
	}
	if _, ok := s.objects[obj.ID]; ok {
		return "", fmt.Errorf("%w: %s", ErrDuplicateObject, obj.ID)
	}
	o := obj
	o.Attributes = maps.Clone(obj.Attributes)
	if o.Attributes == nil {
		o.Attributes = map[string]string{}
	}
	if o.DisplayID == "" && o.Kind.Displayable() {
		o.DisplayID = s.CreateDisplay()
	}
	s.objects[o.ID] = &o
	s.order = append(s.order, o.ID)

	ev := Event{Kind: EventObjectAdded, Object: o.ID}
	for _, opt := range opts {
		opt(&ev)
	}
	log.Debug(log.CatTree, "data object added", "object", o.ID, "kind", o.Kind)
	s.emit(ev)
	return o.ID, nil
}

// RemoveObject deletes a data object and its display record.
func (s *Store) RemoveObject(id ObjectID) error {
	o, ok := s.objects[id]
	if !ok {
		return &NotFoundError{What: "data object", ID: string(id)}
	}
	s.emit(Event{Kind: EventObjectAboutToBeRemoved, Object: id})
	delete(s.objects, id)
	s.order = slices.DeleteFunc(s.order, func(x ObjectID) bool { return x == id })
	if o.DisplayID != "" {
		delete(s.displays, o.DisplayID)
	}
	s.emit(Event{Kind: EventObjectRemoved, Object: id})
	return nil
}

// Object returns a copy of the object.
func (s *Store) Object(id ObjectID) (DataObject, bool) {
	o, ok := s.objects[id]
	if !ok {
		return DataObject{}, false
	}
	c := *o
	c.Attributes = maps.Clone(o.Attributes)
	return c, true
}

// Objects returns copies of all objects in insertion order.
func (s *Store) Objects() []DataObject {
	out := make([]DataObject, 0, len(s.order))
	for _, id := range s.order {
		o, _ := s.Object(id)
		out = append(out, o)
	}
	return out
}

// SetObjectAttribute sets an attribute on a data object.
func (s *Store) SetObjectAttribute(id ObjectID, name, value string) error {
	o, ok := s.objects[id]
	if !ok {
		return &NotFoundError{What: "data object", ID: string(id)}
	}
	o.Attributes[name] = value
	s.emit(Event{Kind: EventObjectModified, Object: id})
	return nil
}

// SetTransform sets or clears (with "") the transform applied to id.
func (s *Store) SetTransform(id, transform ObjectID) error {
	o, ok := s.objects[id]
	if !ok {
		return &NotFoundError{What: "data object", ID: string(id)}
	}
	if transform != "" {
		t, ok := s.objects[transform]
		if !ok {
			return &NotFoundError{What: "transform", ID: string(transform)}
		}
		if t.Kind != KindTransform {
			return fmt.Errorf("object %s is a %s, not a transform", transform, t.Kind)
		}
		if transform == id {
			return fmt.Errorf("transform %s cannot transform itself", id)
		}
	}
	if o.TransformID == transform {
		return nil
	}
	o.TransformID = transform
	s.emit(Event{Kind: EventObjectModified, Object: id})
	return nil
}

// ResetObject puts back the transform and attributes of an object from a
// copy taken with Object.
func (s *Store) ResetObject(saved DataObject) error {
	o, ok := s.objects[saved.ID]
	if !ok {
		return &NotFoundError{What: "data object", ID: string(saved.ID)}
	}
	if o.TransformID == saved.TransformID && maps.Equal(o.Attributes, saved.Attributes) {
		return nil
	}
	o.TransformID = saved.TransformID
	o.Attributes = maps.Clone(saved.Attributes)
	if o.Attributes == nil {
		o.Attributes = map[string]string{}
	}
	s.emit(Event{Kind: EventObjectModified, Object: saved.ID})
	return nil
}

// === Display records ===

// CreateDisplay creates an empty, visible display record.
func (s *Store) CreateDisplay() DisplayID {
	id := DisplayID(uuid.NewString())
	s.displays[id] = &DisplayRecord{ID: id, Visible: true}
	return id
}

// Display returns a copy of a display record.
func (s *Store) Display(id DisplayID) (DisplayRecord, bool) {
	d, ok := s.displays[id]
	if !ok {
		return DisplayRecord{}, false
	}
	return *d, true
}

// SetDisplayColor stores a color and announces the change.
func (s *Store) SetDisplayColor(id DisplayID, color string) error {
	d, ok := s.displays[id]
	if !ok {
		return &NotFoundError{What: "display record", ID: string(id)}
	}
	d.Color = color
	d.Modified++
	s.emit(Event{Kind: EventDisplayModified, Display: id, Object: s.objectForDisplay(id)})
	return nil
}

// SetDisplayVisible stores visibility and announces the change.
func (s *Store) SetDisplayVisible(id DisplayID, visible bool) error {
	d, ok := s.displays[id]
	if !ok {
		return &NotFoundError{What: "display record", ID: string(id)}
	}
	d.Visible = visible
	d.Modified++
	s.emit(Event{Kind: EventDisplayModified, Display: id, Object: s.objectForDisplay(id)})
	return nil
}

// TouchDisplay announces a display record change without altering any
// stored property, so consumers re-evaluate what they derive from it.
func (s *Store) TouchDisplay(id DisplayID) error {
	d, ok := s.displays[id]
	if !ok {
		return &NotFoundError{What: "display record", ID: string(id)}
	}
	d.Modified++
	s.emit(Event{Kind: EventDisplayModified, Display: id, Object: s.objectForDisplay(id)})
	return nil
}

// RemoveDisplay deletes a display record not attached to any object.
func (s *Store) RemoveDisplay(id DisplayID) {
	delete(s.displays, id)
}

func (s *Store) objectForDisplay(id DisplayID) ObjectID {
	for _, oid := range s.order {
		if s.objects[oid].DisplayID == id {
			return oid
		}
	}
	return ""
}

// === Import, batch and scene state ===

// StartImport marks the beginning of a bulk load. Calls nest.
func (s *Store) StartImport() {
	s.importing++
}

// EndImport ends one StartImport; the outermost announces ImportEnded.
func (s *Store) EndImport() {
	if s.importing == 0 {
		return
	}
	s.importing--
	if s.importing == 0 {
		s.emit(Event{Kind: EventImportEnded})
	}
}

// IsImporting reports whether an import is running.
func (s *Store) IsImporting() bool {
	return s.importing > 0
}

// StartBatch marks the beginning of a batch process. Calls nest.
func (s *Store) StartBatch() {
	s.batching++
}

// EndBatch ends one StartBatch; the outermost announces BatchEnded.
func (s *Store) EndBatch() {
	if s.batching == 0 {
		return
	}
	s.batching--
	if s.batching == 0 {
		s.emit(Event{Kind: EventBatchEnded})
	}
}

// IsBatchProcessing reports whether a batch process is running.
func (s *Store) IsBatchProcessing() bool {
	return s.batching > 0
}

// IsClosing reports whether the scene is being closed.
func (s *Store) IsClosing() bool {
	return s.closing
}

// Close empties the scene and announces SceneClosed.
func (s *Store) Close() {
	s.closing = true
	clear(s.objects)
	clear(s.displays)
	clear(s.legacy)
	s.order = nil
	s.legacyOrder = nil
	s.closing = false
	s.emit(Event{Kind: EventSceneClosed})
}

// Contents is a full copy of the scene, used for saving and restoring.
type Contents struct {
	Objects  []DataObject
	Displays []DisplayRecord
	Legacy   []LegacyNode
}

// Contents returns a copy of everything in the store.
func (s *Store) Contents() Contents {
	c := Contents{Objects: s.Objects(), Legacy: s.LegacyNodes()}
	for _, d := range s.displays {
		c.Displays = append(c.Displays, *d)
	}
	slices.SortFunc(c.Displays, func(a, b DisplayRecord) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return c
}

// Restore replaces the scene with c and announces SceneRestored. No
// per-object events are sent.
func (s *Store) Restore(c Contents) {
	clear(s.objects)
	clear(s.displays)
	clear(s.legacy)
	s.order = nil
	s.legacyOrder = nil
	for _, d := range c.Displays {
		rec := d
		s.displays[d.ID] = &rec
	}
	for _, o := range c.Objects {
		obj := o
		obj.Attributes = maps.Clone(o.Attributes)
		if obj.Attributes == nil {
			obj.Attributes = map[string]string{}
		}
		s.objects[obj.ID] = &obj
		s.order = append(s.order, obj.ID)
	}
	for _, n := range c.Legacy {
		node := n
		s.legacy[n.ID] = &node
		s.legacyOrder = append(s.legacyOrder, n.ID)
	}
	for _, id := range s.legacyOrder {
		n := s.legacy[id]
		if p, ok := s.legacy[n.ParentID]; ok && p.AssociatedObjectID != "" {
			log.Warn(log.CatLegacy, "legacy parent carries a data object, moving child to top level",
				"node", n.ID, "parent", p.ID)
			n.ParentID = ""
		}
	}
	log.Info(log.CatTree, "scene restored", "objects", len(c.Objects), "legacy", len(c.Legacy))
	s.emit(Event{Kind: EventSceneRestored})
}
