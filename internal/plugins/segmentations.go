package plugins

import (
	"slices"
	"strings"

	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/plugin"
)

// SegmentationsName is the registered name of the segmentations plugin.
const SegmentationsName = "Segmentations"

const (
	// AttrSegments lists a segmentation object's segment names, comma
	// separated.
	AttrSegments = "segments"
	// AttrSegmentID names the segment a virtual child stands for.
	AttrSegmentID = "segment-id"
)

// Segmentations owns segmentation objects and shows their segments as a
// virtual branch: children derived from the object that cannot be moved
// on their own.
type Segmentations struct {
	plugin.Base
}

var (
	_ plugin.Plugin    = (*Segmentations)(nil)
	_ plugin.Refresher = (*Segmentations)(nil)
)

// NewSegmentations creates the segmentations plugin.
func NewSegmentations() *Segmentations {
	return &Segmentations{Base: plugin.NewBase(SegmentationsName)}
}

func (s *Segmentations) CanOwnItem(env *plugin.Env, id hierarchy.ItemID) float64 {
	if kind, ok := plugin.KindOf(env, id); ok {
		if kind == datastore.KindSegmentation {
			return 1
		}
		return 0
	}
	if env.Tree.Attribute(id, AttrSegmentID) == "" {
		return 0
	}
	if p, err := env.Tree.Parent(id); err == nil {
		if kind, ok := plugin.KindOf(env, p); ok && kind == datastore.KindSegmentation {
			return 1
		}
	}
	return 0
}

func (s *Segmentations) CanAddDataObject(env *plugin.Env, obj datastore.ObjectID, _ hierarchy.ItemID) float64 {
	if o, ok := env.Store.Object(obj); ok && o.Kind == datastore.KindSegmentation {
		return 0.5
	}
	return 0
}

// AddDataObject creates the segmentation item and its virtual children.
func (s *Segmentations) AddDataObject(env *plugin.Env, obj datastore.ObjectID, parent hierarchy.ItemID) (hierarchy.ItemID, error) {
	id, err := s.Base.AddDataObject(env, obj, parent)
	if err != nil {
		return hierarchy.InvalidItemID, err
	}
	if err := env.Tree.SetAttribute(id, hierarchy.AttrVirtualBranch, "1"); err != nil {
		return hierarchy.InvalidItemID, err
	}
	if err := s.SyncSegments(env, id); err != nil {
		return hierarchy.InvalidItemID, err
	}
	return id, nil
}

// SyncSegments makes the virtual children of a segmentation item match
// the segments listed on its object, keeping the object's order.
func (s *Segmentations) SyncSegments(env *plugin.Env, id hierarchy.ItemID) error {
	obj, ok := plugin.DataObjectOf(env, id)
	if !ok {
		return &hierarchy.OperationError{Op: "sync segments", Item: id, Err: hierarchy.ErrInvalidItem}
	}
	want := SegmentNames(obj)

	have := map[string]hierarchy.ItemID{}
	for _, c := range env.Tree.Children(id) {
		seg := env.Tree.Attribute(c, AttrSegmentID)
		if seg == "" || !slices.Contains(want, seg) {
			if err := env.Tree.RemoveItem(c, true); err != nil {
				return err
			}
			continue
		}
		have[seg] = c
	}
	for _, seg := range want {
		if _, ok := have[seg]; ok {
			continue
		}
		c, err := env.Tree.CreateItem(id, seg, "", "")
		if err != nil {
			return err
		}
		if err := env.Tree.SetAttribute(c, AttrSegmentID, seg); err != nil {
			return err
		}
		if err := env.Tree.SetOwner(c, s.Name(), true); err != nil {
			return err
		}
	}
	log.Debug(log.CatPlugin, "segments synced", "item", id, "segments", len(want))
	return nil
}

// Refresh re-derives the virtual children of a segmentation item.
func (s *Segmentations) Refresh(env *plugin.Env, id hierarchy.ItemID) error {
	if kind, ok := plugin.KindOf(env, id); !ok || kind != datastore.KindSegmentation {
		return nil
	}
	return s.SyncSegments(env, id)
}

// SegmentNames returns the distinct, non-empty segment names of obj.
func SegmentNames(obj datastore.DataObject) []string {
	var out []string
	for _, part := range strings.Split(obj.Attributes[AttrSegments], ",") {
		if name := strings.TrimSpace(part); name != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

func (s *Segmentations) Role(env *plugin.Env, id hierarchy.ItemID) string {
	if env.Tree.Attribute(id, AttrSegmentID) != "" {
		return "Segment"
	}
	return "Segmentation"
}

func (s *Segmentations) Icon(env *plugin.Env, id hierarchy.ItemID) string {
	if env.Tree.Attribute(id, AttrSegmentID) != "" {
		return "●"
	}
	return "◐"
}

func (s *Segmentations) ContextActions(env *plugin.Env, id hierarchy.ItemID) []string {
	if env.Tree.Attribute(id, AttrSegmentID) != "" {
		return []string{"Show segment only"}
	}
	return []string{"Show", "Hide", "Refresh segments"}
}
