package datastore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
)

func record(s *Store) *[]Event {
	var got []Event
	s.Subscribe(func(ev Event) { got = append(got, ev) })
	return &got
}

func kinds(evs []Event) []EventKind {
	out := make([]EventKind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}

func TestKind_ParseAndString(t *testing.T) {
	for k := KindOther; k <= KindTable; k++ {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, parsed)
	}
	_, err := ParseKind("hologram")
	require.Error(t, err)

	var k Kind
	require.NoError(t, k.UnmarshalText([]byte(" Transform ")))
	require.Equal(t, KindTransform, k)
	require.True(t, KindModel.Displayable())
	require.False(t, KindText.Transformable())
}

func TestStore_AddObject(t *testing.T) {
	s := New()
	got := record(s)

	id, err := s.AddObject(DataObject{Name: "CT", Kind: KindVolume}, WithParentHint(hierarchy.ItemID(7)))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	obj, ok := s.Object(id)
	require.True(t, ok)
	require.NotEmpty(t, obj.DisplayID, "volumes get a display record")

	require.Equal(t, []Event{{Kind: EventObjectAdded, Object: id, ParentHint: 7}}, *got)

	_, err = s.AddObject(DataObject{ID: id})
	require.ErrorIs(t, err, ErrDuplicateObject)
}

func TestStore_RemoveObject(t *testing.T) {
	s := New()
	id, _ := s.AddObject(DataObject{Name: "M", Kind: KindModel})
	obj, _ := s.Object(id)
	got := record(s)

	require.NoError(t, s.RemoveObject(id))
	require.Equal(t, []EventKind{EventObjectAboutToBeRemoved, EventObjectRemoved}, kinds(*got))
	_, ok := s.Display(obj.DisplayID)
	require.False(t, ok)

	var nf *NotFoundError
	require.True(t, errors.As(s.RemoveObject(id), &nf))
}

func TestStore_SetTransform(t *testing.T) {
	s := New()
	vol, _ := s.AddObject(DataObject{Name: "V", Kind: KindVolume})
	xf, _ := s.AddObject(DataObject{Name: "T", Kind: KindTransform})
	txt, _ := s.AddObject(DataObject{Name: "note", Kind: KindText})

	require.NoError(t, s.SetTransform(vol, xf))
	obj, _ := s.Object(vol)
	require.Equal(t, xf, obj.TransformID)

	require.Error(t, s.SetTransform(vol, txt))
	require.Error(t, s.SetTransform(xf, xf))
	require.NoError(t, s.SetTransform(vol, ""))
}

func TestStore_ResetObject(t *testing.T) {
	s := New()
	vol, _ := s.AddObject(DataObject{Name: "V", Kind: KindVolume, Attributes: map[string]string{"a": "1"}})
	xf, _ := s.AddObject(DataObject{Name: "T", Kind: KindTransform})
	saved, _ := s.Object(vol)

	require.NoError(t, s.SetTransform(vol, xf))
	require.NoError(t, s.SetObjectAttribute(vol, "b", "2"))
	got := record(s)

	require.NoError(t, s.ResetObject(saved))
	obj, _ := s.Object(vol)
	require.Equal(t, saved, obj)
	require.Len(t, *got, 1)
	require.Equal(t, EventObjectModified, (*got)[0].Kind)

	require.NoError(t, s.ResetObject(saved))
	require.Len(t, *got, 1, "unchanged object is not reported")

	require.Error(t, s.ResetObject(DataObject{ID: "missing"}))
}

func TestStore_DisplayNotifications(t *testing.T) {
	s := New()
	id, _ := s.AddObject(DataObject{Name: "M", Kind: KindModel})
	obj, _ := s.Object(id)
	got := record(s)

	require.NoError(t, s.SetDisplayColor(obj.DisplayID, "#ff0000"))
	require.NoError(t, s.TouchDisplay(obj.DisplayID))

	d, _ := s.Display(obj.DisplayID)
	require.Equal(t, "#ff0000", d.Color, "touch leaves properties alone")
	require.Equal(t, uint64(2), d.Modified)
	require.Len(t, *got, 2)
	for _, ev := range *got {
		require.Equal(t, EventDisplayModified, ev.Kind)
		require.Equal(t, id, ev.Object)
	}

	free := s.CreateDisplay()
	require.NoError(t, s.TouchDisplay(free))
	require.Equal(t, ObjectID(""), (*got)[2].Object)
}

func TestStore_ImportAndBatchNesting(t *testing.T) {
	s := New()
	got := record(s)

	s.StartImport()
	s.StartImport()
	s.EndImport()
	require.True(t, s.IsImporting())
	s.EndImport()
	s.EndImport()

	s.StartBatch()
	require.True(t, s.IsBatchProcessing())
	s.EndBatch()

	require.Equal(t, []EventKind{EventImportEnded, EventBatchEnded}, kinds(*got))
}

func TestStore_Legacy(t *testing.T) {
	s := New()
	obj, _ := s.AddObject(DataObject{Name: "M", Kind: KindModel})

	top, err := s.AddLegacyNode(LegacyNode{Name: "top"})
	require.NoError(t, err)
	leaf, err := s.AddLegacyNode(LegacyNode{Name: "leaf", ParentID: top, AssociatedObjectID: obj})
	require.NoError(t, err)

	_, err = s.AddLegacyNode(LegacyNode{Name: "bad", ParentID: leaf})
	require.ErrorIs(t, err, ErrLegacyDataParent)
	require.ErrorIs(t, s.SetLegacyParent(top, top), ErrLegacyCycle)

	n, ok := s.LegacyNodeForObject(obj)
	require.True(t, ok)
	require.Equal(t, leaf, n.ID)

	got := record(s)
	require.NoError(t, s.RemoveLegacyNode(top))
	n, _ = s.LegacyNode(leaf)
	require.Equal(t, "", n.ParentID)
	require.Equal(t, []EventKind{EventLegacyReparented, EventLegacyRemoved}, kinds(*got))
}

func TestStore_ContentsRestore(t *testing.T) {
	s := New()
	obj, _ := s.AddObject(DataObject{Name: "M", Kind: KindModel, Attributes: map[string]string{"a": "b"}})
	top, _ := s.AddLegacyNode(LegacyNode{Name: "top"})
	_, _ = s.AddLegacyNode(LegacyNode{Name: "leaf", ParentID: top})
	c := s.Contents()

	other := New()
	got := record(other)
	other.Restore(c)

	require.Equal(t, []EventKind{EventSceneRestored}, kinds(*got))
	require.Equal(t, s.Objects(), other.Objects())
	require.Equal(t, s.LegacyNodes(), other.LegacyNodes())
	o, _ := other.Object(obj)
	_, ok := other.Display(o.DisplayID)
	require.True(t, ok)
}

func TestStore_RestoreDropsDataParents(t *testing.T) {
	s := New()
	s.Restore(Contents{Legacy: []LegacyNode{
		{ID: "p", AssociatedObjectID: "obj"},
		{ID: "c", ParentID: "p"},
	}})
	n, _ := s.LegacyNode("c")
	require.Equal(t, "", n.ParentID)
}

func TestStore_Close(t *testing.T) {
	s := New()
	_, _ = s.AddObject(DataObject{Name: "M", Kind: KindModel})
	got := record(s)

	s.Close()
	require.Empty(t, s.Objects())
	require.Equal(t, []EventKind{EventSceneClosed}, kinds(*got))
}
