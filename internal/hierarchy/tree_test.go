package hierarchy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// === Helpers ===

func mustCreate(t *testing.T, tr *Tree, parent ItemID, name, level, obj string) ItemID {
	t.Helper()
	id, err := tr.CreateItem(parent, name, level, obj)
	require.NoError(t, err)
	return id
}

func recordChanges(tr *Tree) *[]Change {
	var got []Change
	tr.Observe(func(c Change) { got = append(got, c) })
	return &got
}

// === Unit Tests: Create ===

func TestTree_NewHasOnlyRoot(t *testing.T) {
	tr := New()
	require.Equal(t, 1, tr.Len())
	root, err := tr.Item(tr.Root())
	require.NoError(t, err)
	require.Equal(t, LevelScene, root.Level)
	require.Equal(t, InvalidItemID, root.Parent)
}

func TestTree_CreateItem_IDsNeverReused(t *testing.T) {
	tr := New()
	a := mustCreate(t, tr, tr.Root(), "a", "", "")
	require.NoError(t, tr.RemoveItem(a, false))
	b := mustCreate(t, tr, tr.Root(), "b", "", "")
	require.Greater(t, b, a)
}

func TestTree_CreateItem_InvalidParent(t *testing.T) {
	tr := New()
	_, err := tr.CreateItem(99, "x", "", "")
	require.ErrorIs(t, err, ErrInvalidItem)

	var opErr *OperationError
	require.True(t, errors.As(err, &opErr))
	require.Equal(t, ItemID(99), opErr.Item)
}

func TestTree_CreateItem_ReusesItemForDataObject(t *testing.T) {
	tr := New()
	f := mustCreate(t, tr, tr.Root(), "f", LevelFolder, "")
	v := mustCreate(t, tr, tr.Root(), "vol", "", "obj-1")

	again, err := tr.CreateItem(f, "vol", "", "obj-1")
	require.NoError(t, err)
	require.Equal(t, v, again)

	parent, err := tr.Parent(v)
	require.NoError(t, err)
	require.Equal(t, f, parent)
	require.Equal(t, 3, tr.Len())
}

func TestTree_CreateLevels(t *testing.T) {
	tr := New()
	p, err := tr.CreateSubject(tr.Root(), "Patient A")
	require.NoError(t, err)
	s, err := tr.CreateStudy(p, "CT")
	require.NoError(t, err)
	f, err := tr.CreateFolder(s, "Segments")
	require.NoError(t, err)

	for id, level := range map[ItemID]string{p: LevelPatient, s: LevelStudy, f: LevelFolder} {
		it, err := tr.Item(id)
		require.NoError(t, err)
		require.Equal(t, level, it.Level)
		require.True(t, it.OwnerAutoSearch)
	}
	require.Equal(t, "Patient A/CT/Segments", tr.Path(f))
}

// === Unit Tests: Remove ===

func TestTree_RemoveItem_ReparentsChildrenToGrandparent(t *testing.T) {
	tr := New()
	a := mustCreate(t, tr, tr.Root(), "a", "", "")
	f := mustCreate(t, tr, tr.Root(), "f", LevelFolder, "")
	b := mustCreate(t, tr, tr.Root(), "b", "", "")
	c1 := mustCreate(t, tr, f, "c1", "", "")
	c2 := mustCreate(t, tr, f, "c2", "", "")

	require.NoError(t, tr.RemoveItem(f, false))

	require.Equal(t, []ItemID{a, c1, c2, b}, tr.Children(tr.Root()))
	require.False(t, tr.Has(f))
}

func TestTree_RemoveItem_Cascade(t *testing.T) {
	tr := New()
	f := mustCreate(t, tr, tr.Root(), "f", LevelFolder, "")
	c := mustCreate(t, tr, f, "c", "", "obj")
	gc := mustCreate(t, tr, c, "gc", "", "")

	require.NoError(t, tr.RemoveItem(f, true))

	require.False(t, tr.Has(c))
	require.False(t, tr.Has(gc))
	_, ok := tr.ItemByDataObject("obj")
	require.False(t, ok)
	require.Equal(t, 1, tr.Len())
}

func TestTree_RemoveItem_VirtualChildrenGoWithParent(t *testing.T) {
	tr := New()
	seg := mustCreate(t, tr, tr.Root(), "seg", "", "seg-obj")
	require.NoError(t, tr.SetAttribute(seg, AttrVirtualBranch, "1"))
	s1 := mustCreate(t, tr, seg, "s1", "", "")

	require.NoError(t, tr.RemoveItem(seg, false))
	require.False(t, tr.Has(s1))
}

func TestTree_RemoveItem_Root(t *testing.T) {
	tr := New()
	require.ErrorIs(t, tr.RemoveItem(tr.Root(), true), ErrInvalidItem)
}

func TestTree_RemoveItem_EmitsAboutToBeRemovedFirst(t *testing.T) {
	tr := New()
	a := mustCreate(t, tr, tr.Root(), "a", "", "")
	got := recordChanges(tr)

	require.NoError(t, tr.RemoveItem(a, false))

	require.Len(t, *got, 2)
	require.Equal(t, ChangeAboutToBeRemoved, (*got)[0].Kind)
	require.Equal(t, ChangeRemoved, (*got)[1].Kind)
}

// === Unit Tests: Reparent and order ===

func TestTree_SetParent(t *testing.T) {
	tr := New()
	f := mustCreate(t, tr, tr.Root(), "f", LevelFolder, "")
	a := mustCreate(t, tr, tr.Root(), "a", "", "")
	got := recordChanges(tr)

	require.NoError(t, tr.SetParent(a, f))

	require.Equal(t, []ItemID{a}, tr.Children(f))
	require.Equal(t, []Change{{Kind: ChangeReparented, Item: a, Parent: f, OldParent: tr.Root()}}, *got)
}

func TestTree_SetParent_RejectsSelfAndCycles(t *testing.T) {
	tr := New()
	a := mustCreate(t, tr, tr.Root(), "a", "", "")
	b := mustCreate(t, tr, a, "b", "", "")
	c := mustCreate(t, tr, b, "c", "", "")

	require.ErrorIs(t, tr.SetParent(a, a), ErrCyclicReparent)
	require.ErrorIs(t, tr.SetParent(a, c), ErrCyclicReparent)
	require.ErrorIs(t, tr.SetParent(a, 1000), ErrInvalidItem)
	require.ErrorIs(t, tr.SetParent(tr.Root(), a), ErrInvalidItem)
}

func TestTree_MoveBefore(t *testing.T) {
	tr := New()
	a := mustCreate(t, tr, tr.Root(), "a", "", "")
	b := mustCreate(t, tr, tr.Root(), "b", "", "")
	c := mustCreate(t, tr, tr.Root(), "c", "", "")

	require.NoError(t, tr.MoveBefore(c, a))
	require.Equal(t, []ItemID{c, a, b}, tr.Children(tr.Root()))
	require.Equal(t, 0, tr.PositionUnderParent(c))

	require.NoError(t, tr.MoveBefore(c, InvalidItemID))
	require.Equal(t, []ItemID{a, b, c}, tr.Children(tr.Root()))

	child := mustCreate(t, tr, a, "child", "", "")
	require.ErrorIs(t, tr.MoveBefore(b, child), ErrInvalidItem)
}

// === Unit Tests: Attributes and lookups ===

func TestTree_Attributes(t *testing.T) {
	tr := New()
	a := mustCreate(t, tr, tr.Root(), "a", "", "")

	require.NoError(t, tr.SetAttribute(a, "z", "1"))
	require.NoError(t, tr.SetAttribute(a, "b", "2"))
	require.Equal(t, []string{"b", "z"}, tr.AttributeNames(a))
	require.True(t, tr.HasAttribute(a, "z"))
	require.True(t, tr.RemoveAttribute(a, "z"))
	require.False(t, tr.RemoveAttribute(a, "z"))
	require.Equal(t, "", tr.Attribute(a, "z"))
	require.ErrorIs(t, tr.SetAttribute(a, "", "x"), ErrInvalidItem)
}

func TestTree_AttributeFromAncestorAndLevel(t *testing.T) {
	tr := New()
	p, _ := tr.CreateSubject(tr.Root(), "P")
	require.NoError(t, tr.SetAttribute(p, "sex", "F"))
	s, _ := tr.CreateStudy(p, "S")
	require.NoError(t, tr.SetAttribute(s, "sex", "study-level"))
	v := mustCreate(t, tr, s, "v", "", "v-obj")

	require.Equal(t, "study-level", tr.AttributeFromAncestor(v, "sex", ""))
	require.Equal(t, "F", tr.AttributeFromAncestor(v, "sex", LevelPatient))
	require.Equal(t, "", tr.AttributeFromAncestor(v, "missing", ""))

	got, ok := tr.AncestorAtLevel(v, LevelPatient)
	require.True(t, ok)
	require.Equal(t, p, got)
	_, ok = tr.AncestorAtLevel(v, LevelSeries)
	require.False(t, ok)
}

func TestTree_UIDs(t *testing.T) {
	tr := New()
	s, _ := tr.CreateStudy(tr.Root(), "S")
	require.NoError(t, tr.SetUID(s, "DICOM", "1.2.3"))

	got, ok := tr.ItemByUID("DICOM", "1.2.3")
	require.True(t, ok)
	require.Equal(t, s, got)
	require.Equal(t, "1.2.3", tr.UID(s, "DICOM"))
}

func TestTree_SetDataObject_Unique(t *testing.T) {
	tr := New()
	a := mustCreate(t, tr, tr.Root(), "a", "", "obj")
	b := mustCreate(t, tr, tr.Root(), "b", "", "")

	require.ErrorIs(t, tr.SetDataObject(b, "obj"), ErrDuplicateDataObject)
	require.NoError(t, tr.SetDataObject(a, ""))
	require.NoError(t, tr.SetDataObject(b, "obj"))

	got, ok := tr.ItemByDataObject("obj")
	require.True(t, ok)
	require.Equal(t, b, got)
}

func TestTree_GenerateUniqueName(t *testing.T) {
	tr := New()
	mustCreate(t, tr, tr.Root(), "Folder", LevelFolder, "")
	mustCreate(t, tr, tr.Root(), "Folder_1", LevelFolder, "")

	require.Equal(t, "Folder_2", tr.GenerateUniqueName(tr.Root(), "Folder"))
	require.Equal(t, "Other", tr.GenerateUniqueName(tr.Root(), "Other"))
}

func TestTree_Clear(t *testing.T) {
	tr := New()
	mustCreate(t, tr, tr.Root(), "a", "", "obj")
	tr.Clear()
	require.Equal(t, 1, tr.Len())
	_, ok := tr.ItemByDataObject("obj")
	require.False(t, ok)
}

// === Unit Tests: Notifications ===

func TestTree_ModifiedNotificationsCoalesceWhileSuspended(t *testing.T) {
	tr := New()
	a := mustCreate(t, tr, tr.Root(), "a", "", "")
	counts := map[ItemID]int{}
	tr.OnModified(func(id ItemID) { counts[id]++ })

	tr.SuspendNotifications()
	require.NoError(t, tr.SetAttribute(a, "x", "1"))
	require.NoError(t, tr.SetName(a, "renamed"))
	tr.NotifyModified(a)
	require.Equal(t, []ItemID{a}, tr.PendingNotifications())
	tr.ResumeNotifications()

	require.Equal(t, map[ItemID]int{a: 1}, counts)
}

func TestTree_SetExpandedUnchangedIsQuiet(t *testing.T) {
	tr := New()
	a := mustCreate(t, tr, tr.Root(), "a", "", "")
	counts := map[ItemID]int{}
	tr.OnModified(func(id ItemID) { counts[id]++ })

	require.NoError(t, tr.SetExpanded(a, true))
	require.NoError(t, tr.SetExpanded(a, true))
	require.Equal(t, map[ItemID]int{a: 1}, counts)
	it, err := tr.Item(a)
	require.NoError(t, err)
	require.True(t, it.Expanded)
}

// A view that refreshes by writing back to the item it was told about
// gets one follow-up delivery, then the drain settles.
func TestTree_ObserverWritingBackSettles(t *testing.T) {
	tr := New()
	a := mustCreate(t, tr, tr.Root(), "a", "", "")
	counts := map[ItemID]int{}
	tr.OnModified(func(id ItemID) {
		counts[id]++
		require.Less(t, counts[id], 10, "view sync never settles")
		tr.NotifyModified(id)
		require.NoError(t, tr.SetExpanded(id, true))
	})

	require.NoError(t, tr.SetName(a, "renamed"))
	require.Equal(t, map[ItemID]int{a: 2}, counts)

	require.NoError(t, tr.SetName(a, "again"))
	require.Equal(t, map[ItemID]int{a: 4}, counts)
}

func TestTree_ModifiedNotificationsSkipRemovedItems(t *testing.T) {
	tr := New()
	a := mustCreate(t, tr, tr.Root(), "a", "", "")
	var got []ItemID
	tr.OnModified(func(id ItemID) { got = append(got, id) })

	tr.SuspendNotifications()
	tr.NotifyModified(a)
	require.NoError(t, tr.RemoveItem(a, false))
	tr.ResumeNotifications()

	require.Equal(t, []ItemID{tr.Root()}, got)
}

func TestTree_ObserverUnsubscribe(t *testing.T) {
	tr := New()
	n := 0
	stop := tr.Observe(func(Change) { n++ })
	mustCreate(t, tr, tr.Root(), "a", "", "")
	stop()
	mustCreate(t, tr, tr.Root(), "b", "", "")
	require.Equal(t, 1, n)
}

// === Unit Tests: Snapshot ===

func TestTree_SnapshotRestore(t *testing.T) {
	tr := New()
	a := mustCreate(t, tr, tr.Root(), "a", "", "obj")
	before := tr.Snapshot()

	b := mustCreate(t, tr, a, "b", "", "")
	require.NoError(t, tr.SetAttribute(a, "k", "v"))
	require.False(t, before.Equal(tr.Snapshot()))

	tr.Restore(before)
	require.True(t, before.Equal(tr.Snapshot()))
	require.False(t, tr.Has(b))

	c := mustCreate(t, tr, tr.Root(), "c", "", "")
	require.Greater(t, c, b, "restore must not rewind ids")
}

// === Property Tests ===

// randomTree builds a tree of n items with random parents.
func randomTree(t *rapid.T, n int) (*Tree, []ItemID) {
	tr := New()
	ids := []ItemID{tr.Root()}
	for i := 0; i < n; i++ {
		parent := rapid.SampledFrom(ids).Draw(t, "parent")
		id, err := tr.CreateItem(parent, "n", "", "")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, id)
	}
	return tr, ids[1:]
}

func TestTree_Property_CycleRejectionLeavesTreeUnchanged(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tr, ids := randomTree(t, rapid.IntRange(1, 25).Draw(t, "n"))
		a := rapid.SampledFrom(ids).Draw(t, "a")
		targets := append([]ItemID{a}, tr.Descendants(a)...)
		target := rapid.SampledFrom(targets).Draw(t, "target")

		before := tr.Snapshot()
		err := tr.SetParent(a, target)
		if !errors.Is(err, ErrCyclicReparent) {
			t.Fatalf("expected ErrCyclicReparent, got %v", err)
		}
		if !before.Equal(tr.Snapshot()) {
			t.Fatalf("tree changed after rejected reparent")
		}
	})
}

func TestTree_Property_StaysConnectedAndAcyclic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tr, ids := randomTree(t, rapid.IntRange(1, 20).Draw(t, "n"))
		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			a := rapid.SampledFrom(ids).Draw(t, "a")
			b := rapid.SampledFrom(append(ids, tr.Root())).Draw(t, "b")
			if !tr.Has(a) || !tr.Has(b) {
				continue
			}
			if rapid.Bool().Draw(t, "remove") {
				_ = tr.RemoveItem(a, rapid.Bool().Draw(t, "cascade"))
				continue
			}
			_ = tr.SetParent(a, b)
		}

		reached := 0
		tr.Walk(func(Item) bool { reached++; return true })
		if reached != tr.Len() {
			t.Fatalf("walk reached %d of %d items", reached, tr.Len())
		}
	})
}
