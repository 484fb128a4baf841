package plugin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
)

func newEnv() *Env {
	return &Env{Tree: hierarchy.New(), Store: datastore.New()}
}

func TestDefault_NeverClaims(t *testing.T) {
	env := newEnv()
	d := NewDefault()
	obj, _ := env.Store.AddObject(datastore.DataObject{Name: "x", Kind: datastore.KindTable})
	item, err := d.AddDataObject(env, obj, env.Tree.Root())
	require.NoError(t, err)

	require.Equal(t, DefaultName, d.Name())
	require.Zero(t, d.CanOwnItem(env, item))
	require.Zero(t, d.CanAddDataObject(env, obj, env.Tree.Root()))
	require.Zero(t, d.CanReparent(env, item, env.Tree.Root()))
	require.Equal(t, "?", d.Icon(env, item))
	require.Equal(t, "Unknown", d.Role(env, item))
}

func TestDefault_RoleForMissingObject(t *testing.T) {
	env := newEnv()
	item, err := env.Tree.CreateItem(env.Tree.Root(), "ghost", "", "gone")
	require.NoError(t, err)
	require.Equal(t, "Missing data object", NewDefault().Role(env, item))
}

func TestBase_AddAndReparent(t *testing.T) {
	env := newEnv()
	b := NewBase("plain")
	obj, _ := env.Store.AddObject(datastore.DataObject{Name: "M", Kind: datastore.KindModel})
	folder, _ := env.Tree.CreateFolder(env.Tree.Root(), "F")

	item, err := b.AddDataObject(env, obj, env.Tree.Root())
	require.NoError(t, err)
	it, _ := env.Tree.Item(item)
	require.Equal(t, "M", it.Name)
	require.Equal(t, DataObjectRef(it), obj)

	outcome, err := b.Reparent(env, item, folder)
	require.NoError(t, err)
	require.Equal(t, OutcomeMoved, outcome)
	require.Equal(t, []hierarchy.ItemID{item}, env.Tree.Children(folder))

	_, err = b.AddDataObject(env, "missing", env.Tree.Root())
	var nf *datastore.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestKindOf(t *testing.T) {
	env := newEnv()
	obj, _ := env.Store.AddObject(datastore.DataObject{Name: "T", Kind: datastore.KindTransform})
	item, _ := env.Tree.CreateItem(env.Tree.Root(), "T", "", string(obj))
	folder, _ := env.Tree.CreateFolder(env.Tree.Root(), "F")

	k, ok := KindOf(env, item)
	require.True(t, ok)
	require.Equal(t, datastore.KindTransform, k)
	_, ok = KindOf(env, folder)
	require.False(t, ok)
}
