package plugins

import (
	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/plugin"
)

// Registered names of the data plugins.
const (
	VolumesName = "Volumes"
	ModelsName  = "Models"
	TextsName   = "Texts"
)

// AttrTextRole marks a text object with a dedicated role; texts carrying
// it belong to the text plugin outright.
const AttrTextRole = "text-role"

// kindPlugin owns and adds objects of a fixed set of kinds at a shared
// confidence. Roles are looked up per kind.
type kindPlugin struct {
	plugin.Base
	roles      map[datastore.Kind]string
	icon       string
	confidence float64
}

func (k kindPlugin) handles(env *plugin.Env, obj datastore.ObjectID) (datastore.DataObject, bool) {
	o, ok := env.Store.Object(obj)
	if !ok {
		return o, false
	}
	_, ok = k.roles[o.Kind]
	return o, ok
}

func (k kindPlugin) CanOwnItem(env *plugin.Env, id hierarchy.ItemID) float64 {
	kind, ok := plugin.KindOf(env, id)
	if !ok {
		return 0
	}
	if _, ok := k.roles[kind]; ok {
		return k.confidence
	}
	return 0
}

func (k kindPlugin) CanAddDataObject(env *plugin.Env, obj datastore.ObjectID, _ hierarchy.ItemID) float64 {
	if _, ok := k.handles(env, obj); ok {
		return k.confidence
	}
	return 0
}

func (k kindPlugin) Role(env *plugin.Env, id hierarchy.ItemID) string {
	kind, _ := plugin.KindOf(env, id)
	return k.roles[kind]
}

func (k kindPlugin) Icon(*plugin.Env, hierarchy.ItemID) string {
	return k.icon
}

func (k kindPlugin) ContextActions(env *plugin.Env, id hierarchy.ItemID) []string {
	if obj, ok := plugin.DataObjectOf(env, id); ok && obj.DisplayID != "" {
		return []string{"Show", "Hide", "Set color"}
	}
	return nil
}

// Volumes owns scalar volumes and label maps.
type Volumes struct {
	kindPlugin
}

var _ plugin.Plugin = (*Volumes)(nil)

// NewVolumes creates the volumes plugin.
func NewVolumes() *Volumes {
	return &Volumes{kindPlugin{
		Base:       plugin.NewBase(VolumesName),
		roles:      map[datastore.Kind]string{datastore.KindVolume: "Volume", datastore.KindLabelMap: "Label map"},
		icon:       "▦",
		confidence: 0.5,
	}}
}

// Models owns surface models.
type Models struct {
	kindPlugin
}

var _ plugin.Plugin = (*Models)(nil)

// NewModels creates the models plugin.
func NewModels() *Models {
	return &Models{kindPlugin{
		Base:       plugin.NewBase(ModelsName),
		roles:      map[datastore.Kind]string{datastore.KindModel: "Model"},
		icon:       "◆",
		confidence: 0.5,
	}}
}

// Texts owns text objects. It does not add them; a text is placed by
// whoever loads it.
type Texts struct {
	kindPlugin
}

var _ plugin.Plugin = (*Texts)(nil)

// NewTexts creates the texts plugin.
func NewTexts() *Texts {
	return &Texts{kindPlugin{
		Base:       plugin.NewBase(TextsName),
		roles:      map[datastore.Kind]string{datastore.KindText: "Text"},
		icon:       "¶",
		confidence: 0.5,
	}}
}

func (t *Texts) CanOwnItem(env *plugin.Env, id hierarchy.ItemID) float64 {
	obj, ok := plugin.DataObjectOf(env, id)
	if !ok || obj.Kind != datastore.KindText {
		return 0
	}
	if obj.Attributes[AttrTextRole] != "" {
		return 1
	}
	return t.confidence
}

func (t *Texts) CanAddDataObject(*plugin.Env, datastore.ObjectID, hierarchy.ItemID) float64 {
	return 0
}

func (t *Texts) Role(env *plugin.Env, id hierarchy.ItemID) string {
	if obj, ok := plugin.DataObjectOf(env, id); ok && obj.Attributes[AttrTextRole] != "" {
		return obj.Attributes[AttrTextRole]
	}
	return "Text"
}
