// Package plugins holds the built-in subject hierarchy plugins. Each one
// is independent of the others; they meet only through the resolver.
package plugins

import (
	"errors"
	"fmt"

	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/plugin"
)

// ErrNotFolder is returned by folder operations on other items.
var ErrNotFolder = errors.New("item is not a folder")

// FolderName is the registered name of the folder plugin.
const FolderName = "Folder"

// Folder owns folder items and legacy shadows, and implements the branch
// color override.
type Folder struct {
	plugin.Base
}

var _ plugin.Plugin = (*Folder)(nil)

// NewFolder creates the folder plugin.
func NewFolder() *Folder {
	return &Folder{Base: plugin.NewBase(FolderName)}
}

func (f *Folder) CanOwnItem(env *plugin.Env, id hierarchy.ItemID) float64 {
	it, err := env.Tree.Item(id)
	if err != nil || it.DataObject != "" {
		return 0
	}
	switch {
	case it.Level == hierarchy.LevelFolder:
		return 1
	case it.Attributes[hierarchy.AttrLegacyNode] != "":
		return 0.9
	default:
		return 0
	}
}

func (f *Folder) Role(*plugin.Env, hierarchy.ItemID) string {
	return "Folder"
}

func (f *Folder) Icon(env *plugin.Env, id hierarchy.ItemID) string {
	if env.Tree.Attribute(id, hierarchy.AttrApplyColorToBranch) != "" {
		return "▣"
	}
	return "▢"
}

func (f *Folder) ContextActions(env *plugin.Env, id hierarchy.ItemID) []string {
	actions := []string{"Create child folder", "Show branch", "Hide branch"}
	if env.Tree.Attribute(id, hierarchy.AttrApplyColorToBranch) != "" {
		return append(actions, "Stop applying color to branch")
	}
	return append(actions, "Apply color to branch")
}

// CreateChildFolder adds a folder under parent. An empty name becomes
// "NewFolder"; names are made unique among siblings.
func (f *Folder) CreateChildFolder(env *plugin.Env, parent hierarchy.ItemID, name string) (hierarchy.ItemID, error) {
	if name == "" {
		name = "NewFolder"
	}
	id, err := env.Tree.CreateFolder(parent, env.Tree.GenerateUniqueName(parent, name))
	if err != nil {
		return hierarchy.InvalidItemID, err
	}
	if err := env.Tree.SetOwner(id, f.Name(), true); err != nil {
		return hierarchy.InvalidItemID, err
	}
	return id, nil
}

// SetBranchColor stores color on the folder's own display record and
// notifies the folder. With the branch override on, every item below the
// folder is notified once as well. Descendant records are never written.
func (f *Folder) SetBranchColor(env *plugin.Env, folder hierarchy.ItemID, color string) error {
	if err := requireFolder(env, folder); err != nil {
		return err
	}
	env.Tree.SuspendNotifications()
	defer env.Tree.ResumeNotifications()

	display, err := folderDisplay(env, folder, true)
	if err != nil {
		return err
	}
	if err := env.Store.SetDisplayColor(display, color); err != nil {
		return fmt.Errorf("setting folder color: %w", err)
	}
	env.Tree.NotifyModified(folder)
	if ApplyColorToBranch(env, folder) {
		return notifyBranch(env, folder)
	}
	return nil
}

// SetApplyColorToBranch turns the branch override on or off and notifies
// the folder and every item below it once, so consumers re-evaluate their
// effective color. Setting the current state again does nothing.
func (f *Folder) SetApplyColorToBranch(env *plugin.Env, folder hierarchy.ItemID, on bool) error {
	if err := requireFolder(env, folder); err != nil {
		return err
	}
	if ApplyColorToBranch(env, folder) == on {
		return nil
	}

	env.Tree.SuspendNotifications()
	defer env.Tree.ResumeNotifications()

	if on {
		if err := env.Tree.SetAttribute(folder, hierarchy.AttrApplyColorToBranch, "1"); err != nil {
			return err
		}
	} else {
		env.Tree.RemoveAttribute(folder, hierarchy.AttrApplyColorToBranch)
	}
	env.Tree.NotifyModified(folder)
	log.Debug(log.CatPlugin, "branch color override toggled", "folder", folder, "on", on)
	return notifyBranch(env, folder)
}

// ApplyColorToBranch reports whether the folder override is on.
func ApplyColorToBranch(env *plugin.Env, folder hierarchy.ItemID) bool {
	return env.Tree.Attribute(folder, hierarchy.AttrApplyColorToBranch) != ""
}

// FolderColor returns the color stored on a folder's own display record.
func FolderColor(env *plugin.Env, folder hierarchy.ItemID) string {
	display, err := folderDisplay(env, folder, false)
	if err != nil || display == "" {
		return ""
	}
	d, _ := env.Store.Display(display)
	return d.Color
}

// EffectiveColor resolves the color a renderer should use for id: the
// color of the nearest ancestor folder with the override on and a color
// set, otherwise the item's own color.
func EffectiveColor(env *plugin.Env, id hierarchy.ItemID) string {
	for p, err := env.Tree.Parent(id); err == nil && p != hierarchy.InvalidItemID; p, err = env.Tree.Parent(p) {
		if !ApplyColorToBranch(env, p) {
			continue
		}
		if c := FolderColor(env, p); c != "" {
			return c
		}
	}
	return ownColor(env, id)
}

func ownColor(env *plugin.Env, id hierarchy.ItemID) string {
	if obj, ok := plugin.DataObjectOf(env, id); ok && obj.DisplayID != "" {
		d, _ := env.Store.Display(obj.DisplayID)
		return d.Color
	}
	return FolderColor(env, id)
}

func requireFolder(env *plugin.Env, id hierarchy.ItemID) error {
	it, err := env.Tree.Item(id)
	if err != nil {
		return err
	}
	if it.Level != hierarchy.LevelFolder {
		return &hierarchy.OperationError{Op: "folder", Item: id, Err: ErrNotFolder}
	}
	return nil
}

// folderDisplay returns the folder's display record, creating it when
// create is set.
func folderDisplay(env *plugin.Env, folder hierarchy.ItemID, create bool) (datastore.DisplayID, error) {
	if id := datastore.DisplayID(env.Tree.Attribute(folder, hierarchy.AttrFolderDisplay)); id != "" {
		if _, ok := env.Store.Display(id); ok {
			return id, nil
		}
	}
	if !create {
		return "", nil
	}
	id := env.Store.CreateDisplay()
	if err := env.Tree.SetAttribute(folder, hierarchy.AttrFolderDisplay, string(id)); err != nil {
		env.Store.RemoveDisplay(id)
		return "", err
	}
	return id, nil
}

// notifyBranch sends one notification per descendant. Items backed by a
// displayable object are notified through their display record; the rest
// directly on the tree.
func notifyBranch(env *plugin.Env, folder hierarchy.ItemID) error {
	descendants := env.Tree.Descendants(folder)
	for _, d := range descendants {
		if obj, ok := plugin.DataObjectOf(env, d); ok && obj.DisplayID != "" {
			if err := env.Store.TouchDisplay(obj.DisplayID); err != nil {
				return fmt.Errorf("notifying %d: %w", d, err)
			}
			continue
		}
		env.Tree.NotifyModified(d)
	}
	log.Debug(log.CatPlugin, "branch notified", "folder", folder, "descendants", len(descendants))
	return nil
}
