package plugins

import (
	"fmt"

	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/plugin"
)

// Branch visibility states returned by BranchVisibility.
const (
	VisibilityNone    = -1
	VisibilityHidden  = 0
	VisibilityShown   = 1
	VisibilityPartial = 2
)

// SetBranchVisibility shows or hides id and everything below it. Folder
// records and object records are both updated.
func SetBranchVisibility(env *plugin.Env, id hierarchy.ItemID, visible bool) error {
	if !env.Tree.Has(id) {
		return &hierarchy.OperationError{Op: "set visibility", Item: id, Err: hierarchy.ErrInvalidItem}
	}
	env.Tree.SuspendNotifications()
	defer env.Tree.ResumeNotifications()

	for _, d := range branchDisplays(env, id) {
		if err := env.Store.SetDisplayVisible(d, visible); err != nil {
			return fmt.Errorf("set visibility: %w", err)
		}
	}
	return nil
}

// BranchVisibility summarizes the visibility of the data in a branch:
// VisibilityShown or VisibilityHidden when every record agrees,
// VisibilityPartial when they differ and VisibilityNone when the branch
// shows nothing at all. Folder records are not counted.
func BranchVisibility(env *plugin.Env, id hierarchy.ItemID) int {
	shown, hidden := 0, 0
	for _, item := range append([]hierarchy.ItemID{id}, env.Tree.Descendants(id)...) {
		obj, ok := plugin.DataObjectOf(env, item)
		if !ok || obj.DisplayID == "" {
			continue
		}
		d, ok := env.Store.Display(obj.DisplayID)
		if !ok {
			continue
		}
		if d.Visible {
			shown++
		} else {
			hidden++
		}
	}
	switch {
	case shown == 0 && hidden == 0:
		return VisibilityNone
	case hidden == 0:
		return VisibilityShown
	case shown == 0:
		return VisibilityHidden
	default:
		return VisibilityPartial
	}
}

func branchDisplays(env *plugin.Env, id hierarchy.ItemID) []datastore.DisplayID {
	var out []datastore.DisplayID
	for _, item := range append([]hierarchy.ItemID{id}, env.Tree.Descendants(id)...) {
		if obj, ok := plugin.DataObjectOf(env, item); ok && obj.DisplayID != "" {
			out = append(out, obj.DisplayID)
			continue
		}
		if d, _ := folderDisplay(env, item, false); d != "" {
			out = append(out, d)
		}
	}
	return out
}
