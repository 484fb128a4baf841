package scenefile

import (
	"context"
	"fmt"
	"strings"

	"github.com/zjrosen/subjecthierarchy/internal/consistency"
	"github.com/zjrosen/subjecthierarchy/internal/datastore"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/plugins"
)

// Result summarizes an import.
type Result struct {
	Folders int // folder items created
	Objects int // data objects added to the store
	Legacy  int // legacy nodes added to the store
	Report  consistency.PassReport
	// IDs maps scene object IDs, including generated ones, in file order.
	IDs []datastore.ObjectID
}

func levelOf(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "folder":
		return hierarchy.LevelFolder, nil
	case "patient", "subject":
		return hierarchy.LevelPatient, nil
	case "study":
		return hierarchy.LevelStudy, nil
	default:
		return "", fmt.Errorf("unknown folder level %q", level)
	}
}

// Import loads scene into the controller's store. Everything is added
// inside one store import, so items are created by the pass that runs
// when the import ends. Folder colors are applied afterwards through the
// folder plugin.
func Import(ctx context.Context, ctl *consistency.Controller, scene *Scene) (Result, error) {
	var res Result
	if err := scene.Validate(); err != nil {
		return res, err
	}
	env := ctl.Env()

	folders, err := ensureFolders(env.Tree, scene.Folders, &res)
	if err != nil {
		return res, err
	}

	env.Store.StartImport()
	importing := true
	defer func() {
		if importing {
			env.Store.EndImport()
		}
	}()

	ids := map[string]datastore.ObjectID{}
	for _, def := range scene.Objects {
		id, err := addObject(env.Store, def, folders)
		if err != nil {
			return res, err
		}
		if def.ID != "" {
			ids[def.ID] = id
		}
		res.IDs = append(res.IDs, id)
		res.Objects++
	}
	for _, def := range scene.Objects {
		if def.Transform == "" {
			continue
		}
		if err := env.Store.SetTransform(ids[def.ID], ids[def.Transform]); err != nil {
			return res, fmt.Errorf("object %s: %w", def.Name, err)
		}
	}
	if err := addLegacy(env.Store, scene.Legacy, ids, &res); err != nil {
		return res, err
	}

	importing = false
	env.Store.EndImport()

	if err := applyColors(ctl, scene.Folders, folders); err != nil {
		return res, err
	}
	if !ctl.PassPending() {
		res.Report = ctl.LastReport()
	}
	log.Info(log.CatConsistency, "scene imported",
		"folders", res.Folders, "objects", res.Objects, "legacy", res.Legacy, "changes", res.Report.Total())
	return res, ctx.Err()
}

// ensureFolders creates the declared folder paths, reusing items that
// already carry the same name at the same place.
func ensureFolders(tree *hierarchy.Tree, defs []FolderDef, res *Result) (map[string]hierarchy.ItemID, error) {
	folders := map[string]hierarchy.ItemID{}
	for _, def := range defs {
		path, _ := cleanPath(def.Path)
		level, _ := levelOf(def.Level)
		parts := strings.Split(path, "/")
		parent := tree.Root()
		for i, name := range parts {
			key := strings.Join(parts[:i+1], "/")
			if id, ok := folders[key]; ok {
				parent = id
				continue
			}
			lvl := hierarchy.LevelFolder
			if i == len(parts)-1 {
				lvl = level
			}
			id, created, err := childNamed(tree, parent, strings.TrimSpace(name), lvl)
			if err != nil {
				return nil, fmt.Errorf("folder %s: %w", key, err)
			}
			if created {
				res.Folders++
			}
			folders[key] = id
			parent = id
		}
		if def.UID != "" {
			if err := tree.SetUID(parent, plugins.UIDPatient, def.UID); err != nil {
				return nil, err
			}
		}
	}
	return folders, nil
}

func childNamed(tree *hierarchy.Tree, parent hierarchy.ItemID, name, level string) (hierarchy.ItemID, bool, error) {
	for _, c := range tree.Children(parent) {
		it, err := tree.Item(c)
		if err == nil && it.Name == name && it.DataObject == "" && it.Level == level {
			return c, false, nil
		}
	}
	id, err := tree.CreateItem(parent, name, level, "")
	return id, err == nil, err
}

func addObject(store *datastore.Store, def ObjectDef, folders map[string]hierarchy.ItemID) (datastore.ObjectID, error) {
	attrs := map[string]string{}
	for k, v := range def.Attributes {
		attrs[k] = v
	}
	if def.Exclude {
		attrs[hierarchy.AttrExcludeFromTree] = "1"
	}
	if len(def.Segments) > 0 {
		attrs[plugins.AttrSegments] = strings.Join(def.Segments, ",")
	}

	var opts []datastore.AddOption
	if def.Folder != "" {
		path, _ := cleanPath(def.Folder)
		opts = append(opts, datastore.WithParentHint(folders[path]))
	}
	id, err := store.AddObject(datastore.DataObject{
		ID:              datastore.ObjectID(def.ID),
		Name:            def.Name,
		Kind:            def.Kind,
		Attributes:      attrs,
		HideFromEditors: def.Hidden,
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("object %s: %w", def.Name, err)
	}

	if def.Color == "" && def.Visible == nil {
		return id, nil
	}
	obj, _ := store.Object(id)
	if obj.DisplayID == "" {
		log.Warn(log.CatConsistency, "display settings ignored, object has no display", "object", def.Name, "kind", def.Kind)
		return id, nil
	}
	if def.Color != "" {
		if err := store.SetDisplayColor(obj.DisplayID, def.Color); err != nil {
			return "", err
		}
	}
	if def.Visible != nil {
		if err := store.SetDisplayVisible(obj.DisplayID, *def.Visible); err != nil {
			return "", err
		}
	}
	return id, nil
}

// addLegacy inserts legacy nodes parents first.
func addLegacy(store *datastore.Store, defs []LegacyDef, ids map[string]datastore.ObjectID, res *Result) error {
	pending := defs
	for len(pending) > 0 {
		var next []LegacyDef
		for _, def := range pending {
			if def.Parent != "" {
				if _, ok := store.LegacyNode(def.Parent); !ok {
					next = append(next, def)
					continue
				}
			}
			_, err := store.AddLegacyNode(datastore.LegacyNode{
				ID:                 def.ID,
				Name:               def.Name,
				ParentID:           def.Parent,
				AssociatedObjectID: ids[def.Object],
			})
			if err != nil {
				return fmt.Errorf("legacy node %s: %w", def.ID, err)
			}
			res.Legacy++
		}
		if len(next) == len(pending) {
			return fmt.Errorf("legacy node %s: parent %s not found", next[0].ID, next[0].Parent)
		}
		pending = next
	}
	return nil
}

func applyColors(ctl *consistency.Controller, defs []FolderDef, folders map[string]hierarchy.ItemID) error {
	p, ok := ctl.Resolver().Registry().ByName(plugins.FolderName)
	if !ok {
		return nil
	}
	folder, ok := p.(*plugins.Folder)
	if !ok {
		return nil
	}
	env := ctl.Env()
	for _, def := range defs {
		if def.Color == "" && !def.ApplyColorToBranch {
			continue
		}
		path, _ := cleanPath(def.Path)
		id := folders[path]
		if !env.Tree.Has(id) {
			log.Warn(log.CatConsistency, "folder gone before its color was applied", "path", path)
			continue
		}
		if def.Color != "" {
			if err := folder.SetBranchColor(env, id, def.Color); err != nil {
				return fmt.Errorf("folder %s: %w", path, err)
			}
		}
		if def.ApplyColorToBranch {
			if err := folder.SetApplyColorToBranch(env, id, true); err != nil {
				return fmt.Errorf("folder %s: %w", path, err)
			}
		}
	}
	return nil
}
