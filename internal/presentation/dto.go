package presentation

import (
	"maps"
	"slices"

	"github.com/zjrosen/subjecthierarchy/internal/consistency"
	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/plugin"
	"github.com/zjrosen/subjecthierarchy/internal/plugins"
	"github.com/zjrosen/subjecthierarchy/internal/resolver"
)

// ItemDTO is one tree item for presentation.
type ItemDTO struct {
	ID         uint64            `json:"id"`
	Name       string            `json:"name"`
	Path       string            `json:"path"`
	Level      string            `json:"level,omitempty"`
	Owner      string            `json:"owner"`
	Pinned     bool              `json:"pinned,omitempty"` // owner set manually
	DataObject string            `json:"data_object,omitempty"`
	Kind       string            `json:"kind,omitempty"`
	Color      string            `json:"color,omitempty"` // effective color
	UIDs       map[string]string `json:"uids,omitempty"`
	Children   []ItemDTO         `json:"children"`
}

// CandidateDTO is one plugin's confidence in a resolution table.
type CandidateDTO struct {
	Position   int     `json:"position"`
	Plugin     string  `json:"plugin"`
	Confidence float64 `json:"confidence"`
	Winner     bool    `json:"winner"`
}

// ReportDTO mirrors a consolidation pass report.
type ReportDTO struct {
	Resolved      int `json:"resolved"`
	Merged        int `json:"merged"`
	Added         int `json:"added"`
	ShadowsHealed int `json:"shadows_healed"`
	Removed       int `json:"removed"`
	OwnersChanged int `json:"owners_changed"`
	Total         int `json:"total"`
}

// FromItem converts id and its subtree.
func FromItem(env *plugin.Env, id hierarchy.ItemID) ItemDTO {
	it, err := env.Tree.Item(id)
	if err != nil {
		return ItemDTO{ID: uint64(id), Children: []ItemDTO{}}
	}
	dto := ItemDTO{
		ID:         uint64(id),
		Name:       it.Name,
		Path:       env.Tree.Path(id),
		Level:      it.Level,
		Owner:      it.Owner,
		Pinned:     it.Owner != "" && !it.OwnerAutoSearch,
		DataObject: it.DataObject,
		Children:   make([]ItemDTO, 0, len(it.Children)),
	}
	if id != env.Tree.Root() {
		dto.Color = plugins.EffectiveColor(env, id)
	}
	if kind, ok := plugin.KindOf(env, id); ok {
		dto.Kind = kind.String()
	}
	if len(it.UIDs) > 0 {
		dto.UIDs = maps.Clone(it.UIDs)
	}
	for _, c := range it.Children {
		dto.Children = append(dto.Children, FromItem(env, c))
	}
	return dto
}

// FromTree converts the whole tree, rooted at the scene item.
func FromTree(env *plugin.Env) ItemDTO {
	return FromItem(env, env.Tree.Root())
}

// FromDocument converts saved items as they were written, before any
// resolution. IDs are left zero since saved IDs are not live.
func FromDocument(doc consistency.Document) ItemDTO {
	kinds := map[string]string{}
	for _, o := range doc.Contents.Objects {
		kinds[string(o.ID)] = o.Kind.String()
	}
	children := map[string][]hierarchy.UnresolvedItem{}
	for _, u := range doc.Items {
		children[u.ParentTempID] = append(children[u.ParentTempID], u)
	}

	var build func(parent, path string) []ItemDTO
	build = func(parent, path string) []ItemDTO {
		out := make([]ItemDTO, 0, len(children[parent]))
		for _, u := range children[parent] {
			p := u.Name
			if path != "" {
				p = path + "/" + u.Name
			}
			dto := ItemDTO{
				Name:       u.Name,
				Path:       p,
				Level:      u.Level,
				Owner:      u.Owner,
				Pinned:     u.Owner != "" && !u.OwnerAutoSearch,
				DataObject: u.DataObject,
				Kind:       kinds[u.DataObject],
			}
			if len(u.UIDs) > 0 {
				dto.UIDs = maps.Clone(u.UIDs)
			}
			if u.TempID != "" {
				dto.Children = build(u.TempID, p)
			} else {
				dto.Children = []ItemDTO{}
			}
			out = append(out, dto)
		}
		return out
	}
	return ItemDTO{Name: "Scene", Level: hierarchy.LevelScene, Children: build("", "")}
}

// FromCandidates converts a confidence table, marking the decision's plugin.
func FromCandidates(table []resolver.Candidate, winner plugin.Plugin) []CandidateDTO {
	out := make([]CandidateDTO, 0, len(table))
	for i, c := range table {
		out = append(out, CandidateDTO{
			Position:   i + 1,
			Plugin:     c.Plugin.Name(),
			Confidence: c.Confidence,
			Winner:     winner != nil && c.Plugin.Name() == winner.Name(),
		})
	}
	return out
}

// FromReport converts a pass report.
func FromReport(r consistency.PassReport) ReportDTO {
	return ReportDTO{
		Resolved:      r.Resolved,
		Merged:        r.Merged,
		Added:         r.Added,
		ShadowsHealed: r.ShadowsHealed,
		Removed:       r.Removed,
		OwnersChanged: r.OwnersChanged,
		Total:         r.Total(),
	}
}

// PluginNames lists registered plugins in tie-break order.
func PluginNames(reg *resolver.Registry) []string {
	var names []string
	for _, p := range reg.Plugins() {
		names = append(names, p.Name())
	}
	return names
}

// sortedKeys returns the keys of m in order.
func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
