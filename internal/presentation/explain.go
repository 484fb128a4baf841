package presentation

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/zjrosen/subjecthierarchy/internal/hierarchy"
	"github.com/zjrosen/subjecthierarchy/internal/resolver"
)

// Explanation describes why an item has its owner.
type Explanation struct {
	Item       ItemDTO        `json:"item"`
	Resolved   string         `json:"resolved"` // plugin resolution picks now
	Role       string         `json:"role"`
	Icon       string         `json:"icon"`
	Actions    []string       `json:"actions"`
	Candidates []CandidateDTO `json:"candidates"`
	Tied       []string       `json:"tied,omitempty"`
	Chosen     bool           `json:"chosen,omitempty"` // tie settled interactively
}

// Explain collects the ownership table and the owner's answers for id.
func Explain(res *resolver.Resolver, id hierarchy.ItemID) (Explanation, error) {
	env := res.Env()
	d, err := res.OwnershipDecision(id)
	if err != nil {
		return Explanation{}, err
	}
	owner, err := res.StoredOwner(id)
	if err != nil {
		return Explanation{}, err
	}
	item := FromItem(env, id)
	item.Children = nil

	e := Explanation{
		Item:       item,
		Resolved:   d.Plugin.Name(),
		Role:       owner.Role(env, id),
		Icon:       owner.Icon(env, id),
		Actions:    owner.ContextActions(env, id),
		Candidates: FromCandidates(res.OwnershipTable(id), d.Plugin),
		Chosen:     d.Chosen,
	}
	for _, p := range d.Tied {
		e.Tied = append(e.Tied, p.Name())
	}
	return e, nil
}

// Markdown renders the explanation as a markdown document.
func (e Explanation) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", e.Item.Name)
	fmt.Fprintf(&b, "- **Path:** `%s`\n", e.Item.Path)
	fmt.Fprintf(&b, "- **Owner:** %s", e.Item.Owner)
	if e.Item.Pinned {
		b.WriteString(" (set manually)")
	}
	b.WriteString("\n")
	if e.Resolved != e.Item.Owner {
		fmt.Fprintf(&b, "- **Resolution now picks:** %s\n", e.Resolved)
	}
	if e.Role != "" {
		fmt.Fprintf(&b, "- **Role:** %s\n", e.Role)
	}
	if e.Icon != "" {
		fmt.Fprintf(&b, "- **Icon:** %s\n", e.Icon)
	}
	if e.Item.Kind != "" {
		fmt.Fprintf(&b, "- **Data object:** `%s` (%s)\n", e.Item.DataObject, e.Item.Kind)
	}

	b.WriteString("\n## Ownership confidences\n\n")
	b.WriteString("| # | Plugin | Confidence | |\n|---|---|---|---|\n")
	for _, c := range e.Candidates {
		mark := ""
		if c.Winner {
			mark = "winner"
		}
		fmt.Fprintf(&b, "| %d | %s | %.2f | %s |\n", c.Position, c.Plugin, c.Confidence, mark)
	}

	if len(e.Tied) > 1 {
		how := "the first registered plugin won"
		if e.Chosen {
			how = "the tie was settled interactively"
		}
		fmt.Fprintf(&b, "\n> %s tied at the top; %s.\n", strings.Join(e.Tied, ", "), how)
	}

	if len(e.Actions) > 0 {
		b.WriteString("\n## Actions\n\n")
		for _, a := range e.Actions {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}
	return b.String()
}

// noMarginStyle removes document margins from the base style.
const noMarginStyle = `{
	"document": {
		"margin": 0,
		"block_prefix": "",
		"block_suffix": ""
	}
}`

// RenderMarkdown renders md for the terminal, wrapped at width. Without
// color the plain "notty" style is used.
func RenderMarkdown(md string, width int, color bool) (string, error) {
	style := glamour.WithAutoStyle()
	if !color {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(
		style,
		glamour.WithStylesFromJSONBytes([]byte(noMarginStyle)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	return r.Render(md)
}
