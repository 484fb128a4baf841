package presentation

import (
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TreeOptions controls tree rendering.
type TreeOptions struct {
	// Color paints names with their effective color. Without it the
	// output is plain text whatever the terminal supports.
	Color bool
	// Width truncates lines to this many cells. 0 means no limit.
	Width int
	// IDs prefixes every line with the item ID.
	IDs bool
}

// TreeRenderer draws an ItemDTO tree with box-drawing connectors.
type TreeRenderer struct {
	opts     TreeOptions
	renderer *lipgloss.Renderer
	title    cases.Caser
}

// NewTreeRenderer creates a renderer writing for w.
func NewTreeRenderer(w io.Writer, opts TreeOptions) *TreeRenderer {
	r := lipgloss.NewRenderer(w)
	if !opts.Color {
		r.SetColorProfile(termenv.Ascii)
	}
	return &TreeRenderer{opts: opts, renderer: r, title: cases.Title(language.Und)}
}

// Renderer returns the lipgloss renderer, for styling related output the
// same way.
func (t *TreeRenderer) Renderer() *lipgloss.Renderer {
	return t.renderer
}

type line struct {
	prefix string
	item   ItemDTO
}

// Render returns the rendered tree. The scene item itself is printed as
// "Scene" and its children below it.
func (t *TreeRenderer) Render(root ItemDTO) string {
	var lines []line
	var walk func(it ItemDTO, prefix string)
	walk = func(it ItemDTO, prefix string) {
		for i, c := range it.Children {
			last := i == len(it.Children)-1
			branch, next := "├── ", "│   "
			if last {
				branch, next = "└── ", "    "
			}
			lines = append(lines, line{prefix: prefix + branch, item: c})
			walk(c, prefix+next)
		}
	}
	walk(root, "")

	// Owner annotations line up in one column.
	labels := make([]string, len(lines))
	width := 0
	for i, l := range lines {
		labels[i] = l.prefix + l.item.Name
		width = max(width, runewidth.StringWidth(labels[i]))
	}

	ownerStyle := t.renderer.NewStyle().Faint(true)
	var b strings.Builder
	b.WriteString(t.renderer.NewStyle().Bold(true).Render("Scene"))
	b.WriteByte('\n')
	for i, l := range lines {
		name := l.item.Name
		if l.item.Color != "" {
			name = t.renderer.NewStyle().Foreground(lipgloss.Color(l.item.Color)).Render(name)
		}
		pad := strings.Repeat(" ", width-runewidth.StringWidth(labels[i])+2)
		row := l.prefix + name + pad + ownerStyle.Render(t.annotation(l.item))
		if t.opts.IDs {
			row = ownerStyle.Render(idColumn(l.item.ID)) + row
		}
		if t.opts.Width > 0 {
			row = truncate.StringWithTail(row, uint(t.opts.Width), "…")
		}
		b.WriteString(strings.TrimRight(row, " "))
		b.WriteByte('\n')
	}
	return b.String()
}

// annotation is the "[Owner] kind/level" suffix of a line.
func (t *TreeRenderer) annotation(it ItemDTO) string {
	var parts []string
	owner := it.Owner
	if owner == "" {
		owner = "?"
	}
	if it.Pinned {
		owner += "!"
	}
	parts = append(parts, "["+owner+"]")
	switch {
	case it.Kind != "":
		parts = append(parts, t.title.String(it.Kind))
	case it.Level != "":
		parts = append(parts, t.title.String(strings.ToLower(it.Level)))
	}
	for _, k := range sortedKeys(it.UIDs) {
		parts = append(parts, k+"="+it.UIDs[k])
	}
	return strings.Join(parts, " ")
}

func idColumn(id uint64) string {
	s := "#" + strconv.FormatUint(id, 10)
	return s + strings.Repeat(" ", max(1, 6-len(s)))
}
