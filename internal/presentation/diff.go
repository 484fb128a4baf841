package presentation

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffLine is one line of a line-level diff.
type DiffLine struct {
	Op   byte // ' ', '+' or '-'
	Text string
}

// DiffTrees compares two rendered trees line by line. Styling is stripped
// first so a color change alone does not count as a difference.
func DiffTrees(before, after string) []DiffLine {
	before, after = ansi.Strip(before), ansi.Strip(after)

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []DiffLine
	for _, d := range diffs {
		op := byte(' ')
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = '-'
		case diffmatchpatch.DiffInsert:
			op = '+'
		}
		for _, l := range strings.SplitAfter(d.Text, "\n") {
			if l == "" {
				continue
			}
			out = append(out, DiffLine{Op: op, Text: strings.TrimSuffix(l, "\n")})
		}
	}
	return out
}

// Changed reports whether any line differs.
func Changed(diff []DiffLine) bool {
	for _, l := range diff {
		if l.Op != ' ' {
			return true
		}
	}
	return false
}

// FormatDiff renders a diff in unified style. r colors added and removed
// lines; pass a renderer with the Ascii profile for plain output.
func FormatDiff(r *lipgloss.Renderer, diff []DiffLine) string {
	added := r.NewStyle().Foreground(lipgloss.Color("2"))
	removed := r.NewStyle().Foreground(lipgloss.Color("1"))

	var b strings.Builder
	for _, l := range diff {
		text := string(l.Op) + " " + l.Text
		switch l.Op {
		case '+':
			text = added.Render(text)
		case '-':
			text = removed.Render(text)
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}
