// Package pluginpicker asks the user which of several tied plugins should
// win a resolution.
package pluginpicker

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"github.com/zjrosen/subjecthierarchy/internal/keys"
	"github.com/zjrosen/subjecthierarchy/internal/plugin"
)

var (
	titleColor     = lipgloss.AdaptiveColor{Light: "#3C3C3C", Dark: "#C9C9C9"}
	borderColor    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#8C8C8C"}
	indicatorColor = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#54A0FF"}
)

const defaultBoxWidth = 32

// Model holds the picker state.
type Model struct {
	title      string
	candidates []plugin.Plugin
	selected   int
	chosen     bool
	done       bool
	boxWidth   int
	keys       keys.PickerMap
	help       help.Model
}

// New creates a picker over candidates. The first candidate starts
// selected.
func New(title string, candidates []plugin.Plugin) Model {
	initZones()
	return Model{
		title:      title,
		candidates: candidates,
		keys:       keys.Picker,
		help:       help.New(),
	}
}

// SetBoxWidth sets the width of the picker box itself.
func (m Model) SetBoxWidth(width int) Model {
	m.boxWidth = width
	return m
}

// Chosen returns the plugin the user picked. It returns false when the
// picker was cancelled or is still open.
func (m Model) Chosen() (plugin.Plugin, bool) {
	if !m.chosen || m.selected >= len(m.candidates) {
		return nil, false
	}
	return m.candidates[m.selected], true
}

// Done reports whether the picker has closed.
func (m Model) Done() bool {
	return m.done
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.done {
		return m, nil
	}
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Down):
			if m.selected < len(m.candidates)-1 {
				m.selected++
			}
		case key.Matches(msg, m.keys.Up):
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, m.keys.Choose):
			return m.finish(true)
		case key.Matches(msg, m.keys.Cancel):
			return m.finish(false)
		default:
			// 1-9 pick directly.
			if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
				if i := int(s[0] - '1'); i < len(m.candidates) {
					m.selected = i
					return m.finish(true)
				}
			}
		}
	case tea.MouseMsg:
		if msg.Button != tea.MouseButtonLeft || msg.Action != tea.MouseActionRelease {
			return m, nil
		}
		for i := range m.candidates {
			if z := zone.Get(zoneID(i)); z != nil && z.InBounds(msg) {
				m.selected = i
				return m.finish(true)
			}
		}
	}
	return m, nil
}

func (m Model) finish(chosen bool) (tea.Model, tea.Cmd) {
	m.chosen = chosen && len(m.candidates) > 0
	m.done = true
	return m, tea.Quit
}

func zoneID(i int) string {
	return fmt.Sprintf("pluginpicker-%d", i)
}

// View implements tea.Model. The picker runs as its own program, so zone
// markers are scanned here.
func (m Model) View() string {
	if m.done {
		return ""
	}
	return zone.Scan(m.box() + "\n" + m.help.View(m.keys) + "\n")
}

func (m Model) box() string {
	width := m.boxWidth
	if width == 0 {
		width = defaultBoxWidth
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(titleColor).PaddingLeft(1)
	indicator := lipgloss.NewStyle().Bold(true).Foreground(indicatorColor)

	var options strings.Builder
	for i, p := range m.candidates {
		label := fmt.Sprintf("%d %s", i+1, p.Name())
		var line string
		if i == m.selected {
			line = indicator.Render(">") + lipgloss.NewStyle().Bold(true).Render(label)
		} else {
			line = " " + label
		}
		options.WriteString(zone.Mark(zoneID(i), line))
		if i < len(m.candidates)-1 {
			options.WriteString("\n")
		}
	}

	divider := lipgloss.NewStyle().Foreground(borderColor).Render(strings.Repeat("─", width))
	content := titleStyle.Render(m.title) + "\n" + divider + "\n" + options.String()

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(width).
		Render(content)
}
