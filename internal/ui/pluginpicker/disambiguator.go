package pluginpicker

import (
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"github.com/zjrosen/subjecthierarchy/internal/log"
	"github.com/zjrosen/subjecthierarchy/internal/plugin"
	"github.com/zjrosen/subjecthierarchy/internal/resolver"
)

var zoneOnce sync.Once

func initZones() {
	zoneOnce.Do(zone.NewGlobal)
}

// Disambiguator settles resolver ties by running a picker on a terminal.
type Disambiguator struct {
	in   io.Reader
	out  io.Writer
	opts []tea.ProgramOption
}

var _ resolver.Disambiguator = (*Disambiguator)(nil)

// NewDisambiguator creates a Disambiguator reading keys from in and
// drawing on out. Extra program options are appended to the defaults.
func NewDisambiguator(in io.Reader, out io.Writer, opts ...tea.ProgramOption) *Disambiguator {
	return &Disambiguator{in: in, out: out, opts: opts}
}

// Choose runs the picker. It declines when the program fails or the user
// cancels, leaving the tie to the first registered plugin.
func (d *Disambiguator) Choose(prompt string, candidates []plugin.Plugin) (plugin.Plugin, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	opts := append([]tea.ProgramOption{
		tea.WithInput(d.in),
		tea.WithOutput(d.out),
		tea.WithMouseCellMotion(),
	}, d.opts...)

	final, err := tea.NewProgram(New(prompt, candidates), opts...).Run()
	if err != nil {
		log.ErrorErr(log.CatResolve, "plugin picker failed", err, "prompt", prompt)
		return nil, false
	}
	m, ok := final.(Model)
	if !ok {
		return nil, false
	}
	p, ok := m.Chosen()
	if ok {
		log.Debug(log.CatResolve, "tie settled interactively", "plugin", p.Name())
	}
	return p, ok
}
