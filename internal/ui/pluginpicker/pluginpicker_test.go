package pluginpicker

import (
	"bytes"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/subjecthierarchy/internal/plugin"
	"github.com/zjrosen/subjecthierarchy/internal/plugins"
)

func candidates() []plugin.Plugin {
	return []plugin.Plugin{plugins.NewVolumes(), plugins.NewModels(), plugins.NewTexts()}
}

func press(m Model, msgs ...tea.Msg) Model {
	var tm tea.Model = m
	for _, msg := range msgs {
		tm, _ = tm.Update(msg)
	}
	return tm.(Model)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNew_SelectsFirst(t *testing.T) {
	m := New("Which plugin?", candidates())
	require.Equal(t, 0, m.selected)
	require.False(t, m.Done())
	_, ok := m.Chosen()
	require.False(t, ok, "nothing is chosen while the picker is open")
}

func TestUpdate_Navigate(t *testing.T) {
	m := New("Which plugin?", candidates())

	m = press(m, runes("j"))
	require.Equal(t, 1, m.selected)
	m = press(m, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, 2, m.selected, "selection stops at the last candidate")

	m = press(m, runes("k"), tea.KeyMsg{Type: tea.KeyUp}, tea.KeyMsg{Type: tea.KeyUp})
	require.Equal(t, 0, m.selected, "selection stops at the first candidate")
}

func TestUpdate_EnterChooses(t *testing.T) {
	m := New("Which plugin?", candidates())
	var tm tea.Model
	tm, _ = m.Update(runes("j"))
	tm, cmd := tm.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())

	m = tm.(Model)
	require.True(t, m.Done())
	p, ok := m.Chosen()
	require.True(t, ok)
	require.Equal(t, plugins.ModelsName, p.Name())
	require.Empty(t, m.View())
}

func TestUpdate_NumberChooses(t *testing.T) {
	m := press(New("Which plugin?", candidates()), runes("3"))
	p, ok := m.Chosen()
	require.True(t, ok)
	require.Equal(t, plugins.TextsName, p.Name())

	m = press(New("Which plugin?", candidates()), runes("9"))
	require.False(t, m.Done(), "out of range numbers are ignored")
}

func TestUpdate_CancelDeclines(t *testing.T) {
	for _, msg := range []tea.Msg{tea.KeyMsg{Type: tea.KeyEsc}, runes("q"), tea.KeyMsg{Type: tea.KeyCtrlC}} {
		m := press(New("Which plugin?", candidates()), runes("j"), msg)
		require.True(t, m.Done())
		_, ok := m.Chosen()
		require.False(t, ok)
	}
}

func TestUpdate_IgnoresInputAfterDone(t *testing.T) {
	m := press(New("Which plugin?", candidates()), tea.KeyMsg{Type: tea.KeyEnter}, runes("j"))
	p, ok := m.Chosen()
	require.True(t, ok)
	require.Equal(t, plugins.VolumesName, p.Name())
}

func TestUpdate_MouseOutsideZones(t *testing.T) {
	m := New("Which plugin?", candidates())
	_ = m.View()
	m = press(m, tea.MouseMsg{X: 500, Y: 500, Button: tea.MouseButtonLeft, Action: tea.MouseActionRelease})
	require.False(t, m.Done())
}

func TestView_ListsCandidates(t *testing.T) {
	view := New("Which plugin should own item \"CT\"?", candidates()).SetBoxWidth(40).View()
	require.Contains(t, view, "Which plugin")
	require.Contains(t, view, ">")
	require.Contains(t, view, "1 Volumes")
	require.Contains(t, view, "2 Models")
	require.Contains(t, view, "3 Texts")
	require.Contains(t, view, "enter")
	require.NotContains(t, view, "pluginpicker-", "zone markers are scanned out")
}

func TestProgram_ChoosesWithKeys(t *testing.T) {
	tm := teatest.NewTestModel(t, New("Which plugin?", candidates()), teatest.WithInitialTermSize(80, 24))
	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("Texts"))
	}, teatest.WithDuration(2*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyDown})
	tm.Send(tea.KeyMsg{Type: tea.KeyDown})
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})

	final := tm.FinalModel(t, teatest.WithFinalTimeout(2*time.Second)).(Model)
	p, ok := final.Chosen()
	require.True(t, ok)
	require.Equal(t, plugins.TextsName, p.Name())
}

func TestDisambiguator_Choose(t *testing.T) {
	var out bytes.Buffer
	d := NewDisambiguator(strings.NewReader("j\r"), &out)

	p, ok := d.Choose("Which plugin?", candidates())
	require.True(t, ok)
	require.Equal(t, plugins.ModelsName, p.Name())
}

func TestDisambiguator_Declines(t *testing.T) {
	var out bytes.Buffer
	d := NewDisambiguator(strings.NewReader("\x1b"), &out)
	_, ok := d.Choose("Which plugin?", nil)
	require.False(t, ok, "no candidates means nothing to choose")
}
