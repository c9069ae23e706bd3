package display

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

type fakePlayer struct {
	percent float64
	state   string
	active  []string
	toggled int
	stopped bool
}

func (f *fakePlayer) Progress() (float64, string) { return f.percent, f.state }
func (f *fakePlayer) ActiveKeys() []string         { return f.active }
func (f *fakePlayer) TogglePause()                 { f.toggled++ }
func (f *fakePlayer) Stop()                        { f.stopped = true }

func TestProgressModelTickUpdatesFromPlayer(t *testing.T) {
	fp := &fakePlayer{percent: 42, state: "Playing", active: []string{"a", "s"}}
	m := NewProgressModel("test performance", fp)

	updated, cmd := m.Update(TickMsg{})
	pm := updated.(*ProgressModel)

	assert.Equal(t, 42.0, pm.percent)
	assert.Equal(t, "Playing", pm.state)
	assert.Equal(t, []string{"a", "s"}, pm.active)
	assert.NotNil(t, cmd)
}

func TestProgressModelSpaceTogglesPause(t *testing.T) {
	fp := &fakePlayer{}
	m := NewProgressModel("test", fp)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(" ")})
	assert.Equal(t, 1, fp.toggled)
}

func TestProgressModelQuitStopsPlayer(t *testing.T) {
	fp := &fakePlayer{}
	m := NewProgressModel("test", fp)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, fp.stopped)
	assert.True(t, m.quit)
	assert.NotNil(t, cmd)
}

func TestProgressModelViewRendersTitle(t *testing.T) {
	m := NewProgressModel("my song", nil)
	view := m.View()
	assert.Contains(t, view, "my song")
}
