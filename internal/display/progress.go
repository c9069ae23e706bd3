// Package display implements the engine's output surfaces: a live
// Bubble Tea progress view for an in-progress performance, and the
// CSV/key-notation export formats (spec §6).
package display

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styles, trimmed from the teacher's fretboard/tablature palette down to
// what a progress readout needs (display/tui.go titleStyle/headerStyle/
// progressStyle).
var (
	primaryColor  = lipgloss.Color("#00FFFF")
	accentColor   = lipgloss.Color("#00FF00")
	dimColor      = lipgloss.Color("#666666")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	headerStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	progressStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	activeKeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)
)

// TickMsg is sent on each 50ms refresh tick (display/tui.go's TickMsg).
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// PlayerController is the narrow surface the progress model needs from a
// running performance, trimmed from display/tui.go's much larger
// PlayerController down to what a keystroke auto-player exposes.
type PlayerController interface {
	Progress() (percent float64, state string)
	ActiveKeys() []string
	TogglePause()
	Stop()
}

// ProgressModel is the Bubble Tea model for a live performance view:
// one progress bar plus the currently-held keys, trimmed from
// display/tui.go's full tablature/fretboard/lyrics rendering.
type ProgressModel struct {
	title   string
	player  PlayerController
	percent float64
	state   string
	active  []string
	quit    bool
}

// NewProgressModel builds a ProgressModel bound to player.
func NewProgressModel(title string, player PlayerController) *ProgressModel {
	return &ProgressModel{title: title, player: player, state: "Idle"}
}

// Init implements tea.Model.
func (m *ProgressModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), tea.EnterAltScreen)
}

// Update implements tea.Model.
func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quit = true
			if m.player != nil {
				m.player.Stop()
			}
			return m, tea.Quit
		case " ":
			if m.player != nil {
				m.player.TogglePause()
			}
		}
	case TickMsg:
		if m.player != nil {
			m.percent, m.state = m.player.Progress()
			m.active = m.player.ActiveKeys()
		}
		return m, tickCmd()
	}
	return m, nil
}

// View implements tea.Model.
func (m *ProgressModel) View() string {
	if m.quit {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(m.renderProgressBar())
	b.WriteString("\n")
	b.WriteString(m.renderActiveKeys())
	b.WriteString("\n\n")
	b.WriteString(headerStyle.Render("  [space] pause/resume  [q] quit"))
	return b.String()
}

func (m *ProgressModel) renderProgressBar() string {
	p := m.percent / 100.0
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	const width = 50
	filled := int(p * float64(width))
	bar := strings.Repeat("▓", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("  %s  %3d%%  [%s]", progressStyle.Render(bar), int(m.percent), m.state)
}

func (m *ProgressModel) renderActiveKeys() string {
	if len(m.active) == 0 {
		return headerStyle.Render("  (no keys held)")
	}
	return "  " + activeKeyStyle.Render(strings.Join(m.active, " "))
}
