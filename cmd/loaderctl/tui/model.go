// Package tui renders the deferred-relocation bitmap's convergence to
// Finish as a live progress view, so an operator watching a large
// dependency chain resolve can see it settle pass by pass instead of
// waiting on a single final IsFinished check.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/elfload/elfload/reloc"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model drives one image's relocation engine, re-running Relocate on
// every tick until it converges or a pass produces no further progress.
type Model struct {
	name   string
	engine *reloc.Engine
	bar    progress.Model

	total      int
	unresolved []string
	passes     int
	stalled    bool
	finished   bool
}

// New builds a Model over an already-constructed engine whose first
// Relocate pass (against the caller's dependency chain) has already
// run, so Total reflects the real entry count.
func New(name string, engine *reloc.Engine, total int) Model {
	return Model{
		name:   name,
		engine: engine,
		bar:    progress.New(progress.WithDefaultGradient()),
		total:  total,
	}
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 4
		return m, nil
	case tickMsg:
		if m.finished {
			return m, tea.Quit
		}
		before := len(m.unresolved)
		m.engine.Relocate()
		m.unresolved = m.engine.Unresolved()
		m.passes++
		if m.engine.IsFinished() {
			m.finished = true
			return m, tick()
		}
		if len(m.unresolved) == before && m.passes > 1 {
			m.stalled = true
			return m, tea.Quit
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) View() string {
	resolved := m.total - len(m.unresolved)
	if m.total == 0 {
		resolved, m.total = 1, 1
	}
	ratio := float64(resolved) / float64(m.total)

	out := titleStyle.Render(fmt.Sprintf("relocating %s", m.name)) + "\n\n"
	out += m.bar.ViewAs(ratio) + "\n"
	out += fmt.Sprintf("pass %d: %d/%d entries resolved\n", m.passes, resolved, m.total)

	switch {
	case m.finished:
		out += doneStyle.Render("converged\n")
	case m.stalled:
		out += failStyle.Render(fmt.Sprintf("stalled with %d unresolved: %v\n", len(m.unresolved), m.unresolved))
	}
	return out
}
