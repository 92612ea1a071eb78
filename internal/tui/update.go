package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(10, min(60, m.width-4))
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			// First press stops after the current feature, second quits.
			if m.stopping {
				return m, tea.Quit
			}
			m.stopping = true
			if m.cancel != nil {
				m.cancel()
			}
		}
	case StartedMsg:
		m.layer = msg.Layer
		m.total = msg.Total
	case FeatureMsg:
		r := msg.Result
		m.done++
		m.last, m.hasLast = r, true
		if r.Err != nil {
			m.skipped++
			m.lastError = fmt.Sprintf("%s: %s", featureName(r.ID, r.Index), r.Err.Reason)
		} else {
			m.exported++
			m.shown, m.hasShown = r, true
		}
	case DoneMsg:
		s := msg.Summary
		m.summary = &s
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func featureName(id string, index int) string {
	if id == "" {
		return fmt.Sprintf("#%d", index)
	}
	return id
}
