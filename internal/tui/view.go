package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	width := m.width
	if width == 0 {
		width = 80
	}

	header := titleStyle.Render(" tilexport ") + dimStyle.Render("─ "+m.layerTitle())
	if m.summary == nil {
		header = m.spin.View() + header
	}

	counts := fmt.Sprintf("%d/%d", m.done, m.total)
	bar := lipgloss.JoinHorizontal(lipgloss.Center,
		m.bar.ViewAs(m.percent()), " ", counts)
	stats := okStyle.Render(fmt.Sprintf("exported %d", m.exported)) + "  " +
		warnStyle.Render(fmt.Sprintf("skipped %d", m.skipped))

	var lines []string
	lines = append(lines, header, "", bar, stats)
	if m.hasLast {
		if m.last.Err == nil {
			lines = append(lines, dimStyle.Render("last ")+ellipsis(filepath.Base(m.last.Path), width-6))
		} else {
			lines = append(lines, dimStyle.Render("last ")+featureName(m.last.ID, m.last.Index)+" skipped")
		}
	}
	if m.lastError != "" {
		lines = append(lines, warnStyle.Render(ellipsis(m.lastError, width-2)))
	}

	if pv := m.previewView(width); pv != "" {
		lines = append(lines, pv)
	}

	footer := "q stop"
	if m.stopping {
		footer = "stopping after the current feature · q again to quit"
	}
	lines = append(lines, dimStyle.Render(footer))
	return appStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func (m Model) layerTitle() string {
	if m.layer == "" {
		return "loading"
	}
	return m.layer
}

// previewView draws the most recently exported outline in a box sized to
// the window, or "" when the window is too small.
func (m Model) previewView(width int) string {
	if !m.hasShown {
		return ""
	}
	h := 10
	if m.height > 0 {
		h = min(16, m.height-12)
	}
	w := min(2*h+2, width-4)
	if h < 3 || w < 6 {
		return ""
	}
	art := renderPreview(m.shown.Geometry, m.shown.Extent, w, h)
	if art == "" {
		return ""
	}
	title := dimStyle.Render(ellipsis(m.shown.Name, w))
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, art))
}
