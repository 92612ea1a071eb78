// Package tui shows export progress in the terminal: a progress bar,
// counters and a braille preview of the feature just written.
package tui

import (
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"tilexport/internal/export"
)

// Messages sent by Observer.
type (
	StartedMsg struct {
		Layer string
		Total int
	}
	FeatureMsg struct{ Result export.Result }
	DoneMsg    struct{ Summary export.Summary }
)

type Model struct {
	width  int
	height int

	layer    string
	total    int
	done     int
	exported int
	skipped  int

	last      export.Result
	hasLast   bool
	lastError string

	// last exported feature, kept on screen while skipped features pass
	shown    export.Result
	hasShown bool

	summary  *export.Summary
	cancel   func()
	stopping bool

	bar  progress.Model
	spin spinner.Model
}

// New returns a Model that calls cancel when the user asks to stop.
func New(cancel func()) Model {
	return Model{
		cancel: cancel,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		spin:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(titleStyle)),
	}
}

func (m Model) Init() tea.Cmd { return m.spin.Tick }

func (m Model) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

// Summary returns the final totals once DoneMsg has arrived.
func (m Model) Summary() (export.Summary, bool) {
	if m.summary == nil {
		return export.Summary{}, false
	}
	return *m.summary, true
}
