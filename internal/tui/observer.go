package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"tilexport/internal/export"
)

// sender is the part of *tea.Program the observer needs.
type sender interface {
	Send(msg tea.Msg)
}

// Observer forwards export progress to a running program.
type Observer struct {
	p sender
}

func NewObserver(p *tea.Program) Observer { return Observer{p: p} }

func (o Observer) Started(layer string, total int) {
	o.p.Send(StartedMsg{Layer: layer, Total: total})
}

func (o Observer) FeatureDone(r export.Result) { o.p.Send(FeatureMsg{Result: r}) }

func (o Observer) Finished(s export.Summary) { o.p.Send(DoneMsg{Summary: s}) }
