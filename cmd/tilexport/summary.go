package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"tilexport/internal/export"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

const maxListedFailures = 20

func printSummary(w io.Writer, s export.Summary) {
	fmt.Fprintln(w, titleStyle.Render("tilexport")+" "+dimStyle.Render(s.Layer))
	fmt.Fprintf(w, "%s  %s  %s\n",
		okStyle.Render(fmt.Sprintf("exported %d/%d", s.Exported, s.Total)),
		warnStyle.Render(fmt.Sprintf("skipped %d", s.Skipped)),
		dimStyle.Render(s.Elapsed.Round(time.Millisecond).String()),
	)
	if s.Exported > 0 {
		fmt.Fprintln(w, dimStyle.Render("→ "+s.OutputDir))
	}
	for i, f := range s.Failures {
		if i == maxListedFailures {
			fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  … %d more", len(s.Failures)-i)))
			break
		}
		fmt.Fprintf(w, "  %s %s\n", warnStyle.Render(string(f.Reason)), f.Error())
	}
}

func printPlan(w io.Writer, layer string, plan []export.Result) {
	fmt.Fprintln(w, titleStyle.Render("tilexport")+" "+dimStyle.Render("dry run · "+layer))
	var b strings.Builder
	for _, r := range plan {
		if r.Err != nil {
			fmt.Fprintf(&b, "%s %s\n", warnStyle.Render("skip "+string(r.Err.Reason)), r.Err.Error())
			continue
		}
		c := r.GeoTransform.Corners(r.Size.Width, r.Size.Height)
		fmt.Fprintf(&b, "%s %s  ul %.3f,%.3f  lr %.3f,%.3f\n",
			okStyle.Render(r.Name+export.Ext),
			dimStyle.Render(r.Size.String()),
			c[0][0], c[0][1], c[2][0], c[2][1],
		)
	}
	fmt.Fprint(w, b.String())
}
