// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/job-ranker/internal/pipeline"
	"github.com/jonathan/job-ranker/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// clip shortens s to n runes, marking the cut with an ellipsis.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// PrintProfileContext outputs the profile context sent to the models.
func (p *Printer) PrintProfileContext(context string) {
	if strings.TrimSpace(context) == "" {
		return
	}
	p.printBox("PROFILE CONTEXT", context)
}

// PrintProgress outputs one line per phase transition.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(event pipeline.ProgressEvent) {
	m := event.Metrics
	fmt.Fprintf(p.out, "[%-16s] %s (embedded=%d shortlisted=%d enriched=%d ranked=%d)\n",
		event.Step, event.Message, m.JobsEmbedded, m.JobsShortlisted, m.JobsEnriched, m.JobsRanked)
}

// PrintRunSummary outputs the outcome and counts of a run.
func (p *Printer) PrintRunSummary(res pipeline.Result) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Status:       %s\n", res.Status))
	sb.WriteString(fmt.Sprintf("Last phase:   %s\n", res.Phase))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Embedded:     %d\n", res.Metrics.JobsEmbedded))
	sb.WriteString(fmt.Sprintf("Shortlisted:  %d\n", res.Metrics.JobsShortlisted))
	sb.WriteString(fmt.Sprintf("Enriched:     %d\n", res.Metrics.JobsEnriched))
	sb.WriteString(fmt.Sprintf("Ranked:       %d", res.Metrics.JobsRanked))
	if res.Err != nil {
		sb.WriteString(fmt.Sprintf("\n\nError: %s", res.Err))
	}

	p.printBox("RUN SUMMARY", sb.String())
}

// PrintTopRankings outputs the best rankings with their breakdowns. rankings
// must already be sorted best first.
func (p *Printer) PrintTopRankings(rankings []types.Ranking) {
	if len(rankings) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total jobs ranked: %d\n\n", len(rankings)))

	count := min(len(rankings), maxItemsToShow)
	for i := 0; i < count; i++ {
		r := rankings[i]
		sb.WriteString(fmt.Sprintf("#%d  %s  score %d\n", i+1, r.JobID, r.Score))
		if r.Breakdown.Validate() == nil {
			b := r.Breakdown
			sb.WriteString(fmt.Sprintf("    skill %.0f  budget %.0f  client %.0f  scope %.0f  win %.0f\n",
				*b.SkillMatch, *b.BudgetFit, *b.ClientQuality, *b.ScopeFit, *b.WinProbability))
		}
		if r.Reasoning != "" {
			sb.WriteString(fmt.Sprintf("    %s\n", r.Reasoning))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(rankings) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more jobs", len(rankings)-maxItemsToShow))
	}

	p.printBox("TOP RANKED JOBS", strings.TrimSuffix(sb.String(), "\n"))
}
