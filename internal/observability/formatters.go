// Package observability provides metrics and formatted terminal output for the archiver.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jonathan/article-archiver/internal/pipeline"
	"github.com/jonathan/article-archiver/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// maxCellWidth bounds each column of the article table
	maxCellWidth = 48
)

// Printer handles formatted output for the CLI
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
	fmt.Fprintf(p.out, "│ %s │\n", pad(title, boxWidth-4))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for _, line := range lines {
		fmt.Fprintf(p.out, "│ %s │\n", pad(truncate(line, boxWidth-4), boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRunSummary outputs the outcome of a run.
func (p *Printer) PrintRunSummary(res *pipeline.Result) {
	if res == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Status:     %s\n", res.Status))
	if res.Status == pipeline.StatusError {
		sb.WriteString(fmt.Sprintf("Error:      %s\n", res.Message))
	}
	sb.WriteString(fmt.Sprintf("Candidates: %d\n", res.Candidates))
	sb.WriteString(fmt.Sprintf("Saved:      %d\n", res.SavedCount))
	sb.WriteString(fmt.Sprintf("Skipped:    %d\n", res.Skipped))
	sb.WriteString(fmt.Sprintf("Failed:     %d\n", res.Failed))
	sb.WriteString(fmt.Sprintf("Duration:   %s\n", res.Duration.Round(time.Millisecond)))

	var failed []pipeline.Outcome
	for _, o := range res.Outcomes {
		if o.Kind == pipeline.OutcomeFailed {
			failed = append(failed, o)
		}
	}
	if len(failed) > 0 {
		sb.WriteString("\nFailures:\n")
		count := min(len(failed), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", failed[i].Link))
			if failed[i].Err != nil {
				sb.WriteString(fmt.Sprintf("    %v\n", failed[i].Err))
			}
		}
		if len(failed) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(failed)-maxItemsToShow))
		}
	}

	p.printBox("RUN SUMMARY", sb.String())
}

// PrintArticles outputs stored articles as an aligned table.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintArticles(articles []types.StoredArticle) {
	if len(articles) == 0 {
		fmt.Fprintln(p.out, "No articles stored.")
		return
	}

	rows := [][]string{{"DATE", "TITLE", "PDF", "LINK"}}
	for _, a := range articles {
		date := "-"
		if a.DatePublished != nil {
			date = a.DatePublished.Format("2006-01-02")
		}
		pdf := "no"
		if a.HasSnapshot() {
			pdf = "yes"
		}
		rows = append(rows, []string{date, truncate(a.Title, maxCellWidth), pdf, a.Link})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if i == len(row)-1 {
				cells[i] = cell
				continue
			}
			cells[i] = pad(cell, widths[i])
		}
		fmt.Fprintln(p.out, strings.Join(cells, "  "))
	}
}

// pad right-pads s to width display columns.
func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// truncate cuts s to at most width display columns.
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
