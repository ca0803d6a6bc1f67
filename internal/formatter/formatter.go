// package formatter renders diff tables, import summaries, and capture
// reports for terminal output
package formatter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/desertthunder/crx/internal/services"
	"github.com/desertthunder/crx/internal/tasks"
)

const ruleWidth = 62

func rule(width int) string {
	return strings.Repeat("─", width)
}

// RenderDiffTable formats a snapshot-versus-target comparison as an aligned
// table.
func RenderDiffTable(result *tasks.DiffResult) string {
	var buf bytes.Buffer

	buf.WriteString("\n")
	fmt.Fprintf(&buf, "  %-14s %10s %10s %10s %14s\n", "Data Type", "In Export", "On Target", "Missing", "Already There")
	fmt.Fprintf(&buf, "  %s\n", rule(ruleWidth))

	rows := []struct {
		name   string
		counts tasks.DiffCounts
	}{
		{"Watchlist", result.Watchlist},
		{"History", result.History},
		{"Crunchylists", result.Crunchylists},
		{"Ratings", result.Ratings},
	}
	for _, row := range rows {
		fmt.Fprintf(&buf, "  %-14s %10d %10d %10d %14d\n",
			row.name, row.counts.InExport, row.counts.OnTarget, row.counts.Missing, row.counts.AlreadyThere)
	}
	buf.WriteString("\n")

	return buf.String()
}

// RenderImportSummary formats per-category import counts with a total row.
func RenderImportSummary(result *tasks.ImportResult) string {
	var buf bytes.Buffer

	buf.WriteString("\n  Import Summary\n")
	fmt.Fprintf(&buf, "  %s\n", rule(50))

	var total tasks.Counts
	for _, category := range []tasks.Category{
		tasks.CategoryWatchlist,
		tasks.CategoryCrunchylists,
		tasks.CategoryRatings,
		tasks.CategoryHistory,
	} {
		c := result.Counts(category)
		fmt.Fprintf(&buf, "  %-14s %d added, %d already there, %d failed\n",
			category, c.Added, c.AlreadyPresent, c.Failed)
		total.Added += c.Added
		total.AlreadyPresent += c.AlreadyPresent
		total.Failed += c.Failed
	}

	fmt.Fprintf(&buf, "  %s\n", rule(50))
	fmt.Fprintf(&buf, "  %-14s %d added, %d already there, %d failed\n",
		"Total", total.Added, total.AlreadyPresent, total.Failed)

	return buf.String()
}

// RenderCaptureSummary formats the result of a snapshot capture.
func RenderCaptureSummary(result *tasks.CaptureResult) string {
	var buf bytes.Buffer

	buf.WriteString("\n  Export Summary\n")
	fmt.Fprintf(&buf, "  %s\n", rule(50))
	fmt.Fprintf(&buf, "  %-14s %d items\n", "Watchlist", result.Watchlist)
	fmt.Fprintf(&buf, "  %-14s %d lists, %d items\n", "Crunchylists", result.Lists, result.ListItems)
	fmt.Fprintf(&buf, "  %-14s %d rated items\n", "Ratings", result.Ratings)
	if result.HistoryDropped > 0 {
		fmt.Fprintf(&buf, "  %-14s %d items (%d skipped)\n", "History", result.History, result.HistoryDropped)
	} else {
		fmt.Fprintf(&buf, "  %-14s %d items\n", "History", result.History)
	}
	fmt.Fprintf(&buf, "  %s\n", rule(50))
	fmt.Fprintf(&buf, "  Snapshot written to %s\n", result.Directory)

	return buf.String()
}

// RenderProfileList formats account profiles for the status command.
func RenderProfileList(profiles []services.Profile) string {
	var buf bytes.Buffer

	for _, p := range profiles {
		marker := " "
		if p.IsPrimary {
			marker = "*"
		}
		fmt.Fprintf(&buf, "  %s %-20s %s\n", marker, p.Name, p.ID)
	}

	return buf.String()
}
