package report

import (
	"cppmsplit/internal/core/ports"
	"cppmsplit/internal/data/history"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	cachedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	removedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

// RenderSummary formats a batch report for the terminal. Failed units are
// listed with their error code and message; other units only when verbose.
func RenderSummary(r ports.TranslateReport, verbose bool) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("cppmsplit " + r.Mode))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  run %s, %s", shortID(r.RunID), r.Duration.Round(time.Millisecond))))
	b.WriteString("\n")

	counts := []string{
		okStyle.Render(fmt.Sprintf("%d translated", r.Translated)),
		cachedStyle.Render(fmt.Sprintf("%d cached", r.Cached)),
	}
	if r.Failed > 0 {
		counts = append(counts, failStyle.Render(fmt.Sprintf("%d failed", r.Failed)))
	} else {
		counts = append(counts, fmt.Sprintf("%d failed", r.Failed))
	}
	if r.Removed > 0 {
		counts = append(counts, removedStyle.Render(fmt.Sprintf("%d removed", r.Removed)))
	}
	b.WriteString(strings.Join(counts, " | "))
	b.WriteString("\n")

	for _, u := range r.Units {
		switch {
		case u.Status == history.StatusFailed:
			b.WriteString(failStyle.Render("  ✗ "+u.UnitPath) + "\n")
			b.WriteString(fmt.Sprintf("      [%s] %v\n", u.ErrorCode, u.Err))
		case verbose:
			b.WriteString(unitLine(u) + "\n")
		}
	}
	return b.String()
}

func unitLine(u ports.UnitOutcome) string {
	mark := okStyle.Render("  ✓ ")
	if u.Status == history.StatusCached {
		mark = cachedStyle.Render("  = ")
	}
	return fmt.Sprintf("%s%s -> %s, %s (%d constructs)",
		mark, u.UnitPath, filepath.Base(u.HeaderPath), filepath.Base(u.SourcePath), u.Constructs)
}

// RenderHistory formats history rows as a tab-separated table, newest first.
func RenderHistory(rows []history.Translation) string {
	var b strings.Builder
	b.WriteString("Timestamp\tStatus\tUnit\tConstructs\tDuration\tError\n")
	for _, row := range rows {
		errText := ""
		if row.ErrorCode != "" {
			errText = row.ErrorCode + ": " + row.ErrorMessage
		}
		b.WriteString(fmt.Sprintf("%s\t%s\t%s\t%d\t%s\t%s\n",
			row.Timestamp.Format(time.RFC3339),
			row.Status,
			row.UnitPath,
			row.Constructs,
			row.Duration,
			errText,
		))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
