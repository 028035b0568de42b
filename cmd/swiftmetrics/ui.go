package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dejo1307/swiftmetrics/internal/metrics"
	"github.com/dejo1307/swiftmetrics/internal/report"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC")).
			Bold(true)

	painStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	uselessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	goodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CC3333")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#666666")).
			Padding(0, 1)
)

type column struct {
	title string
	width int
	left  bool
}

var moduleColumns = []column{
	{"Module", 28, true},
	{"LOC", 8, false},
	{"POC", 8, false},
	{"Fan-in", 7, false},
	{"Fan-out", 8, false},
	{"I", 6, false},
	{"A", 6, false},
	{"D", 6, false},
}

func cell(c column, text string) string {
	style := lipgloss.NewStyle().Width(c.width).MaxWidth(c.width)
	if !c.left {
		style = style.Align(lipgloss.Right)
	}
	return style.Render(text)
}

// zoneStyle colors a distance by the module's zone.
func zoneStyle(b report.ModuleBody) lipgloss.Style {
	if b.I == nil || b.A == nil {
		return lipgloss.NewStyle()
	}
	switch metrics.Classify(*b.I, *b.A) {
	case metrics.ZonePain:
		return painStyle
	case metrics.ZoneUselessness:
		return uselessStyle
	default:
		return goodStyle
	}
}

// renderSummary renders the module table and totals printed by analyze.
func renderSummary(snap *report.Snapshot, outDir string) string {
	r := snap.Report
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Swift Module Metrics"))
	sb.WriteString("\n\n")

	var header []string
	for _, c := range moduleColumns {
		header = append(header, cell(c, c.title))
	}
	sb.WriteString(headerStyle.Render(strings.Join(header, " ")))
	sb.WriteString("\n")

	for _, e := range r.NonTest {
		b := e.Body
		values := []string{
			e.Name,
			fmt.Sprintf("%d", b.LOC),
			fmt.Sprintf("%.1f%%", b.POC),
			optInt(b.FanIn),
			optInt(b.FanOut),
			optFloat(b.I),
			optFloat(b.A),
			optFloat(b.D3),
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = cell(moduleColumns[i], v)
		}
		row[len(row)-1] = zoneStyle(b).Render(row[len(row)-1])
		sb.WriteString(strings.Join(row, " "))
		sb.WriteString("\n")
	}

	agg := r.Aggregate
	totals := fmt.Sprintf(
		"Modules:       %d (+%d test)\n"+
			"Files:         %d (%d shared)\n"+
			"LOC:           %d non-test, %d test, %d total\n"+
			"Comments:      %.1f%%\n"+
			"Mean distance: %.3f (furthest: %s)\n"+
			"Insights:      %d\n"+
			"Output:        %s",
		r.Meta.Modules, r.Meta.TestModules,
		r.Meta.Files, r.Meta.SharedFiles,
		agg.NonTest.LOC, agg.Tests.LOC, agg.Total.LOC,
		agg.Total.POC,
		r.MainSequence.MeanDistance, orDash(r.MainSequence.Furthest),
		len(snap.Insights),
		outDir,
	)
	sb.WriteString("\n")
	sb.WriteString(boxStyle.Render(totals))

	if len(snap.Insights) > 0 {
		sb.WriteString("\n")
		for _, in := range snap.Insights {
			sb.WriteString("\n")
			sb.WriteString(painStyle.Render("! "))
			sb.WriteString(in.Title)
		}
	}
	return sb.String()
}

// statusLine is the single line printed by watch after each run.
func statusLine(snap *report.Snapshot) string {
	m := snap.Report.Meta
	text := fmt.Sprintf("[%s] %d modules, %d files, %d LOC, mean D %.3f, %d insights (%dms)",
		time.Now().Format("15:04:05"), m.Modules, m.Files, snap.Report.Aggregate.Total.LOC,
		snap.Report.MainSequence.MeanDistance, len(snap.Insights), m.DurationMS)
	if len(snap.Insights) > 0 {
		return uselessStyle.Render(text)
	}
	return goodStyle.Render(text)
}

func optInt(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *p)
}

func optFloat(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *p)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
