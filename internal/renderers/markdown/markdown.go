package markdown

import (
	"context"
	"fmt"
	"strings"

	"github.com/dejo1307/swiftmetrics/internal/facts"
	"github.com/dejo1307/swiftmetrics/internal/modules"
	"github.com/dejo1307/swiftmetrics/internal/report"
)

// FileName is the artifact written by the markdown renderer.
const FileName = "report.md"

// DefaultMaxTokens is the budget used when none is configured.
const DefaultMaxTokens = 16000

// MarkdownRenderer produces a compact markdown summary of the report.
type MarkdownRenderer struct {
	maxTokens int
}

// New creates a new MarkdownRenderer with the given token budget.
func New(maxTokens int) *MarkdownRenderer {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &MarkdownRenderer{maxTokens: maxTokens}
}

func (r *MarkdownRenderer) Name() string {
	return "markdown"
}

// section holds a rendered section with its display name.
type section struct {
	name    string
	content string
}

// Render produces the report.md artifact. Sections are ordered by priority;
// lower-priority sections are omitted first when the token budget is tight.
func (r *MarkdownRenderer) Render(ctx context.Context, snapshot *report.Snapshot) ([]facts.Artifact, error) {
	if snapshot.Report == nil {
		return nil, fmt.Errorf("snapshot has no report")
	}

	sections := []section{
		{"Totals", r.renderTotals(snapshot)},
		{"Modules", r.renderModules(snapshot)},
		{"Main Sequence", r.renderMainSequence(snapshot)},
		{"Risk Zones", r.renderRiskZones(snapshot)},
		{"Test Modules", r.renderTestModules(snapshot)},
		{"Submodules", r.renderSubmodules(snapshot)},
		{"Abbreviations", r.renderAbbreviations(snapshot)},
		{"Meta", r.renderMeta(snapshot)},
	}

	header := "# Swift Module Metrics\n\n"
	maxChars := r.maxTokens * 4 // rough estimate: 1 token ~= 4 chars
	remaining := maxChars - len(header)

	var sb strings.Builder
	sb.WriteString(header)

	for i, sec := range sections {
		if sec.content == "" {
			continue
		}
		if len(sec.content) <= remaining {
			sb.WriteString(sec.content)
			remaining -= len(sec.content)
			continue
		}
		if remaining > 200 {
			// Partially include this section
			sb.WriteString(sec.content[:remaining-100])
			sb.WriteString(fmt.Sprintf("\n\n---\n*[Truncated in: %s]*\n", sec.name))
			break
		}
		var omitted []string
		for _, s := range sections[i:] {
			if s.content != "" {
				omitted = append(omitted, s.name)
			}
		}
		sb.WriteString(fmt.Sprintf("\n\n---\n*[Omitted: %s]*\n", strings.Join(omitted, ", ")))
		break
	}

	return []facts.Artifact{
		{
			Name:    FileName,
			Content: []byte(sb.String()),
			Type:    "text/markdown",
		},
	}, nil
}

func (r *MarkdownRenderer) renderTotals(snapshot *report.Snapshot) string {
	agg := snapshot.Report.Aggregate

	var sb strings.Builder
	sb.WriteString("## Totals\n\n")
	sb.WriteString("| Bucket | LOC | NOC | POC | Protocols | Types | Methods | Tests | Imports |\n")
	sb.WriteString("|--------|-----|-----|-----|-----------|-------|---------|-------|---------|\n")
	rows := []struct {
		name string
		a    report.Aggregate
	}{
		{"non-test", agg.NonTest},
		{"tests", agg.Tests},
		{"shared", agg.Shared},
		{"total", agg.Total},
	}
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.1f%% | %d | %d | %d | %d | %d |\n",
			row.name, row.a.LOC, row.a.CommentCount, row.a.POC, row.a.Interfaces,
			row.a.ConcreteTypes, row.a.Methods, row.a.Tests, row.a.Imports))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (r *MarkdownRenderer) renderModules(snapshot *report.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("## Modules\n\n")

	if len(snapshot.Report.NonTest) == 0 {
		sb.WriteString("_No modules detected._\n\n")
		return sb.String()
	}

	sb.WriteString("| Module | LOC | POC | Fan-in | Fan-out | I | A | D | Dependencies |\n")
	sb.WriteString("|--------|-----|-----|--------|---------|---|---|---|--------------|\n")
	for _, e := range snapshot.Report.NonTest {
		b := e.Body
		deps := "-"
		if len(b.Dependencies) > 0 {
			deps = strings.Join(b.Dependencies, ", ")
		}
		sb.WriteString(fmt.Sprintf("| `%s` | %d | %.1f%% | %d | %d | %.2f | %.2f | %.2f | %s |\n",
			e.Name, b.LOC, b.POC, derefInt(b.FanIn), derefInt(b.FanOut),
			deref(b.I), deref(b.A), deref(b.D3), deps))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (r *MarkdownRenderer) renderMainSequence(snapshot *report.Snapshot) string {
	ms := snapshot.Report.MainSequence
	if len(snapshot.Report.NonTest) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Main Sequence\n\n")
	sb.WriteString(fmt.Sprintf("- Mean distance: %.3f (std-dev %.3f, p90 %.3f)\n",
		ms.MeanDistance, ms.StdDevDistance, ms.P90Distance))
	if ms.Furthest != "" {
		sb.WriteString(fmt.Sprintf("- Furthest module: `%s`\n", ms.Furthest))
	}
	if len(ms.ZoneOfPain) > 0 {
		sb.WriteString(fmt.Sprintf("- Zone of Pain: %s\n", codeList(ms.ZoneOfPain)))
	}
	if len(ms.ZoneOfUseless) > 0 {
		sb.WriteString(fmt.Sprintf("- Zone of Uselessness: %s\n", codeList(ms.ZoneOfUseless)))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (r *MarkdownRenderer) renderRiskZones(snapshot *report.Snapshot) string {
	if len(snapshot.Insights) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Risk Zones\n\n")
	for _, insight := range snapshot.Insights {
		sb.WriteString(fmt.Sprintf("- **%s** (confidence: %.0f%%): %s\n",
			insight.Title, insight.Confidence*100, insight.Description))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (r *MarkdownRenderer) renderTestModules(snapshot *report.Snapshot) string {
	if len(snapshot.Report.Tests) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Test Modules\n\n")
	sb.WriteString("| Module | LOC | POC | Tests |\n")
	sb.WriteString("|--------|-----|-----|-------|\n")
	for _, e := range snapshot.Report.Tests {
		sb.WriteString(fmt.Sprintf("| `%s` | %d | %.1f%% | %d |\n", e.Name, e.Body.LOC, e.Body.POC, e.Body.NOT))
	}
	sb.WriteString("\n")
	return sb.String()
}

// renderSubmodules lists every non-test module's submodule tree, walked
// through Next so deep trees never recurse.
func (r *MarkdownRenderer) renderSubmodules(snapshot *report.Snapshot) string {
	mods := snapshot.Filter(false)
	if len(mods) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Submodules\n\n")
	for _, m := range mods {
		m.Root.Walk(func(s *modules.SubModule) {
			data := s.Data()
			sb.WriteString(fmt.Sprintf("%s- %s (%d files, %d loc)\n",
				strings.Repeat("  ", s.Depth()), s.Name, s.FileCount(), data.LOC))
		})
	}
	sb.WriteString("\n")
	return sb.String()
}

func (r *MarkdownRenderer) renderAbbreviations(snapshot *report.Snapshot) string {
	mods := snapshot.Filter(false)
	if len(mods) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Abbreviations\n\n")
	for _, m := range mods {
		sb.WriteString("- " + m.CompactNameDescription() + "\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

func (r *MarkdownRenderer) renderMeta(snapshot *report.Snapshot) string {
	meta := snapshot.Report.Meta
	var sb strings.Builder
	sb.WriteString("---\n\n")
	sb.WriteString(fmt.Sprintf("*Generated at %s in %dms. %d files, %d modules, %d test modules, %d shared files, %d insights.*\n",
		meta.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"), meta.DurationMS,
		meta.Files, meta.Modules, meta.TestModules, meta.SharedFiles, len(snapshot.Insights)))
	return sb.String()
}

func codeList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "`" + n + "`"
	}
	return strings.Join(quoted, ", ")
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
