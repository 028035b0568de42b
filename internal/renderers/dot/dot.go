package dot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dejo1307/swiftmetrics/internal/facts"
	"github.com/dejo1307/swiftmetrics/internal/report"
)

// FileName is the artifact written by the DOT renderer.
const FileName = "dependencies.dot"

const (
	internalColor = "green"
	externalColor = "red"
)

// DOTRenderer writes the module dependency graph in Graphviz DOT syntax.
// Edges to analyzed modules are green, edges leaving the scanned tree red.
type DOTRenderer struct{}

// New creates a new DOTRenderer.
func New() *DOTRenderer {
	return &DOTRenderer{}
}

func (r *DOTRenderer) Name() string {
	return "dot"
}

// Render produces dependencies.dot.
func (r *DOTRenderer) Render(ctx context.Context, snapshot *report.Snapshot) ([]facts.Artifact, error) {
	var sb strings.Builder
	sb.WriteString("digraph dependencies {\n")
	sb.WriteString("    rankdir=LR;\n")
	sb.WriteString("    node [shape=box, fontname=\"Helvetica\"];\n")

	external := map[string]bool{}
	for _, m := range snapshot.Filter(false) {
		sb.WriteString(fmt.Sprintf("    %s [label=%s];\n", quote(m.Name), quote(m.CompactName())))
	}
	for _, d := range snapshot.Dependencies {
		if !snapshot.IsInternal(d.Target) {
			external[d.Target] = true
		}
	}
	names := make([]string, 0, len(external))
	for name := range external {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("    %s [style=dashed];\n", quote(name)))
	}

	for _, d := range snapshot.Dependencies {
		color := internalColor
		if external[d.Target] {
			color = externalColor
		}
		sb.WriteString(fmt.Sprintf("    %s -> %s [label=\"%d\", color=%s];\n",
			quote(d.Source), quote(d.Target), d.Count, color))
	}
	sb.WriteString("}\n")

	return []facts.Artifact{
		{
			Name:    FileName,
			Content: []byte(sb.String()),
			Type:    "text/vnd.graphviz",
		},
	}, nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
