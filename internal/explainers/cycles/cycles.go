package cycles

import (
	"context"
	"fmt"

	"github.com/dejo1307/swiftmetrics/internal/facts"
	"github.com/dejo1307/swiftmetrics/internal/modules"
	"github.com/dejo1307/swiftmetrics/internal/report"
)

// CycleExplainer detects cyclic imports between non-test modules using
// Tarjan's SCC algorithm.
type CycleExplainer struct{}

// New creates a new CycleExplainer.
func New() *CycleExplainer {
	return &CycleExplainer{}
}

func (e *CycleExplainer) Name() string {
	return "cycles"
}

// Explain reports one insight per strongly connected component of the
// module import graph.
func (e *CycleExplainer) Explain(ctx context.Context, snapshot *report.Snapshot) ([]facts.Insight, error) {
	var insights []facts.Insight
	for _, scc := range snapshot.Graph.Cycles() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		evidence := make([]facts.Evidence, 0, len(scc))
		for i, name := range scc {
			next := scc[(i+1)%len(scc)]
			detail := fmt.Sprintf("module %q is part of the cycle", name)
			if m, ok := snapshot.Module(name); ok {
				if n := m.ImportCount(next); n > 0 {
					detail = fmt.Sprintf("module %q imports %q (%d times)", name, next, n)
				}
			}
			evidence = append(evidence, facts.Evidence{Module: name, Detail: detail})
		}

		insights = append(insights, facts.Insight{
			Title:       fmt.Sprintf("Cyclic dependency detected (%d modules)", len(scc)),
			Description: fmt.Sprintf("The following modules form a dependency cycle: %s. Neither side can be built, tested or reused without the other.", modules.FormatCycle(scc)),
			Confidence:  1.0, // Deterministic
			Evidence:    evidence,
			Actions: []string{
				"Introduce a protocol in the lower module to break the cycle",
				"Extract shared types into a separate framework",
				"Consider merging tightly coupled modules",
			},
		})
	}

	return insights, nil
}
