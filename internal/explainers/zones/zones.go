package zones

import (
	"context"
	"fmt"

	"github.com/dejo1307/swiftmetrics/internal/facts"
	"github.com/dejo1307/swiftmetrics/internal/metrics"
	"github.com/dejo1307/swiftmetrics/internal/report"
)

// ZoneExplainer flags non-test modules that sit in the Zone of Pain or the
// Zone of Uselessness of the instability/abstractness plane.
type ZoneExplainer struct{}

// New creates a new ZoneExplainer.
func New() *ZoneExplainer {
	return &ZoneExplainer{}
}

func (e *ZoneExplainer) Name() string {
	return "zones"
}

// Explain emits one insight per zone that has members.
func (e *ZoneExplainer) Explain(ctx context.Context, snapshot *report.Snapshot) ([]facts.Insight, error) {
	byZone := map[metrics.ZoneKind][]facts.Evidence{}

	for _, entry := range snapshot.Report.NonTest {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := entry.Body
		if b.I == nil || b.A == nil || b.D3 == nil {
			continue
		}
		zone := metrics.Classify(*b.I, *b.A)
		if zone == metrics.ZoneNone {
			continue
		}
		byZone[zone] = append(byZone[zone], facts.Evidence{
			Module: entry.Name,
			Detail: fmt.Sprintf("I=%.3f A=%.3f D=%.3f fan-in=%d", *b.I, *b.A, *b.D3, derefInt(b.FanIn)),
		})
	}

	var insights []facts.Insight
	if ev := byZone[metrics.ZonePain]; len(ev) > 0 {
		insights = append(insights, facts.Insight{
			Title:       fmt.Sprintf("%d modules in the Zone of Pain", len(ev)),
			Description: "These modules are stable and concrete: many modules depend on them, yet they expose few protocols. Every change ripples to their dependents.",
			Confidence:  1.0,
			Evidence:    ev,
			Actions: []string{
				"Introduce protocols for the types dependents rely on",
				"Keep these modules free of volatile code",
			},
		})
	}
	if ev := byZone[metrics.ZoneUselessness]; len(ev) > 0 {
		insights = append(insights, facts.Insight{
			Title:       fmt.Sprintf("%d modules in the Zone of Uselessness", len(ev)),
			Description: "These modules are abstract and unstable: they declare protocols that few modules use.",
			Confidence:  1.0,
			Evidence:    ev,
			Actions: []string{
				"Remove protocols without conformances or callers",
				"Merge the module into its only dependent",
			},
		})
	}

	return insights, nil
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
