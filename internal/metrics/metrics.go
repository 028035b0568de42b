// Package metrics computes coupling and size metrics over an assembled
// module set. All functions are pure: they read module state and never
// modify it.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dejo1307/swiftmetrics/internal/modules"
)

// Zone thresholds. The zone tests are inclusive; the narrative thresholds
// are strict.
const (
	ZoneBoundary  = 0.5
	LowThreshold  = 0.2
	HighThreshold = 0.8

	UnderCommentedPOC = 20.0
	OverCommentedPOC  = 40.0
)

// FanOut is the number of import statements in m referencing other modules.
func FanOut(m *modules.Module) int {
	n := 0
	for _, c := range m.Imports() {
		n += c
	}
	return n
}

// FanIn is the number of import statements referencing m across every other
// non-test module in all.
func FanIn(m *modules.Module, all []*modules.Module) int {
	n := 0
	for _, other := range all {
		if other.Name == m.Name || other.IsTest {
			continue
		}
		n += other.ImportCount(m.Name)
	}
	return n
}

// Instability is I = fan-out / (fan-in + fan-out): 0 is maximally stable and
// 1 maximally unstable. An isolated module has instability 0.
func Instability(m *modules.Module, all []*modules.Module) float64 {
	fanIn, fanOut := FanIn(m, all), FanOut(m)
	if fanIn+fanOut == 0 {
		return 0
	}
	return float64(fanOut) / float64(fanIn+fanOut)
}

// Abstractness is A = interfaces / concrete types, capped at 1 so that the
// distance stays within [0, 1]. A module without concrete types has
// abstractness 0.
func Abstractness(m *modules.Module) float64 {
	data := m.Data()
	if data.ConcreteTypes == 0 {
		return 0
	}
	return math.Min(1, float64(data.Interfaces)/float64(data.ConcreteTypes))
}

// Distance is D = |A + I - 1|, the distance from the main sequence.
func Distance(m *modules.Module, all []*modules.Module) float64 {
	return math.Abs(Abstractness(m) + Instability(m, all) - 1)
}

// InternalDependencies are the imports of m that resolve to modules in all,
// excluding system libraries, sorted by name.
func InternalDependencies(m *modules.Module, all []*modules.Module, sys SystemLibraries) []modules.Dependency {
	return filteredImports(m, all, sys, true)
}

// ExternalDependencies are the imports of m outside the analyzed tree,
// excluding system libraries, sorted by name.
func ExternalDependencies(m *modules.Module, all []*modules.Module, sys SystemLibraries) []modules.Dependency {
	return filteredImports(m, all, sys, false)
}

func filteredImports(m *modules.Module, all []*modules.Module, sys SystemLibraries, internal bool) []modules.Dependency {
	present := make(map[string]bool, len(all))
	for _, o := range all {
		present[o.Name] = true
	}
	var deps []modules.Dependency
	for _, name := range m.ImportNames() {
		if sys.Contains(name) || present[name] != internal {
			continue
		}
		deps = append(deps, modules.Dependency{Source: m.Name, Target: name, Count: m.ImportCount(name)})
	}
	return deps
}

// TotalDependencies lists every non-system import of m as "Name(count)",
// sorted by name.
func TotalDependencies(m *modules.Module, sys SystemLibraries) []string {
	deps := []string{}
	for _, name := range m.ImportNames() {
		if sys.Contains(name) {
			continue
		}
		deps = append(deps, fmt.Sprintf("%s(%d)", name, m.ImportCount(name)))
	}
	return deps
}

// Dependencies returns every non-system edge of the non-test modules in all,
// ordered by source then target.
func Dependencies(all []*modules.Module, sys SystemLibraries) []modules.Dependency {
	sorted := make([]*modules.Module, len(all))
	copy(sorted, all)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var deps []modules.Dependency
	for _, m := range sorted {
		if m.IsTest {
			continue
		}
		for _, name := range m.ImportNames() {
			if sys.Contains(name) {
				continue
			}
			deps = append(deps, modules.Dependency{Source: m.Name, Target: name, Count: m.ImportCount(name)})
		}
	}
	return deps
}

// ZoneKind classifies a module on the abstractness/instability plane.
type ZoneKind int

const (
	ZoneNone ZoneKind = iota
	ZonePain
	ZoneUselessness
)

func (z ZoneKind) String() string {
	switch z {
	case ZonePain:
		return "Zone of Pain"
	case ZoneUselessness:
		return "Zone of Uselessness"
	default:
		return "none"
	}
}

// Classify places (instability, abstractness) in a zone. Both zone tests are
// inclusive, so (0.5, 0.5) is in the Zone of Pain.
func Classify(instability, abstractness float64) ZoneKind {
	switch {
	case instability <= ZoneBoundary && abstractness <= ZoneBoundary:
		return ZonePain
	case instability >= ZoneBoundary && abstractness >= ZoneBoundary:
		return ZoneUselessness
	default:
		return ZoneNone
	}
}

// Zone returns the qualitative analysis of a module's instability and
// abstractness.
func Zone(instability, abstractness float64) string {
	switch Classify(instability, abstractness) {
	case ZonePain:
		return "Zone of Pain. Highly stable and concrete component - rigid, hard to extend (not abstract). " +
			"This component should not be volatile (e.g. a stable foundation library such as Strings)."
	case ZoneUselessness:
		return "Zone of Uselessness. Maximally abstract with few or no dependents - potentially useless. " +
			"This component is likely a leftover that should be removed."
	}

	var b strings.Builder
	if instability < LowThreshold {
		b.WriteString("Component is highly stable (hard to change, responsible and independent). ")
	} else if instability > HighThreshold {
		b.WriteString("Component is highly unstable (lack of dependents, easy to change, irresponsible). ")
	}
	if abstractness < LowThreshold {
		b.WriteString("Component has low abstraction, few interfaces. ")
	} else if abstractness > HighThreshold {
		b.WriteString("Component has high abstraction, few concrete types. ")
	}
	return b.String()
}

// PercentageOfComments is POC = 100 * noc / (noc + loc), 0 when both are 0.
func PercentageOfComments(noc, loc int) float64 {
	if noc+loc == 0 {
		return 0
	}
	return 100 * float64(noc) / float64(noc+loc)
}

// CommentAnalysis describes a POC value.
func CommentAnalysis(poc float64) string {
	if poc <= UnderCommentedPOC {
		return "The code is under commented. "
	}
	if poc >= OverCommentedPOC {
		return "The code is over commented. "
	}
	return ""
}

// Analysis holds the coupling metrics of a single non-test module.
type Analysis struct {
	FanIn        int
	FanOut       int
	Instability  float64
	Abstractness float64
	Distance     float64
	Zone         ZoneKind
	Narrative    string
}

// Analyze computes every coupling metric of m against all.
func Analyze(m *modules.Module, all []*modules.Module) Analysis {
	i := Instability(m, all)
	a := Abstractness(m)
	return Analysis{
		FanIn:        FanIn(m, all),
		FanOut:       FanOut(m),
		Instability:  i,
		Abstractness: a,
		Distance:     math.Abs(a + i - 1),
		Zone:         Classify(i, a),
		Narrative:    Zone(i, a),
	}
}
