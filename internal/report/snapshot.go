package report

import (
	"sort"

	"github.com/dejo1307/swiftmetrics/internal/facts"
	"github.com/dejo1307/swiftmetrics/internal/metrics"
	"github.com/dejo1307/swiftmetrics/internal/modules"
)

// Snapshot is the finished state of a run handed to explainers, renderers
// and the server. Nothing downstream re-derives metrics from raw modules;
// values come from Report.
type Snapshot struct {
	Report       *Report
	Modules      []*modules.Module // sorted by name
	Shared       []modules.SharedFile
	Dependencies []modules.Dependency // non-system edges of non-test modules
	Graph        *modules.Graph       // import graph between non-test modules
	System       metrics.SystemLibraries
	Facts        *facts.Store
	Insights     []facts.Insight
	Artifacts    []facts.Artifact
}

// NewSnapshot builds the report and the derived dependency views.
func NewSnapshot(in Input, store *facts.Store) *Snapshot {
	r := Build(in)

	s := &Snapshot{
		Report: r,
		Shared: in.Shared,
		System: in.System,
		Facts:  store,
	}
	s.Modules = make([]*modules.Module, len(in.Modules))
	copy(s.Modules, in.Modules)
	sort.Slice(s.Modules, func(i, j int) bool { return s.Modules[i].Name < s.Modules[j].Name })
	s.Dependencies = metrics.Dependencies(s.Modules, in.System)
	s.Graph = modules.NewGraph(s.Filter(false))
	return s
}

// Filter returns the test or non-test modules.
func (s *Snapshot) Filter(isTest bool) []*modules.Module {
	var out []*modules.Module
	for _, m := range s.Modules {
		if m.IsTest == isTest {
			out = append(out, m)
		}
	}
	return out
}

// Module returns the named module.
func (s *Snapshot) Module(name string) (*modules.Module, bool) {
	for _, m := range s.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// IsInternal reports whether name is one of the analyzed modules.
func (s *Snapshot) IsInternal(name string) bool {
	_, ok := s.Module(name)
	return ok
}
