package report

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dejo1307/swiftmetrics/internal/metrics"
	"github.com/dejo1307/swiftmetrics/internal/modules"
)

// Report is the serializable result of a run.
type Report struct {
	Meta         Meta          `json:"meta"`
	NonTest      []ModuleEntry `json:"non-test-frameworks"`
	Tests        []ModuleEntry `json:"tests-frameworks"`
	Aggregate    Aggregates    `json:"aggregate"`
	MainSequence MainSequence  `json:"main_sequence"`
}

// Meta describes the run that produced a report.
type Meta struct {
	RunID       string    `json:"run_id,omitempty"`
	Root        string    `json:"root,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	DurationMS  int64     `json:"duration_ms"`
	Files       int       `json:"files"`
	Modules     int       `json:"modules"`
	TestModules int       `json:"test_modules"`
	SharedFiles int       `json:"shared_files"`
}

// Aggregate is AggregateData plus its percentage of comments.
type Aggregate struct {
	modules.AggregateData
	POC float64 `json:"poc"`
}

// NewAggregate rounds the POC of d for reporting.
func NewAggregate(d modules.AggregateData) Aggregate {
	return Aggregate{AggregateData: d, POC: Round(metrics.PercentageOfComments(d.CommentCount, d.LOC))}
}

// Aggregates are the global totals. Shared holds one copy of every shared
// file and is not part of Total.
type Aggregates struct {
	NonTest Aggregate `json:"non-test-frameworks"`
	Tests   Aggregate `json:"tests-frameworks"`
	Shared  Aggregate `json:"shared"`
	Total   Aggregate `json:"total"`
}

// ModuleEntry is the analysis of a single module. It serializes as
// {"<name>": {...}}. The coupling fields are only set for non-test modules.
type ModuleEntry struct {
	Name   string
	IsTest bool
	Body   ModuleBody
}

// ModuleBody holds the reported values of a module.
type ModuleBody struct {
	LOC          int            `json:"loc"`
	NOC          int            `json:"noc"`
	POC          float64        `json:"poc"`
	NA           int            `json:"n_a"`
	NC           int            `json:"n_c"`
	NOM          int            `json:"nom"`
	NOT          int            `json:"not"`
	NOI          int            `json:"noi"`
	FanIn        *int           `json:"fan_in,omitempty"`
	FanOut       *int           `json:"fan_out,omitempty"`
	I            *float64       `json:"i,omitempty"`
	A            *float64       `json:"a,omitempty"`
	D3           *float64       `json:"d_3,omitempty"`
	Analysis     string         `json:"analysis"`
	Dependencies []string       `json:"dependencies"`
	Submodules   SubmoduleEntry `json:"submodules"`
}

func (e ModuleEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]ModuleBody{e.Name: e.Body})
}

func (e *ModuleEntry) UnmarshalJSON(data []byte) error {
	var m map[string]ModuleBody
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("module entry must have exactly one key, got %d", len(m))
	}
	for name, body := range m {
		e.Name = name
		e.Body = body
		e.IsTest = body.FanIn == nil
	}
	return nil
}

// SubmoduleEntry is one node of a module's directory tree.
type SubmoduleEntry struct {
	Name       string            `json:"name"`
	Files      int               `json:"n_of_files"`
	Metrics    Aggregate         `json:"metrics"`
	Submodules []*SubmoduleEntry `json:"submodules"`
}

// MainSequence summarizes the distance from the main sequence across the
// non-test modules.
type MainSequence struct {
	MeanDistance   float64  `json:"mean_distance"`
	StdDevDistance float64  `json:"stddev_distance"`
	P90Distance    float64  `json:"p90_distance"`
	Furthest       string   `json:"furthest,omitempty"`
	ZoneOfPain     []string `json:"zone_of_pain"`
	ZoneOfUseless  []string `json:"zone_of_uselessness"`
}

// Input is everything the report is built from.
type Input struct {
	Modules []*modules.Module // after pruning
	Shared  []modules.SharedFile
	System  metrics.SystemLibraries
}

// Build assembles the report. It does not modify the modules.
func Build(in Input) *Report {
	r := &Report{NonTest: []ModuleEntry{}, Tests: []ModuleEntry{}}

	sorted := make([]*modules.Module, len(in.Modules))
	copy(sorted, in.Modules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var nonTest, tests, shared modules.AggregateData
	for _, m := range sorted {
		entry := buildEntry(m, in.Modules, in.System)
		if m.IsTest {
			r.Tests = append(r.Tests, entry)
			tests = tests.Add(m.Data())
		} else {
			r.NonTest = append(r.NonTest, entry)
			nonTest = nonTest.Add(m.Data())
		}
	}

	for _, sf := range in.Shared {
		if sf.Copies() < 2 {
			continue
		}
		data := modules.FromFact(sf.Fact.SourceFact)
		extra := data.Times(sf.Copies() - 1)
		shared = shared.Add(data)
		if sf.Fact.IsTest {
			tests = tests.Sub(extra)
		} else {
			nonTest = nonTest.Sub(extra)
		}
	}

	r.Aggregate = Aggregates{
		NonTest: NewAggregate(nonTest),
		Tests:   NewAggregate(tests),
		Shared:  NewAggregate(shared),
		Total:   NewAggregate(nonTest.Add(tests)),
	}
	r.MainSequence = mainSequence(sorted, in.Modules)

	r.Meta.Modules = len(r.NonTest)
	r.Meta.TestModules = len(r.Tests)
	r.Meta.SharedFiles = len(in.Shared)
	return r
}

func buildEntry(m *modules.Module, all []*modules.Module, sys metrics.SystemLibraries) ModuleEntry {
	data := m.Data()
	poc := metrics.PercentageOfComments(data.CommentCount, data.LOC)

	body := ModuleBody{
		LOC:          data.LOC,
		NOC:          data.CommentCount,
		POC:          Round(poc),
		NA:           data.Interfaces,
		NC:           data.ConcreteTypes,
		NOM:          data.Methods,
		NOT:          data.Tests,
		NOI:          data.Imports,
		Analysis:     metrics.CommentAnalysis(poc),
		Dependencies: metrics.TotalDependencies(m, sys),
		Submodules:   SubmoduleTree(m.Root),
	}

	if !m.IsTest {
		an := metrics.Analyze(m, all)
		i, a, d := Round(an.Instability), Round(an.Abstractness), Round(an.Distance)
		fanIn, fanOut := an.FanIn, an.FanOut
		body.FanIn = &fanIn
		body.FanOut = &fanOut
		body.I = &i
		body.A = &a
		body.D3 = &d
		body.Analysis += an.Narrative
	}

	return ModuleEntry{Name: m.Name, IsTest: m.IsTest, Body: body}
}

// SubmoduleTree converts a submodule tree into nested entries. Nodes are
// visited through the cyclic pre-order successor, so no recursion is needed.
func SubmoduleTree(root *modules.SubModule) SubmoduleEntry {
	entries := make(map[*modules.SubModule]*SubmoduleEntry)
	root.Walk(func(s *modules.SubModule) {
		e := &SubmoduleEntry{
			Name:       s.Name,
			Files:      s.FileCount(),
			Metrics:    NewAggregate(s.Data()),
			Submodules: []*SubmoduleEntry{},
		}
		entries[s] = e
		if p := s.Parent(); p != nil {
			parent := entries[p]
			parent.Submodules = append(parent.Submodules, e)
		}
	})
	return *entries[root]
}

func mainSequence(sorted, all []*modules.Module) MainSequence {
	ms := MainSequence{ZoneOfPain: []string{}, ZoneOfUseless: []string{}}

	var distances []float64
	furthest := -1.0
	for _, m := range sorted {
		if m.IsTest {
			continue
		}
		an := metrics.Analyze(m, all)
		distances = append(distances, an.Distance)
		if an.Distance > furthest {
			furthest = an.Distance
			ms.Furthest = m.Name
		}
		switch an.Zone {
		case metrics.ZonePain:
			ms.ZoneOfPain = append(ms.ZoneOfPain, m.Name)
		case metrics.ZoneUselessness:
			ms.ZoneOfUseless = append(ms.ZoneOfUseless, m.Name)
		}
	}

	mean, std := MeanStdDev(distances)
	ms.MeanDistance = Round(mean)
	ms.StdDevDistance = Round(std)
	ms.P90Distance = Round(Quantile(0.9, distances))
	return ms
}

// Module returns the entry with the given name.
func (r *Report) Module(name string) (ModuleEntry, bool) {
	for _, group := range [][]ModuleEntry{r.NonTest, r.Tests} {
		for _, e := range group {
			if e.Name == name {
				return e, true
			}
		}
	}
	return ModuleEntry{}, false
}

// Round rounds to three decimals.
func Round(x float64) float64 {
	return math.Round(x*1000) / 1000
}
