package modules

import (
	"sort"
	"strings"
	"unicode"

	"github.com/dejo1307/swiftmetrics/internal/facts"
)

// SubModule is a directory-shaped node of a module's file tree.
type SubModule struct {
	Name     string
	Files    []facts.FileFact
	Children []*SubModule

	parent *SubModule
}

func newSubModule(name string, parent *SubModule) *SubModule {
	return &SubModule{Name: name, parent: parent}
}

// Parent returns the enclosing node, or nil for a root.
func (s *SubModule) Parent() *SubModule {
	return s.parent
}

// Depth is the number of ancestors of s.
func (s *SubModule) Depth() int {
	d := 0
	for p := s.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// Child returns the direct child with the given name.
func (s *SubModule) Child(name string) *SubModule {
	for _, c := range s.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Insert descends along dirs, creating missing nodes, and appends f to the
// node reached. It returns that node.
func (s *SubModule) Insert(dirs []string, f facts.FileFact) *SubModule {
	node := s
	for _, d := range dirs {
		if d == "" {
			continue
		}
		child := node.Child(d)
		if child == nil {
			child = newSubModule(d, node)
			node.Children = append(node.Children, child)
		}
		node = child
	}
	node.Files = append(node.Files, f)
	return node
}

// Next returns the node following s in a pre-order enumeration of its tree.
// The enumeration is cyclic: the last node leads back to the root, and a
// lone root is its own successor. Callers stop when they see the start node
// again.
func (s *SubModule) Next() *SubModule {
	if len(s.Children) > 0 {
		return s.Children[0]
	}
	node := s
	for node.parent != nil {
		siblings := node.parent.Children
		for i, sib := range siblings {
			if sib == node && i+1 < len(siblings) {
				return siblings[i+1]
			}
		}
		node = node.parent
	}
	return node
}

// Walk calls fn for every node of the tree rooted at s, in pre-order, s
// first. s must be a root.
func (s *SubModule) Walk(fn func(*SubModule)) {
	node := s
	for {
		fn(node)
		node = node.Next()
		if node == s {
			return
		}
	}
}

// Data sums the files of s and all of its descendants.
func (s *SubModule) Data() AggregateData {
	var data AggregateData
	for _, f := range s.Files {
		data = data.Add(FromFact(f.SourceFact))
	}
	for _, c := range s.Children {
		data = data.Add(c.Data())
	}
	return data
}

// FileCount is the number of files in s and all of its descendants.
func (s *SubModule) FileCount() int {
	n := len(s.Files)
	for _, c := range s.Children {
		n += c.FileCount()
	}
	return n
}

// Module is a logical framework or library: a submodule tree plus the
// number of import statements referencing every other module.
type Module struct {
	Name   string
	IsTest bool
	Root   *SubModule

	imports map[string]int
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{
		Name:    name,
		Root:    newSubModule(name, nil),
		imports: make(map[string]int),
	}
}

// AddImport records one import statement of target. Modules are keyed by
// name, so distinct instances with the same name share a counter.
func (m *Module) AddImport(target *Module) {
	m.imports[target.Name]++
}

// ImportCount returns the number of import statements of the named module.
func (m *Module) ImportCount(name string) int {
	return m.imports[name]
}

// Imports returns a copy of the import counters keyed by module name.
func (m *Module) Imports() map[string]int {
	out := make(map[string]int, len(m.imports))
	for k, v := range m.imports {
		out[k] = v
	}
	return out
}

// ImportNames returns the imported module names, sorted.
func (m *Module) ImportNames() []string {
	names := make([]string, 0, len(m.imports))
	for k := range m.imports {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Data sums the whole submodule tree.
func (m *Module) Data() AggregateData {
	return m.Root.Data()
}

// FileCount is the number of files owned by the module.
func (m *Module) FileCount() int {
	return m.Root.FileCount()
}

// CompactName abbreviates the module name from its capital letters:
// first and last when there are more than three, all of them when there
// are two or three, otherwise the single capital or the first letter.
func (m *Module) CompactName() string {
	var capitals []rune
	for _, r := range m.Name {
		if unicode.IsUpper(r) {
			capitals = append(capitals, r)
		}
	}
	switch {
	case len(capitals) > 3:
		return string([]rune{capitals[0], capitals[len(capitals)-1]})
	case len(capitals) > 0:
		return string(capitals)
	case m.Name == "":
		return ""
	default:
		return string([]rune(m.Name)[:1])
	}
}

// CompactNameDescription pairs the abbreviation with the full name, e.g. "AN = AwesomeName".
func (m *Module) CompactNameDescription() string {
	return m.CompactName() + " = " + m.Name
}

// SharedFile is a file claimed by more than one module. It was scanned once
// and inserted into every owner's tree.
type SharedFile struct {
	Fact   facts.FileFact
	Owners []string
}

// Copies is the number of times the file is counted across module trees.
func (s SharedFile) Copies() int {
	return len(s.Owners)
}

// Dependency is a weighted edge between two modules.
type Dependency struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Count  int    `json:"count"`
}

// Set holds the modules of a run, keyed by name.
type Set struct {
	byName map[string]*Module
	order  []*Module
}

// NewSet creates an empty module set.
func NewSet() *Set {
	return &Set{byName: make(map[string]*Module)}
}

// GetOrCreate returns the named module, creating it on first reference.
func (s *Set) GetOrCreate(name string) *Module {
	if m, ok := s.byName[name]; ok {
		return m
	}
	m := NewModule(name)
	s.byName[name] = m
	s.order = append(s.order, m)
	return m
}

// Get returns the named module.
func (s *Set) Get(name string) (*Module, bool) {
	m, ok := s.byName[name]
	return m, ok
}

// Contains reports whether a module with the given name is in the set.
func (s *Set) Contains(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Len returns the number of modules.
func (s *Set) Len() int {
	return len(s.order)
}

// All returns the modules sorted by name.
func (s *Set) All() []*Module {
	out := make([]*Module, len(s.order))
	copy(out, s.order)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Filter returns the test or non-test modules sorted by name.
func (s *Set) Filter(isTest bool) []*Module {
	var out []*Module
	for _, m := range s.All() {
		if m.IsTest == isTest {
			out = append(out, m)
		}
	}
	return out
}

// Prune drops every module that owns no files and returns the dropped names,
// sorted. These are dependencies outside the scanned tree.
func (s *Set) Prune() []string {
	var dropped []string
	kept := s.order[:0]
	for _, m := range s.order {
		if m.FileCount() == 0 {
			dropped = append(dropped, m.Name)
			delete(s.byName, m.Name)
			continue
		}
		kept = append(kept, m)
	}
	s.order = kept
	sort.Strings(dropped)
	return dropped
}

// Find returns the module whose name matches name case-insensitively.
func (s *Set) Find(name string) (*Module, bool) {
	if m, ok := s.byName[name]; ok {
		return m, true
	}
	for _, m := range s.order {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return nil, false
}
