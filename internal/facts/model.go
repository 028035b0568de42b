package facts

import "strings"

// TestMethodPrefix marks a function as a test case.
const TestMethodPrefix = "test"

// SourceFact is the declaration summary of a single scanned Swift file.
// It is produced once per file and never mutated afterwards.
type SourceFact struct {
	LOC          int      `json:"loc"`           // Non-blank, non-comment lines
	CommentCount int      `json:"noc"`           // Comment lines (single-line and block)
	Imports      []string `json:"imports"`       // Imported module names, one per import statement
	Interfaces   []string `json:"interfaces"`    // Protocol names
	Structs      []string `json:"structs"`       // Struct names
	Classes      []string `json:"classes"`       // Class names
	Functions    []string `json:"functions"`     // Function names
	IsTest       bool     `json:"is_test"`       // Set from the naming resolution of the file
}

// Tests returns the functions that follow the test naming convention.
func (f SourceFact) Tests() []string {
	var tests []string
	for _, fn := range f.Functions {
		if strings.HasPrefix(fn, TestMethodPrefix) {
			tests = append(tests, fn)
		}
	}
	return tests
}

// ConcreteTypes returns the number of structs and classes declared in the file.
func (f SourceFact) ConcreteTypes() int {
	return len(f.Structs) + len(f.Classes)
}

// FileFact binds a SourceFact to the file it was extracted from.
type FileFact struct {
	Path    string   `json:"path"`              // Relative to the scan root, forward slashes
	Modules []string `json:"modules,omitempty"` // Owning modules (more than one for shared files)
	SourceFact
}

// Shared reports whether the file is owned by more than one module.
func (f FileFact) Shared() bool {
	return len(f.Modules) > 1
}

// Insight represents an architectural insight produced by an explainer.
type Insight struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Confidence  float64    `json:"confidence"` // 0.0 - 1.0
	Evidence    []Evidence `json:"evidence"`
	Actions     []string   `json:"suggested_actions,omitempty"`
}

// Evidence links an insight back to concrete modules/files.
type Evidence struct {
	Module string `json:"module,omitempty"`
	File   string `json:"file,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Artifact represents a generated output file.
type Artifact struct {
	Name    string `json:"name"` // e.g. "output.json"
	Content []byte `json:"-"`
	Type    string `json:"type"` // MIME type hint
}
