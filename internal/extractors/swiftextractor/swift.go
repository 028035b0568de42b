package swiftextractor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dejo1307/swiftmetrics/internal/facts"
)

// FileExtension is the extension of the files the extractor understands.
const FileExtension = ".swift"

// SwiftExtractor turns Swift source text into a SourceFact using line-based
// regex matching. It is a lexical heuristic: declarations spanning several
// lines, several declarations on one line and code embedded in string
// literals are not resolved.
type SwiftExtractor struct{}

// New creates a new SwiftExtractor.
func New() *SwiftExtractor {
	return &SwiftExtractor{}
}

func (e *SwiftExtractor) Name() string {
	return "swift"
}

// IsSwiftFile reports whether path has the Swift source extension.
func IsSwiftFile(path string) bool {
	return filepath.Ext(path) == FileExtension
}

// --- Regex patterns ---

var (
	singleCommentRe = regexp.MustCompile(`^//`)
	beginCommentRe  = regexp.MustCompile(`^/\*`)
	endCommentRe    = regexp.MustCompile(`\*/$`)

	// Import statements, including @testable imports and the
	// "import struct Module.Symbol" / "import Module.Submodule" forms.
	// Only the top-level module name is captured, so trailing
	// semicolons and comments fall away.
	importRe = regexp.MustCompile(
		`^(?:@testable\s+)?import\s+` +
			`(?:(?:typealias|struct|class|enum|protocol|let|var|func)\s+)?` +
			`([A-Za-z_]\w*)`)

	// Leading access modifiers, declaration modifiers and attributes.
	modifiersRe = regexp.MustCompile(
		`^(?:(?:@\w+(?:\([^)]*\))?|public|private|fileprivate|internal|open|final|static|` +
			`override|mutating|nonmutating|convenience|required|dynamic|indirect|lazy|nonisolated)` +
			`(?:\([^)]*\))?\s+)+`)

	protocolRe = regexp.MustCompile(`^protocol\s+([^:|{\s]+)`)
	structRe   = regexp.MustCompile(`^struct\s+([^:|{\s]+)`)
	classRe    = regexp.MustCompile(`^class\s+([^:|{\s]+)`)
	funcRe     = regexp.MustCompile(`^(?:class\s+)?func\s+([^:|(\s]+)`)
)

// classMemberKeywords follow "class" when it is used as a member modifier
// ("class func", "class var") rather than to declare a type.
var classMemberKeywords = map[string]bool{
	"func":      true,
	"var":       true,
	"let":       true,
	"subscript": true,
}

// ExtractFile opens and scans a single Swift file.
func (e *SwiftExtractor) ExtractFile(path string) (facts.SourceFact, error) {
	f, err := os.Open(path)
	if err != nil {
		return facts.SourceFact{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	sf, err := e.Extract(f)
	if err != nil {
		return facts.SourceFact{}, fmt.Errorf("scanning %s: %w", path, err)
	}
	return sf, nil
}

// Extract scans Swift source text in a single forward pass.
//
// Comment handling follows a small state machine: a "//" line is a comment;
// a line opening a block comment sets the in-comment state; a line closing a
// block comment ends it and is only counted when the block opened on the
// same line was not already counted. The opening line of a multi-line block
// is counted by both the open and the in-comment rule while the closing line
// is not counted, so a block contributes exactly its line count. A block that
// is never closed swallows the rest of the file.
func (e *SwiftExtractor) Extract(r io.Reader) (facts.SourceFact, error) {
	var (
		sf        facts.SourceFact
		inComment bool
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256*1024), 1024*1024)

	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" {
			continue
		}

		if singleCommentRe.MatchString(trimmed) {
			sf.CommentCount++
			continue
		}

		if beginCommentRe.MatchString(trimmed) {
			inComment = true
			sf.CommentCount++
		}

		if endCommentRe.MatchString(trimmed) {
			if !inComment {
				sf.CommentCount++
			}
			inComment = false
			continue
		}

		if inComment {
			sf.CommentCount++
			continue
		}

		sf.LOC++
		extractDeclarations(trimmed, &sf)
	}

	if err := scanner.Err(); err != nil {
		return facts.SourceFact{}, err
	}
	return sf, nil
}

// extractDeclarations runs every pattern independently against a code line.
// Each pattern contributes at most one name.
func extractDeclarations(line string, sf *facts.SourceFact) {
	if name := ExtractImport(line); name != "" {
		sf.Imports = append(sf.Imports, name)
	}

	decl := stripModifiers(line)
	if name := firstGroup(protocolRe, decl); name != "" {
		sf.Interfaces = append(sf.Interfaces, name)
	}
	if name := firstGroup(structRe, decl); name != "" {
		sf.Structs = append(sf.Structs, name)
	}
	if name := firstGroup(classRe, decl); name != "" && !classMemberKeywords[name] {
		sf.Classes = append(sf.Classes, name)
	}
	if name := firstGroup(funcRe, decl); name != "" {
		sf.Functions = append(sf.Functions, name)
	}
}

// ExtractImport returns the imported module name of an import line, or "".
func ExtractImport(line string) string {
	return firstGroup(importRe, strings.TrimSpace(line))
}

// stripModifiers removes leading modifiers and attributes from a declaration line.
func stripModifiers(line string) string {
	return modifiersRe.ReplaceAllString(line, "")
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}
