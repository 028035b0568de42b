package naming

import (
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// AppTargetName owns the files that sit directly in the scan root.
	AppTargetName = "AppTarget"
	// TestSuffix is appended to path-derived names of test modules.
	TestSuffix = "_Test"
	// DefaultOverrideFile is looked up in every top-level directory.
	DefaultOverrideFile = "scm.json"
)

// DefaultTestPaths are the directory substrings marking test files.
var DefaultTestPaths = []string{"Test", "Tests"}

// Resolution is the outcome of naming a single file.
type Resolution struct {
	Names  []string // Owning modules; more than one for shared files
	IsTest bool
	Root   string   // Directory (relative to the scan root) mapped to the module's submodule root
	Dirs   []string // Directory segments between Root and the file
}

// Shared reports whether the file is owned by more than one module.
func (r Resolution) Shared() bool {
	return len(r.Names) > 1
}

// Resolver determines the owning modules of source files. Override files are
// consulted first; the directory convention is the fallback.
type Resolver struct {
	root         string
	testPaths    []string
	overrideFile string

	mu        sync.Mutex
	overrides map[string]*Override // first path segment -> override (nil when absent)
}

// NewResolver creates a resolver for files under root. Empty testPaths and
// overrideFile fall back to the defaults.
func NewResolver(root string, testPaths []string, overrideFile string) *Resolver {
	if len(testPaths) == 0 {
		testPaths = DefaultTestPaths
	}
	if overrideFile == "" {
		overrideFile = DefaultOverrideFile
	}
	return &Resolver{
		root:         root,
		testPaths:    testPaths,
		overrideFile: overrideFile,
		overrides:    make(map[string]*Override),
	}
}

// Resolve names the file at relPath (relative to the scan root, any separator).
// It fails only when an override file is malformed.
func (r *Resolver) Resolve(relPath string) (Resolution, error) {
	relPath = filepath.ToSlash(relPath)
	segments := strings.Split(relPath, "/")

	if len(segments) > 1 {
		ov, err := r.override(segments[0])
		if err != nil {
			return Resolution{}, err
		}
		if ov != nil {
			if res, ok := resolveOverride(ov, relPath); ok {
				return res, nil
			}
			log.Printf("[naming] warning: %s matches no rule in %s/%s, using the directory name",
				relPath, segments[0], r.overrideFile)
		}
	}

	return r.resolveConvention(relPath, segments), nil
}

func (r *Resolver) resolveConvention(relPath string, segments []string) Resolution {
	isTest := r.isTestDir(path.Dir(relPath))

	name := AppTargetName
	res := Resolution{IsTest: isTest}
	if len(segments) > 1 {
		name = segments[0]
		res.Root = segments[0]
		res.Dirs = segments[1 : len(segments)-1]
	}
	if isTest {
		name += TestSuffix
	}
	res.Names = []string{name}
	return res
}

func (r *Resolver) isTestDir(dir string) bool {
	if dir == "." {
		return false
	}
	for _, tp := range r.testPaths {
		if tp != "" && strings.Contains(dir, tp) {
			return true
		}
	}
	return false
}

// override returns the cached override for a top-level directory, loading it
// on first use.
func (r *Resolver) override(first string) (*Override, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ov, ok := r.overrides[first]; ok {
		return ov, nil
	}
	ov, err := LoadOverride(filepath.Join(r.root, first, r.overrideFile))
	if err != nil {
		return nil, err
	}
	if ov != nil {
		log.Printf("[naming] using override %s/%s (%d libraries, %d shared paths)",
			first, r.overrideFile, len(ov.Libraries), len(ov.Shared))
	}
	r.overrides[first] = ov
	return ov, nil
}

// resolveOverride applies shared entries first, then libraries. The first
// matching entry wins.
func resolveOverride(ov *Override, relPath string) (Resolution, bool) {
	for _, sh := range ov.Shared {
		if !strings.Contains(relPath, sh.Path) {
			continue
		}
		names := ov.LibraryNames(sh.IsTest)
		if len(names) == 0 {
			continue
		}
		root, dirs := splitAtMatch(relPath, sh.Path)
		return Resolution{Names: names, IsTest: sh.IsTest, Root: root, Dirs: dirs}, true
	}
	for _, lib := range ov.Libraries {
		if !strings.Contains(relPath, lib.Path) {
			continue
		}
		root, dirs := splitAtMatch(relPath, lib.Path)
		return Resolution{Names: []string{lib.Name}, IsTest: lib.IsTest, Root: root, Dirs: dirs}, true
	}
	return Resolution{}, false
}

// splitAtMatch splits the directory of relPath where the matched substring
// ends, extended to the next path boundary.
func splitAtMatch(relPath, match string) (string, []string) {
	dir := path.Dir(relPath)
	if dir == "." {
		return "", nil
	}

	end := strings.Index(relPath, match) + len(match)
	end = min(end, len(dir))
	if end < len(dir) && dir[end-1] != '/' && dir[end] != '/' {
		if i := strings.IndexByte(dir[end:], '/'); i >= 0 {
			end += i
		} else {
			end = len(dir)
		}
	}

	root := strings.TrimSuffix(dir[:end], "/")
	rest := strings.Trim(dir[end:], "/")
	if rest == "" {
		return root, nil
	}
	return root, strings.Split(rest, "/")
}
