package facts

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// Store provides in-memory storage and querying of file facts with JSONL persistence.
type Store struct {
	mu    sync.RWMutex
	files []FileFact

	// Indexes for fast lookups
	byPath   map[string]int   // path -> index into files
	byModule map[string][]int // module name -> indices into files
}

// NewStore creates an empty fact store.
func NewStore() *Store {
	return &Store{
		byPath:   make(map[string]int),
		byModule: make(map[string][]int),
	}
}

// Add adds file facts to the store. A fact whose path is already present
// replaces the stored one.
func (s *Store) Add(ff ...FileFact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range ff {
		if idx, ok := s.byPath[f.Path]; ok {
			for _, m := range s.files[idx].Modules {
				s.removeFromIndex(s.byModule, m, idx)
			}
			s.files[idx] = f
			for _, m := range f.Modules {
				s.byModule[m] = append(s.byModule[m], idx)
			}
			continue
		}
		idx := len(s.files)
		s.files = append(s.files, f)
		s.byPath[f.Path] = idx
		for _, m := range f.Modules {
			s.byModule[m] = append(s.byModule[m], idx)
		}
	}
}

// All returns all file facts in insertion order.
func (s *Store) All() []FileFact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]FileFact, len(s.files))
	copy(result, s.files)
	return result
}

// Count returns the number of file facts in the store.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// ByPath returns the fact for the given relative path.
func (s *Store) ByPath(path string) (FileFact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byPath[path]
	if !ok {
		return FileFact{}, false
	}
	return s.files[idx], true
}

// ByModule returns all facts owned by the given module.
func (s *Store) ByModule(module string) []FileFact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectByIndex(s.byModule[module])
}

// Shared returns the facts owned by more than one module, sorted by path.
func (s *Store) Shared() []FileFact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []FileFact
	for _, f := range s.files {
		if f.Shared() {
			result = append(result, f)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result
}

// QueryOpts holds the filters for Query. Empty values match everything.
type QueryOpts struct {
	Module     string // exact owning module
	PathPrefix string // relative path prefix (e.g. "Foundation/Networking")
	Declares   string // substring match against any declared type or function
	Imports    string // exact import target
	TestOnly   bool   // only test files
	Limit      int    // max results to return (0 = default 100, max 500)
}

// Query returns facts matching all provided filters along with the total
// count of matches before the limit is applied.
func (s *Store) Query(opts QueryOpts) ([]FileFact, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := s.files
	if opts.Module != "" {
		candidates = s.collectByIndex(s.byModule[opts.Module])
	}

	var matched []FileFact
	for _, f := range candidates {
		if opts.PathPrefix != "" && !strings.HasPrefix(f.Path, opts.PathPrefix) {
			continue
		}
		if opts.TestOnly && !f.IsTest {
			continue
		}
		if opts.Imports != "" && !containsExact(f.Imports, opts.Imports) {
			continue
		}
		if opts.Declares != "" && !declares(f.SourceFact, opts.Declares) {
			continue
		}
		matched = append(matched, f)
	}

	total := len(matched)
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total
}

func declares(f SourceFact, name string) bool {
	for _, group := range [][]string{f.Interfaces, f.Structs, f.Classes, f.Functions} {
		for _, d := range group {
			if strings.Contains(d, name) {
				return true
			}
		}
	}
	return false
}

func containsExact(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func (s *Store) removeFromIndex(idx map[string][]int, key string, target int) {
	indices := idx[key]
	for j, v := range indices {
		if v == target {
			idx[key] = append(indices[:j], indices[j+1:]...)
			break
		}
	}
	if len(idx[key]) == 0 {
		delete(idx, key)
	}
}

// Clear removes all facts from the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = nil
	s.byPath = make(map[string]int)
	s.byModule = make(map[string][]int)
}

// WriteJSONL writes all facts as JSONL to the given writer.
func (s *Store) WriteJSONL(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enc := json.NewEncoder(w)
	for _, f := range s.files {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("encoding fact %q: %w", f.Path, err)
		}
	}
	return nil
}

// WriteJSONLFile writes all facts as JSONL to the given file path.
func (s *Store) WriteJSONLFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	if err := s.WriteJSONL(bw); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadJSONL reads facts from a JSONL reader and adds them to the store.
func (s *Store) ReadJSONL(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	// Allow large lines
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var f FileFact
		if err := json.Unmarshal(line, &f); err != nil {
			return fmt.Errorf("decoding fact: %w", err)
		}
		s.Add(f)
	}
	return scanner.Err()
}

// ReadJSONLFile reads facts from a JSONL file and adds them to the store.
func (s *Store) ReadJSONLFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return s.ReadJSONL(f)
}

func (s *Store) collectByIndex(indices []int) []FileFact {
	result := make([]FileFact, 0, len(indices))
	for _, idx := range indices {
		if idx < len(s.files) {
			result = append(result, s.files[idx])
		}
	}
	return result
}
