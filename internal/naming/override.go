package naming

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrMalformedOverride is returned when an override file exists but cannot be decoded.
var ErrMalformedOverride = errors.New("malformed override file")

// Override is the per-subtree naming configuration:
//
//	{"libraries": [{"name": "...", "path": "...", "is_test": false}],
//	 "shared":    [{"path": "...", "is_test": false}]}
type Override struct {
	Libraries []Library    `json:"libraries"`
	Shared    []SharedPath `json:"shared"`
}

// Library maps a path substring to an explicit module name.
type Library struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	IsTest bool   `json:"is_test"`
}

// SharedPath marks a path substring whose files belong to every library with
// the same test flag.
type SharedPath struct {
	Path   string `json:"path"`
	IsTest bool   `json:"is_test"`
}

// LoadOverride reads an override file. A missing file is not an error and
// yields a nil Override.
func LoadOverride(path string) (*Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading override %s: %w", path, err)
	}
	o, err := ParseOverride(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return o, nil
}

// ParseOverride decodes override JSON.
func ParseOverride(data []byte) (*Override, error) {
	var o Override
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOverride, err)
	}
	for i, lib := range o.Libraries {
		if lib.Name == "" || lib.Path == "" {
			return nil, fmt.Errorf("%w: library %d needs both name and path", ErrMalformedOverride, i)
		}
	}
	for i, sh := range o.Shared {
		if sh.Path == "" {
			return nil, fmt.Errorf("%w: shared entry %d has no path", ErrMalformedOverride, i)
		}
	}
	return &o, nil
}

// LibraryNames returns the distinct library names with the given test flag,
// in configuration order.
func (o *Override) LibraryNames(isTest bool) []string {
	seen := make(map[string]bool)
	var names []string
	for _, lib := range o.Libraries {
		if lib.IsTest != isTest || seen[lib.Name] {
			continue
		}
		seen[lib.Name] = true
		names = append(names, lib.Name)
	}
	return names
}
