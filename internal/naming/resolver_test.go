package naming

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kitOverride = `{
  "libraries": [
    {"name": "KitCore", "path": "Kit/Sources/Core", "is_test": false},
    {"name": "KitUI", "path": "Kit/Sources/UI", "is_test": false},
    {"name": "KitCoreTests", "path": "Kit/Tests/Core", "is_test": true}
  ],
  "shared": [
    {"path": "Kit/Sources/Shared", "is_test": false}
  ]
}`

func writeOverride(t *testing.T, root, dir, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	p := filepath.Join(root, dir, DefaultOverrideFile)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestResolve_Convention(t *testing.T) {
	r := NewResolver(t.TempDir(), nil, "")

	tests := []struct {
		path   string
		names  []string
		isTest bool
		root   string
		dirs   []string
	}{
		{"Core/Net/Client.swift", []string{"Core"}, false, "Core", []string{"Net"}},
		{"Core/Client.swift", []string{"Core"}, false, "Core", []string{}},
		{"main.swift", []string{AppTargetName}, false, "", nil},
		{"Core/Tests/ClientTests.swift", []string{"Core_Test"}, true, "Core", []string{"Tests"}},
		{"CoreTests/Unit/ClientTests.swift", []string{"CoreTests_Test"}, true, "CoreTests", []string{"Unit"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res, err := r.Resolve(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.names, res.Names)
			assert.Equal(t, tt.isTest, res.IsTest)
			assert.Equal(t, tt.root, res.Root)
			assert.Equal(t, len(tt.dirs), len(res.Dirs))
			for i := range tt.dirs {
				assert.Equal(t, tt.dirs[i], res.Dirs[i])
			}
			assert.False(t, res.Shared())
		})
	}
}

func TestResolve_CustomTestPaths(t *testing.T) {
	r := NewResolver(t.TempDir(), []string{"Specs"}, "")

	res, err := r.Resolve("Core/Specs/ClientSpec.swift")
	require.NoError(t, err)
	assert.Equal(t, []string{"Core_Test"}, res.Names)

	res, err = r.Resolve("Core/Tests/ClientTests.swift")
	require.NoError(t, err)
	assert.Equal(t, []string{"Core"}, res.Names)
}

func TestResolve_Override(t *testing.T) {
	root := t.TempDir()
	writeOverride(t, root, "Kit", kitOverride)
	r := NewResolver(root, nil, "")

	t.Run("library", func(t *testing.T) {
		res, err := r.Resolve("Kit/Sources/Core/Net/Client.swift")
		require.NoError(t, err)
		assert.Equal(t, []string{"KitCore"}, res.Names)
		assert.False(t, res.IsTest)
		assert.Equal(t, "Kit/Sources/Core", res.Root)
		assert.Equal(t, []string{"Net"}, res.Dirs)
	})

	t.Run("test library keeps its configured name", func(t *testing.T) {
		res, err := r.Resolve("Kit/Tests/Core/ClientTests.swift")
		require.NoError(t, err)
		assert.Equal(t, []string{"KitCoreTests"}, res.Names)
		assert.True(t, res.IsTest)
		assert.Empty(t, res.Dirs)
	})

	t.Run("shared", func(t *testing.T) {
		res, err := r.Resolve("Kit/Sources/Shared/Log.swift")
		require.NoError(t, err)
		assert.Equal(t, []string{"KitCore", "KitUI"}, res.Names)
		assert.True(t, res.Shared())
		assert.False(t, res.IsTest)
		assert.Equal(t, "Kit/Sources/Shared", res.Root)
	})

	t.Run("no rule falls back to convention", func(t *testing.T) {
		res, err := r.Resolve("Kit/Other/Thing.swift")
		require.NoError(t, err)
		assert.Equal(t, []string{"Kit"}, res.Names)
		assert.Equal(t, "Kit", res.Root)
		assert.Equal(t, []string{"Other"}, res.Dirs)
	})

	t.Run("other subtrees are unaffected", func(t *testing.T) {
		res, err := r.Resolve("App/Sources/Core/View.swift")
		require.NoError(t, err)
		assert.Equal(t, []string{"App"}, res.Names)
	})
}

func TestResolve_OverrideIsCached(t *testing.T) {
	root := t.TempDir()
	p := writeOverride(t, root, "Kit", kitOverride)
	r := NewResolver(root, nil, "")

	_, err := r.Resolve("Kit/Sources/Core/a.swift")
	require.NoError(t, err)
	require.NoError(t, os.Remove(p))

	res, err := r.Resolve("Kit/Sources/UI/b.swift")
	require.NoError(t, err)
	assert.Equal(t, []string{"KitUI"}, res.Names)
}

func TestResolve_AbsentOverrideIsCached(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(root, nil, "")

	_, err := r.Resolve("Kit/Sources/Core/a.swift")
	require.NoError(t, err)
	writeOverride(t, root, "Kit", kitOverride)

	res, err := r.Resolve("Kit/Sources/Core/a.swift")
	require.NoError(t, err)
	assert.Equal(t, []string{"Kit"}, res.Names)
}

func TestResolve_MalformedOverride(t *testing.T) {
	root := t.TempDir()
	writeOverride(t, root, "Kit", `{"libraries": [`)
	r := NewResolver(root, nil, "")

	_, err := r.Resolve("Kit/Sources/a.swift")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedOverride)

	// Files directly in the root never consult an override.
	_, err = r.Resolve("main.swift")
	assert.NoError(t, err)
}

func TestSplitAtMatch(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		match string
		root  string
		dirs  []string
	}{
		{"exact directory", "Kit/Sources/Core/Net/a.swift", "Kit/Sources/Core", "Kit/Sources/Core", []string{"Net"}},
		{"trailing slash", "Kit/Sources/Core/Net/a.swift", "Kit/Sources/Core/", "Kit/Sources/Core", []string{"Net"}},
		{"partial segment", "Kit/Sources/Core/Net/a.swift", "Sources/Co", "Kit/Sources/Core", []string{"Net"}},
		{"match reaches file name", "Kit/Sources/Core/a.swift", "Core/a", "Kit/Sources/Core", nil},
		{"nested remainder", "Kit/A/B/C/a.swift", "Kit/A", "Kit/A", []string{"B", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, dirs := splitAtMatch(tt.path, tt.match)
			assert.Equal(t, tt.root, root)
			assert.Equal(t, tt.dirs, dirs)
		})
	}
}

func TestParseOverride(t *testing.T) {
	o, err := ParseOverride([]byte(kitOverride))
	require.NoError(t, err)
	assert.Len(t, o.Libraries, 3)
	assert.Equal(t, []string{"KitCore", "KitUI"}, o.LibraryNames(false))
	assert.Equal(t, []string{"KitCoreTests"}, o.LibraryNames(true))

	_, err = ParseOverride([]byte(`{"libraries": [{"name": "", "path": "x"}]}`))
	assert.ErrorIs(t, err, ErrMalformedOverride)

	_, err = ParseOverride([]byte(`{"shared": [{"is_test": true}]}`))
	assert.ErrorIs(t, err, ErrMalformedOverride)
}

func TestLoadOverride_Missing(t *testing.T) {
	o, err := LoadOverride(filepath.Join(t.TempDir(), "scm.json"))
	require.NoError(t, err)
	assert.Nil(t, o)
}
