package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string, ignore, exclude []string) <-chan []string {
	t.Helper()
	changes := make(chan []string, 8)
	w, err := New(root, 50*time.Millisecond, ignore, exclude, func(paths []string) {
		changes <- paths
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Close() })
	return changes
}

// waitFor drains batches until want shows up or the timeout expires. It
// returns every path seen.
func waitFor(t *testing.T, changes <-chan []string, want string) []string {
	t.Helper()
	var seen []string
	timeout := time.After(3 * time.Second)
	for {
		select {
		case paths := <-changes:
			seen = append(seen, paths...)
			for _, p := range paths {
				if p == want {
					return seen
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s, saw %v", want, seen)
			return seen
		}
	}
}

func TestWatcher_ReportsSwiftChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Core"), 0o755))
	changes := startWatcher(t, root, nil, nil)

	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("docs"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Core", "Cache.swift"), []byte("struct Cache {}"), 0o644))

	seen := waitFor(t, changes, "Core/Cache.swift")
	assert.NotContains(t, seen, "README.md")
}

func TestWatcher_IgnoreAndExclude(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"Pods/Alamofire", "Generated", "App"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}
	changes := startWatcher(t, root, []string{"Pods/**", "**/*.generated.swift"}, []string{"Generated"})

	require.NoError(t, os.WriteFile(filepath.Join(root, "Pods", "Alamofire", "AF.swift"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Generated", "Assets.swift"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "App", "Colors.generated.swift"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "App", "Main.swift"), []byte("x"), 0o644))

	seen := waitFor(t, changes, "App/Main.swift")
	assert.NotContains(t, seen, "Pods/Alamofire/AF.swift")
	assert.NotContains(t, seen, "Generated/Assets.swift")
	assert.NotContains(t, seen, "App/Colors.generated.swift")
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	changes := startWatcher(t, root, nil, nil)

	sub := filepath.Join(root, "Feature", "Login")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	// Give the watcher a moment to register the new directories.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "LoginView.swift"), []byte("x"), 0o644))

	waitFor(t, changes, "Feature/Login/LoginView.swift")
}

func TestShouldExcludeFile(t *testing.T) {
	w, err := New("/repo", time.Second, []string{".build/**", "**/*.generated.swift"}, []string{"Vendor"}, func([]string) {})
	require.NoError(t, err)
	defer w.Close()

	tests := []struct {
		path string
		want bool
	}{
		{"/repo/App/Main.swift", false},
		{"/repo/Main.swift", false},
		{"/repo/App/Main.m", true},
		{"/repo/.build/debug/X.swift", true},
		{"/repo/X.generated.swift", true},
		{"/repo/App/Y.generated.swift", true},
		{"/repo/Vendor/Lib/Z.swift", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, w.shouldExcludeFile(tt.path), tt.path)
	}
}

func TestNew_InvalidGlob(t *testing.T) {
	_, err := New(t.TempDir(), time.Second, []string{"[unclosed"}, nil, func([]string) {})
	assert.Error(t, err)
}
