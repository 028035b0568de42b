package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/dejo1307/swiftmetrics/internal/extractors/swiftextractor"
)

// Watcher reports batches of changed Swift files under a root directory.
// Changes are debounced: the callback runs once the tree has been quiet
// for the debounce interval.
type Watcher struct {
	root       string
	fsWatcher  *fsnotify.Watcher
	debounce   time.Duration
	ignores    []glob.Glob
	excludes   []string
	onChange   func([]string)
	callbackMu sync.Mutex

	pending   map[string]struct{}
	pendingMu sync.Mutex
	timer     *time.Timer
}

// New creates a watcher for root. ignore holds glob patterns and exclude
// path substrings, both matched against slash-separated paths relative to
// root. onChange receives the sorted relative paths of changed files.
func New(root string, debounce time.Duration, ignore, exclude []string, onChange func([]string)) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}

	w := &Watcher{
		root:     absRoot,
		debounce: debounce,
		excludes: exclude,
		onChange: onChange,
		pending:  make(map[string]struct{}),
	}
	for _, pattern := range ignore {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling ignore pattern %q: %w", pattern, err)
		}
		w.ignores = append(w.ignores, g)
		if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
			if g, err := glob.Compile(rest, '/'); err == nil {
				w.ignores = append(w.ignores, g)
			}
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w.fsWatcher = fsw
	return w, nil
}

// Start registers every directory under the root and begins dispatching
// events in the background.
func (w *Watcher) Start() error {
	if err := w.watchRecursive(w.root); err != nil {
		return err
	}
	log.Printf("[watcher] watching %s (debounce %s)", w.root, w.debounce)
	go w.run()
	return nil
}

// Run starts the watcher and blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return w.Close()
}

func (w *Watcher) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.shouldExcludeDir(path) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Create) {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.shouldExcludeDir(event.Name) {
						if err := w.watchRecursive(event.Name); err != nil {
							log.Printf("[watcher] failed to watch new directory %s: %v", event.Name, err)
						} else {
							w.enqueueExistingFiles(event.Name)
						}
					}
					continue
				}
			}

			if w.shouldExcludeFile(event.Name) {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Printf("[watcher] error: %v", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[w.rel(path)] = struct{}{}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

// rel returns the slash-separated path of path relative to the root.
func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	rel := w.rel(path)
	for _, g := range w.ignores {
		if g.Match(rel + "/") {
			return true
		}
	}
	return w.isExcluded(rel)
}

func (w *Watcher) shouldExcludeFile(path string) bool {
	if !swiftextractor.IsSwiftFile(path) {
		return true
	}
	rel := w.rel(path)
	for _, g := range w.ignores {
		if g.Match(rel) {
			return true
		}
	}
	if dir := filepath.ToSlash(filepath.Dir(rel)); dir != "." {
		return w.isExcluded(dir)
	}
	return false
}

func (w *Watcher) isExcluded(dir string) bool {
	for _, p := range w.excludes {
		if p != "" && strings.Contains(dir, p) {
			return true
		}
	}
	return false
}

// Close stops the watcher and drops pending changes.
func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}

func (w *Watcher) enqueueExistingFiles(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d == nil || d.IsDir() {
			return nil
		}
		if w.shouldExcludeFile(path) {
			return nil
		}
		w.scheduleChange(path)
		return nil
	})
}
