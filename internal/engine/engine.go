package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"github.com/dejo1307/swiftmetrics/internal/config"
	"github.com/dejo1307/swiftmetrics/internal/explainers"
	"github.com/dejo1307/swiftmetrics/internal/extractors/swiftextractor"
	"github.com/dejo1307/swiftmetrics/internal/facts"
	"github.com/dejo1307/swiftmetrics/internal/modules"
	"github.com/dejo1307/swiftmetrics/internal/naming"
	"github.com/dejo1307/swiftmetrics/internal/renderers"
	"github.com/dejo1307/swiftmetrics/internal/report"
)

var (
	// ErrNoSourceFiles means the scan root holds no Swift files. It is a
	// "no data" outcome, not a failure.
	ErrNoSourceFiles = errors.New("no swift source files found")
	// ErrNoReport is returned when results are requested before a run.
	ErrNoReport = errors.New("no report generated")
)

// Recorder persists a finished report, e.g. into the history database.
type Recorder interface {
	Record(ctx context.Context, r *report.Report) error
}

// Engine orchestrates the analysis pipeline.
type Engine struct {
	cfg        *config.Config
	extractor  *swiftextractor.SwiftExtractor
	explainers *explainers.Registry
	renderers  *renderers.Registry
	ignores    []glob.Glob
	recorder   Recorder

	runMu    sync.Mutex // serializes runs
	mu       sync.RWMutex
	store    *facts.Store
	snapshot *report.Snapshot
}

// New creates a new Engine with the given config.
// Explainers and renderers must be registered after creation.
func New(cfg *config.Config) (*Engine, error) {
	ignores, err := compileIgnores(cfg.Ignore)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:        cfg,
		extractor:  swiftextractor.New(),
		explainers: explainers.NewRegistry(),
		renderers:  renderers.NewRegistry(),
		ignores:    ignores,
		store:      facts.NewStore(),
	}, nil
}

// compileIgnores compiles ignore globs with '/' as separator. A pattern
// starting with "**/" also matches at the root.
func compileIgnores(patterns []string) ([]glob.Glob, error) {
	var out []glob.Glob
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling ignore pattern %q: %w", p, err)
		}
		out = append(out, g)
		if rest, ok := strings.CutPrefix(p, "**/"); ok {
			g, err := glob.Compile(rest, '/')
			if err != nil {
				return nil, fmt.Errorf("compiling ignore pattern %q: %w", p, err)
			}
			out = append(out, g)
		}
	}
	return out, nil
}

// RegisterExplainer adds an explainer to the engine.
func (e *Engine) RegisterExplainer(exp explainers.Explainer) {
	e.explainers.Register(exp)
}

// RegisterRenderer adds a renderer to the engine.
func (e *Engine) RegisterRenderer(rnd renderers.Renderer) {
	e.renderers.Register(rnd)
}

// SetRecorder installs a recorder invoked after every successful run.
func (e *Engine) SetRecorder(r Recorder) {
	e.recorder = r
}

// Store returns the fact store of the last run.
func (e *Engine) Store() *facts.Store {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store
}

// Snapshot returns the last generated snapshot, or nil.
func (e *Engine) Snapshot() *report.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// Config returns the engine config.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Assembly is the module set built from one walk of the source tree.
type Assembly struct {
	Root    string
	Modules *modules.Set
	Shared  []modules.SharedFile
	Store   *facts.Store
	Dropped []string // referenced but not analyzed modules, pruned
}

// Assemble walks root once, extracting and naming every Swift file, and
// builds the module set. Any unreadable file or malformed override file
// aborts the walk.
func (e *Engine) Assemble(ctx context.Context, root string) (*Assembly, error) {
	files, err := e.walkSources(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	if len(files) == 0 {
		return nil, ErrNoSourceFiles
	}
	log.Printf("[engine] found %d swift files in %s", len(files), root)

	resolver := naming.NewResolver(root, e.cfg.TestsPaths, e.cfg.OverrideFile)
	a := &Assembly{
		Root:    root,
		Modules: modules.NewSet(),
		Store:   facts.NewStore(),
	}

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.assembleFile(a, resolver, rel); err != nil {
			return nil, err
		}
	}

	a.Dropped = a.Modules.Prune()
	if len(a.Dropped) > 0 {
		log.Printf("[engine] %d imported modules are outside the scanned tree", len(a.Dropped))
	}
	return a, nil
}

func (e *Engine) assembleFile(a *Assembly, resolver *naming.Resolver, rel string) error {
	sf, err := e.extractor.ExtractFile(filepath.Join(a.Root, filepath.FromSlash(rel)))
	if err != nil {
		return fmt.Errorf("extracting: %w", err)
	}
	res, err := resolver.Resolve(rel)
	if err != nil {
		return fmt.Errorf("naming %s: %w", rel, err)
	}

	sf.IsTest = res.IsTest
	fact := facts.FileFact{Path: rel, Modules: res.Names, SourceFact: sf}

	for _, name := range res.Names {
		m := a.Modules.GetOrCreate(name)
		m.Root.Insert(res.Dirs, fact)
		m.IsTest = res.IsTest
		for _, imp := range sf.Imports {
			m.AddImport(a.Modules.GetOrCreate(imp))
		}
	}
	if res.Shared() {
		a.Shared = append(a.Shared, modules.SharedFile{Fact: fact, Owners: res.Names})
	}
	a.Store.Add(fact)
	return nil
}

// walkSources collects the relative, slash-separated paths of Swift files
// under root, skipping excluded and ignored paths.
func (e *Engine) walkSources(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)
		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if e.isIgnored(relPath, true) || e.isExcluded(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if !swiftextractor.IsSwiftFile(relPath) || e.isIgnored(relPath, false) {
			return nil
		}
		if dir := filepath.ToSlash(filepath.Dir(relPath)); dir != "." && e.isExcluded(dir) {
			return nil
		}
		files = append(files, relPath)
		return nil
	})
	return files, err
}

// isIgnored checks whether a path matches any ignore glob. Directories are
// matched with a trailing slash so that "dir/**" covers the directory itself.
func (e *Engine) isIgnored(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	if isDir {
		relPath += "/"
	}
	for _, g := range e.ignores {
		if g.Match(relPath) {
			return true
		}
	}
	return false
}

// isExcluded checks a directory path against the exclusion substrings.
func (e *Engine) isExcluded(dir string) bool {
	for _, p := range e.cfg.Exclude {
		if p != "" && strings.Contains(dir, p) {
			return true
		}
	}
	return false
}

// Run executes the full pipeline: assemble -> report -> explain -> render -> record.
func (e *Engine) Run(ctx context.Context, root string) (*report.Snapshot, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	start := time.Now()

	if root == "" {
		root = e.cfg.Source
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving source path: %w", err)
	}

	// 1. Walk, extract, name and assemble modules
	a, err := e.Assemble(ctx, absRoot)
	if err != nil {
		return nil, err
	}
	log.Printf("[engine] assembled %d modules (%d shared files)", a.Modules.Len(), len(a.Shared))

	// 2. Build the report
	snap := report.NewSnapshot(report.Input{
		Modules: a.Modules.All(),
		Shared:  a.Shared,
		System:  e.cfg.SystemLibraryAllowlist(),
	}, a.Store)
	snap.Report.Meta.RunID = uuid.NewString()
	snap.Report.Meta.Root = absRoot
	snap.Report.Meta.Files = a.Store.Count()

	// 3. Run explainers
	insights, usedExplainers := e.runExplainers(ctx, snap)
	snap.Insights = insights
	log.Printf("[engine] produced %d insights using %d explainers", len(insights), len(usedExplainers))

	duration := time.Since(start)
	snap.Report.Meta.GeneratedAt = time.Now().UTC()
	snap.Report.Meta.DurationMS = duration.Milliseconds()

	// 4. Run renderers
	usedRenderers := e.runRenderers(ctx, snap)
	log.Printf("[engine] produced %d artifacts using %d renderers", len(snap.Artifacts), len(usedRenderers))

	// 5. Record history
	if e.recorder != nil {
		if err := e.recorder.Record(ctx, snap.Report); err != nil {
			log.Printf("[engine] recording history: %v", err)
		}
	}

	e.mu.Lock()
	e.store = a.Store
	e.snapshot = snap
	e.mu.Unlock()

	log.Printf("[engine] report generated in %s", duration)
	return snap, nil
}

// runExplainers runs all enabled explainers.
func (e *Engine) runExplainers(ctx context.Context, snap *report.Snapshot) ([]facts.Insight, []string) {
	allInsights := []facts.Insight{}
	var usedNames []string

	for _, exp := range e.explainers.All() {
		if !e.cfg.IsExplainerEnabled(exp.Name()) {
			continue
		}

		log.Printf("[engine] running explainer: %s", exp.Name())
		insights, err := exp.Explain(ctx, snap)
		if err != nil {
			log.Printf("[engine] explainer %s error: %v", exp.Name(), err)
			continue
		}

		allInsights = append(allInsights, insights...)
		usedNames = append(usedNames, exp.Name())
	}

	return allInsights, usedNames
}

// runRenderers runs all enabled renderers.
func (e *Engine) runRenderers(ctx context.Context, snap *report.Snapshot) []string {
	var usedNames []string

	for _, rnd := range e.renderers.All() {
		if !e.cfg.IsRendererEnabled(rnd.Name()) {
			continue
		}

		log.Printf("[engine] running renderer: %s", rnd.Name())
		artifacts, err := rnd.Render(ctx, snap)
		if err != nil {
			log.Printf("[engine] renderer %s error: %v", rnd.Name(), err)
			continue
		}

		snap.Artifacts = append(snap.Artifacts, artifacts...)
		usedNames = append(usedNames, rnd.Name())
	}

	return usedNames
}

// OutputDir returns the artifact directory for root.
func (e *Engine) OutputDir(root string) string {
	if filepath.IsAbs(e.cfg.Output.Dir) {
		return e.cfg.Output.Dir
	}
	return filepath.Join(root, e.cfg.Output.Dir)
}

// WriteArtifacts writes all renderer artifacts to the output directory,
// together with facts.jsonl and insights.json.
func (e *Engine) WriteArtifacts(root string) error {
	snap := e.Snapshot()
	if snap == nil {
		return ErrNoReport
	}

	outDir := e.OutputDir(root)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	// Write renderer artifacts (e.g. output.json)
	for _, a := range snap.Artifacts {
		path := filepath.Join(outDir, a.Name)
		if err := os.WriteFile(path, a.Content, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", a.Name, err)
		}
		log.Printf("[engine] wrote %s (%d bytes)", path, len(a.Content))
	}

	// Write facts.jsonl
	factsPath := filepath.Join(outDir, "facts.jsonl")
	if err := snap.Facts.WriteJSONLFile(factsPath); err != nil {
		return fmt.Errorf("writing facts.jsonl: %w", err)
	}
	log.Printf("[engine] wrote %s", factsPath)

	// Write insights.json
	insightsJSON, err := json.MarshalIndent(snap.Insights, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling insights: %w", err)
	}
	insightsPath := filepath.Join(outDir, "insights.json")
	if err := os.WriteFile(insightsPath, insightsJSON, 0o644); err != nil {
		return fmt.Errorf("writing insights.json: %w", err)
	}
	log.Printf("[engine] wrote %s (%d bytes)", insightsPath, len(insightsJSON))

	return nil
}

// GetArtifact returns the content of a named artifact, or the generated JSONL/JSON files.
func (e *Engine) GetArtifact(name string) ([]byte, error) {
	snap := e.Snapshot()
	if snap == nil {
		return nil, ErrNoReport
	}

	switch name {
	case "facts.jsonl":
		var buf bytes.Buffer
		if err := snap.Facts.WriteJSONL(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "insights.json":
		return json.MarshalIndent(snap.Insights, "", "  ")
	default:
		for _, a := range snap.Artifacts {
			if a.Name == name {
				return a.Content, nil
			}
		}
		return nil, fmt.Errorf("artifact %q not found", name)
	}
}
