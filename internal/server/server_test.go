package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dejo1307/swiftmetrics/internal/config"
	"github.com/dejo1307/swiftmetrics/internal/engine"
	"github.com/dejo1307/swiftmetrics/internal/history"
	"github.com/dejo1307/swiftmetrics/internal/modules"
	"github.com/dejo1307/swiftmetrics/internal/renderers/jsonreport"
	"github.com/dejo1307/swiftmetrics/internal/renderers/markdown"
)

func TestReadSourceWindow(t *testing.T) {
	// Create a 10-line temp file
	dir := t.TempDir()
	path := filepath.Join(dir, "test.swift")
	var lines []string
	for i := 1; i <= 10; i++ {
		lines = append(lines, "line "+string(rune('0'+i)))
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name         string
		centerLine   int
		contextLines int
		wantStart    int
		wantEnd      int
	}{
		{"center middle", 5, 6, 2, 8},
		{"center at start", 1, 10, 1, 6},
		{"center at end", 10, 10, 5, 10},
		{"context larger than file", 5, 20, 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readSourceWindow(path, tt.centerLine, tt.contextLines)
			if err != nil {
				t.Fatalf("readSourceWindow: %v", err)
			}

			outputLines := strings.Split(strings.TrimRight(got, "\n"), "\n")
			if !strings.Contains(outputLines[0], "│") {
				t.Fatalf("expected line number format with │, got: %s", outputLines[0])
			}

			expectedCount := tt.wantEnd - tt.wantStart + 1
			if len(outputLines) != expectedCount {
				t.Errorf("got %d output lines, want %d (lines %d-%d)",
					len(outputLines), expectedCount, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestReadSourceWindow_SingleLineFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "single.swift")
	if err := os.WriteFile(path, []byte("only line"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readSourceWindow(path, 1, 30)
	if err != nil {
		t.Fatalf("readSourceWindow: %v", err)
	}

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 1 {
		t.Errorf("expected 1 line for single-line file, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "only line") {
		t.Errorf("expected output to contain 'only line', got: %s", lines[0])
	}
}

func TestFindDeclarationLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Cache.swift")
	src := "import Foundation\n\n// uses Cache\nfinal class MemoryCache {\n    func evictAll() {}\n}\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		want int
	}{
		{"Cache", 4},
		{"evict", 5},
		{"Missing", 1},
	}
	for _, tt := range tests {
		got, err := findDeclarationLine(path, tt.name)
		if err != nil {
			t.Fatalf("findDeclarationLine(%q): %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("findDeclarationLine(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}

	if _, err := findDeclarationLine(filepath.Join(dir, "nope.swift"), "x"); err == nil {
		t.Error("expected error for missing file")
	}
}

// --- test helpers ---

// AppTarget -> Core -> Net, plus Core_Test.
var fixture = map[string]string{
	"Main.swift":                  "import UIKit\nimport Core\nstruct AppDelegate {}\n",
	"Core/Cache.swift":            "import Foundation\nimport Net\n// cache layer\nprotocol Caching {}\nclass Cache {\n    func load() {}\n}\n",
	"Net/Client.swift":            "import Foundation\nstruct Client {}\n",
	"Core/Tests/CacheTests.swift": "import XCTest\n@testable import Core\nclass CacheTests {\n    func testHit() {}\n}\n",
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

// newTestServer returns a server over a fresh engine. When hist is set it
// also records runs.
func newTestServer(t *testing.T, hist *history.Store) *Server {
	t.Helper()
	cfg := config.Default()
	eng, err := engine.New(cfg)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	eng.RegisterRenderer(jsonreport.New())
	eng.RegisterRenderer(markdown.New(markdown.DefaultMaxTokens))
	if hist != nil {
		eng.SetRecorder(hist)
	}
	srv, err := New(eng, cfg, hist)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

// generated returns a server that has already analyzed the fixture.
func generated(t *testing.T) (*Server, string) {
	t.Helper()
	root := writeTree(t, fixture)
	srv := newTestServer(t, nil)
	res, _, err := srv.generateReport(context.Background(), nil, generateReportArgs{SourcePath: root})
	if err != nil || res.IsError {
		t.Fatalf("generate_report failed: %v %s", err, resultText(t, res))
	}
	return srv, root
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want *mcp.TextContent", res.Content[0])
	}
	return tc.Text
}

// --- tool tests ---

func TestGenerateReport(t *testing.T) {
	srv, root := generated(t)

	snap := srv.eng.Snapshot()
	if snap == nil {
		t.Fatal("expected snapshot after generate_report")
	}
	if snap.Report.Meta.Modules != 3 || snap.Report.Meta.TestModules != 1 {
		t.Errorf("meta = %+v", snap.Report.Meta)
	}

	for _, name := range []string{"output.json", "report.md", "facts.jsonl", "insights.json"} {
		if _, err := os.Stat(filepath.Join(root, ".swiftmetrics", name)); err != nil {
			t.Errorf("expected %s to be written: %v", name, err)
		}
	}
}

func TestGenerateReport_NoSourceFiles(t *testing.T) {
	srv := newTestServer(t, nil)
	root := writeTree(t, map[string]string{"README.md": "# nothing\n"})

	res, _, err := srv.generateReport(context.Background(), nil, generateReportArgs{SourcePath: root})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Error("an empty tree is not an error")
	}
	if !strings.Contains(resultText(t, res), "No Swift source files") {
		t.Errorf("unexpected text: %s", resultText(t, res))
	}
	if srv.eng.Snapshot() != nil {
		t.Error("no snapshot should be stored")
	}
}

func TestTools_BeforeGenerate(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()

	results := map[string]*mcp.CallToolResult{}
	results["get_module"], _, _ = srv.getModule(ctx, nil, getModuleArgs{Name: "Core"})
	results["list_modules"], _, _ = srv.listModules(ctx, nil, listModulesArgs{})
	results["query_files"], _, _ = srv.queryFiles(ctx, nil, queryFilesArgs{})
	results["module_dependencies"], _, _ = srv.moduleDependencies(ctx, nil, moduleDependenciesArgs{Name: "Core"})
	results["dependency_path"], _, _ = srv.dependencyPath(ctx, nil, dependencyPathArgs{From: "Core", To: "Net"})
	results["show_declaration"], _, _ = srv.showDeclaration(ctx, nil, showDeclarationArgs{Name: "Cache"})

	for name, res := range results {
		if !res.IsError {
			t.Errorf("%s should fail before generate_report", name)
		}
		if !strings.Contains(resultText(t, res), "generate_report") {
			t.Errorf("%s error should point at generate_report: %s", name, resultText(t, res))
		}
	}
}

func TestGetModule(t *testing.T) {
	srv, _ := generated(t)

	// Lookup is case-insensitive.
	res, _, _ := srv.getModule(context.Background(), nil, getModuleArgs{Name: "core"})
	if res.IsError {
		t.Fatalf("get_module: %s", resultText(t, res))
	}

	var view moduleView
	if err := json.Unmarshal([]byte(resultText(t, res)), &view); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if view.Name != "Core" || view.IsTest || view.Files != 1 {
		t.Errorf("view = %+v", view)
	}
	if view.Metrics.FanIn == nil || *view.Metrics.FanIn != 1 {
		t.Errorf("fan-in = %v, want 1", view.Metrics.FanIn)
	}
	if len(view.Internal) != 1 || view.Internal[0].Target != "Net" {
		t.Errorf("internal dependencies = %+v", view.Internal)
	}
	if len(view.Dependents) != 1 || view.Dependents[0].Source != "AppTarget" {
		t.Errorf("dependents = %+v", view.Dependents)
	}
}

func TestGetModule_NotFound(t *testing.T) {
	srv, _ := generated(t)
	res, _, _ := srv.getModule(context.Background(), nil, getModuleArgs{Name: "Nope"})
	if !res.IsError {
		t.Error("expected error for unknown module")
	}
	if !strings.Contains(resultText(t, res), "list_modules") {
		t.Errorf("error should suggest list_modules: %s", resultText(t, res))
	}
}

func TestListModules(t *testing.T) {
	srv, _ := generated(t)
	ctx := context.Background()

	res, _, _ := srv.listModules(ctx, nil, listModulesArgs{})
	text := resultText(t, res)
	if !strings.HasPrefix(text, "3 modules") {
		t.Errorf("unexpected header: %s", text)
	}
	for _, name := range []string{"AppTarget", "Core", "Net"} {
		if !strings.Contains(text, "| "+name+" |") {
			t.Errorf("missing %s row:\n%s", name, text)
		}
	}
	if strings.Contains(text, "Core_Test") {
		t.Error("test modules should not be listed by default")
	}

	res, _, _ = srv.listModules(ctx, nil, listModulesArgs{Tests: true})
	if !strings.Contains(resultText(t, res), "| Core_Test |") {
		t.Errorf("tests listing:\n%s", resultText(t, res))
	}

	res, _, _ = srv.listModules(ctx, nil, listModulesArgs{SortBy: "loc"})
	text = resultText(t, res)
	if strings.Index(text, "| Core |") > strings.Index(text, "| Net |") {
		t.Errorf("Core has more LOC and should come first:\n%s", text)
	}

	res, _, _ = srv.listModules(ctx, nil, listModulesArgs{SortBy: "size"})
	if !res.IsError {
		t.Error("expected error for unknown sort key")
	}
}

func TestQueryFiles(t *testing.T) {
	srv, _ := generated(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		args     queryFilesArgs
		wantPath []string
	}{
		{"by module", queryFilesArgs{Module: "Net"}, []string{"Net/Client.swift"}},
		{"by declaration", queryFilesArgs{Declares: "Cach"}, []string{"Core/Cache.swift", "Core/Tests/CacheTests.swift"}},
		{"by import", queryFilesArgs{Imports: "XCTest"}, []string{"Core/Tests/CacheTests.swift"}},
		{"tests only", queryFilesArgs{TestsOnly: true}, []string{"Core/Tests/CacheTests.swift"}},
		{"by prefix", queryFilesArgs{PathPrefix: "Main"}, []string{"Main.swift"}},
		{"no match", queryFilesArgs{Module: "Nope"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _, _ := srv.queryFiles(ctx, nil, tt.args)
			if res.IsError {
				t.Fatalf("query_files: %s", resultText(t, res))
			}
			var got []struct {
				Path string `json:"path"`
			}
			if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(got) != len(tt.wantPath) {
				t.Fatalf("got %d files, want %d: %+v", len(got), len(tt.wantPath), got)
			}
			for i, p := range tt.wantPath {
				if got[i].Path != p {
					t.Errorf("file %d = %s, want %s", i, got[i].Path, p)
				}
			}
		})
	}
}

func TestQueryFiles_Truncated(t *testing.T) {
	srv, _ := generated(t)
	res, _, _ := srv.queryFiles(context.Background(), nil, queryFilesArgs{Limit: 1})
	if !strings.Contains(resultText(t, res), "showing 1 of 4 results") {
		t.Errorf("expected truncation note: %s", resultText(t, res))
	}
}

func TestModuleDependencies(t *testing.T) {
	srv, _ := generated(t)
	ctx := context.Background()

	res, _, _ := srv.moduleDependencies(ctx, nil, moduleDependenciesArgs{Name: "AppTarget"})
	var fwd modules.TraversalResult
	if err := json.Unmarshal([]byte(resultText(t, res)), &fwd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(fwd.Nodes) != 3 || fwd.Stats.MaxDepthReached != 2 {
		t.Errorf("forward traversal = %+v", fwd)
	}

	res, _, _ = srv.moduleDependencies(ctx, nil, moduleDependenciesArgs{Name: "Net", Direction: "reverse", MaxDepth: 1})
	var rev modules.TraversalResult
	if err := json.Unmarshal([]byte(resultText(t, res)), &rev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rev.Nodes) != 2 || rev.Nodes[1].Name != "Core" {
		t.Errorf("reverse traversal = %+v", rev)
	}

	res, _, _ = srv.moduleDependencies(ctx, nil, moduleDependenciesArgs{Name: "Core", Direction: "sideways"})
	if !res.IsError {
		t.Error("expected error for unknown direction")
	}
	res, _, _ = srv.moduleDependencies(ctx, nil, moduleDependenciesArgs{Name: "Core_Test"})
	if !res.IsError {
		t.Error("test modules are not part of the import graph")
	}
}

func TestDependencyPath(t *testing.T) {
	srv, _ := generated(t)
	ctx := context.Background()

	res, _, _ := srv.dependencyPath(ctx, nil, dependencyPathArgs{From: "AppTarget", To: "net"})
	var path modules.PathResult
	if err := json.Unmarshal([]byte(resultText(t, res)), &path); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !path.Found || len(path.Path) != 3 || path.Path[1].Name != "Core" {
		t.Errorf("path = %+v", path)
	}

	res, _, _ = srv.dependencyPath(ctx, nil, dependencyPathArgs{From: "Net", To: "AppTarget"})
	path = modules.PathResult{}
	if err := json.Unmarshal([]byte(resultText(t, res)), &path); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if path.Found {
		t.Error("Net does not reach AppTarget")
	}

	res, _, _ = srv.dependencyPath(ctx, nil, dependencyPathArgs{From: "Nope", To: "Net"})
	if !res.IsError {
		t.Error("expected error for unknown module")
	}
}

func TestShowDeclaration(t *testing.T) {
	srv, _ := generated(t)

	res, _, _ := srv.showDeclaration(context.Background(), nil, showDeclarationArgs{Name: "Client", ContextLines: 4})
	if res.IsError {
		t.Fatalf("show_declaration: %s", resultText(t, res))
	}
	text := resultText(t, res)
	if !strings.Contains(text, "### Net/Client.swift") {
		t.Errorf("missing file header:\n%s", text)
	}
	if !strings.Contains(text, "   2│ struct Client {}") {
		t.Errorf("missing declaration line:\n%s", text)
	}

	res, _, _ = srv.showDeclaration(context.Background(), nil, showDeclarationArgs{Name: "Nothing"})
	if !res.IsError {
		t.Error("expected error for unknown declaration")
	}
}

func TestModuleHistory(t *testing.T) {
	hist, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	defer hist.Close()

	srv := newTestServer(t, hist)
	root := writeTree(t, fixture)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if res, _, _ := srv.generateReport(ctx, nil, generateReportArgs{SourcePath: root}); res.IsError {
			t.Fatalf("generate_report: %s", resultText(t, res))
		}
	}

	res, _, _ := srv.moduleHistory(ctx, nil, moduleHistoryArgs{Name: "Core"})
	var points []history.ModulePoint
	if err := json.Unmarshal([]byte(resultText(t, res)), &points); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(points) != 2 || points[0].Module != "Core" {
		t.Errorf("points = %+v", points)
	}

	res, _, _ = srv.moduleHistory(ctx, nil, moduleHistoryArgs{Limit: 1})
	var runs []history.Run
	if err := json.Unmarshal([]byte(resultText(t, res)), &runs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(runs) != 1 || runs[0].Modules != 3 {
		t.Errorf("runs = %+v", runs)
	}

	res, _, _ = srv.moduleHistory(ctx, nil, moduleHistoryArgs{Name: "Nope"})
	if !res.IsError {
		t.Error("expected error for module without history")
	}
}

func TestModuleHistory_Disabled(t *testing.T) {
	srv := newTestServer(t, nil)
	res, _, _ := srv.moduleHistory(context.Background(), nil, moduleHistoryArgs{})
	if !res.IsError || !strings.Contains(resultText(t, res), "history.enabled") {
		t.Errorf("expected disabled error, got %+v", res)
	}
}
