package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dejo1307/swiftmetrics/internal/config"
	"github.com/dejo1307/swiftmetrics/internal/engine"
	"github.com/dejo1307/swiftmetrics/internal/facts"
	"github.com/dejo1307/swiftmetrics/internal/history"
	"github.com/dejo1307/swiftmetrics/internal/metrics"
	"github.com/dejo1307/swiftmetrics/internal/modules"
	"github.com/dejo1307/swiftmetrics/internal/report"
)

// Version is reported to MCP clients.
var Version = "0.1.0"

const noReportMsg = "No report available. Run generate_report first."

// Server wraps the MCP server and connects it to the analysis engine.
type Server struct {
	mcp     *mcp.Server
	eng     *engine.Engine
	cfg     *config.Config
	history *history.Store // nil when history is disabled
}

// New creates a new MCP server wired to the given engine. hist may be nil.
func New(eng *engine.Engine, cfg *config.Config, hist *history.Store) (*Server, error) {
	s := &Server{
		eng:     eng,
		cfg:     cfg,
		history: hist,
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "swiftmetrics",
		Version: Version,
	}, nil)

	s.mcp = mcpServer
	s.registerResources()
	s.registerTools()

	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	log.Println("[server] starting MCP server on stdio transport")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// artifactResource describes a resource backed by an engine artifact.
type artifactResource struct {
	uri         string
	name        string
	description string
	mimeType    string
	artifact    string
}

var resources = []artifactResource{
	{"metrics://report/json", "Metrics Report", "Full module metrics report (output.json)", "application/json", "output.json"},
	{"metrics://report/markdown", "Metrics Summary", "Compact markdown summary of the module metrics", "text/markdown", "report.md"},
	{"metrics://report/insights", "Metrics Insights", "Cycle and zone insights from the last report", "application/json", "insights.json"},
	{"metrics://report/facts", "File Facts", "Per-file extraction results in JSONL format", "application/jsonl", "facts.jsonl"},
	{"metrics://report/dot", "Dependency Graph", "Module dependency graph in Graphviz DOT syntax", "text/vnd.graphviz", "dependencies.dot"},
}

// registerResources adds MCP resources for report artifacts.
func (s *Server) registerResources() {
	for _, r := range resources {
		s.mcp.AddResource(&mcp.Resource{
			URI:         r.uri,
			Name:        r.name,
			Description: r.description,
			MIMEType:    r.mimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			content, err := s.eng.GetArtifact(r.artifact)
			if err != nil {
				return nil, fmt.Errorf("no report available: %w (run generate_report first)", err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: req.Params.URI, Text: string(content), MIMEType: r.mimeType},
				},
			}, nil
		})
	}
}

// generateReportArgs are the arguments for the generate_report tool.
type generateReportArgs struct {
	SourcePath string `json:"source_path,omitempty" jsonschema:"Path to the Swift source tree to analyze. Defaults to the configured source."`
}

// getModuleArgs are the arguments for the get_module tool.
type getModuleArgs struct {
	Name string `json:"name" jsonschema:"Module name (case-insensitive)"`
}

// listModulesArgs are the arguments for the list_modules tool.
type listModulesArgs struct {
	Tests  bool   `json:"tests,omitempty" jsonschema:"List test modules instead of non-test modules"`
	SortBy string `json:"sort_by,omitempty" jsonschema:"Sort key: name (default), loc, distance, instability, fan_in or fan_out"`
}

// queryFilesArgs are the arguments for the query_files tool.
type queryFilesArgs struct {
	Module     string `json:"module,omitempty" jsonschema:"Exact owning module name"`
	PathPrefix string `json:"path_prefix,omitempty" jsonschema:"Relative path prefix, e.g. Core/Networking"`
	Declares   string `json:"declares,omitempty" jsonschema:"Substring of a declared protocol, struct, class or function"`
	Imports    string `json:"imports,omitempty" jsonschema:"Exact imported module name"`
	TestsOnly  bool   `json:"tests_only,omitempty" jsonschema:"Only files in test directories"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum results (default 100, max 500)"`
}

// moduleDependenciesArgs are the arguments for the module_dependencies tool.
type moduleDependenciesArgs struct {
	Name      string `json:"name" jsonschema:"Module to start from"`
	Direction string `json:"direction,omitempty" jsonschema:"forward (what it imports, default) or reverse (what imports it)"`
	MaxDepth  int    `json:"max_depth,omitempty" jsonschema:"Maximum traversal depth (default 5, max 20)"`
	MaxNodes  int    `json:"max_nodes,omitempty" jsonschema:"Maximum modules returned (default 100, max 500)"`
}

// dependencyPathArgs are the arguments for the dependency_path tool.
type dependencyPathArgs struct {
	From     string `json:"from" jsonschema:"Importing module"`
	To       string `json:"to" jsonschema:"Imported module"`
	MaxDepth int    `json:"max_depth,omitempty" jsonschema:"Maximum path length (default 10, max 20)"`
}

// moduleHistoryArgs are the arguments for the module_history tool.
type moduleHistoryArgs struct {
	Name  string `json:"name,omitempty" jsonschema:"Module name. Empty lists run totals instead."`
	Limit int    `json:"limit,omitempty" jsonschema:"Number of most recent runs (default 20)"`
}

// showDeclarationArgs are the arguments for the show_declaration tool.
type showDeclarationArgs struct {
	Name         string `json:"name" jsonschema:"Declaration name to look up (substring match)"`
	ContextLines int    `json:"context_lines,omitempty" jsonschema:"Number of source lines to show around the declaration (default 30)"`
}

// registerTools adds MCP tools for report generation and querying.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "generate_report",
		Description: "Analyze a Swift source tree: extract per-file facts, assemble modules, compute size, comment and coupling metrics, and write output.json, report.md and dependencies.dot.",
	}, s.generateReport)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_module",
		Description: "Show one module's metrics: size, comments, fan-in/fan-out, instability, abstractness, distance from the main sequence, dependencies, dependents and submodule tree.",
	}, s.getModule)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_modules",
		Description: "List analyzed modules with their key metrics as a table.",
	}, s.listModules)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query_files",
		Description: "Query per-file facts by module, path prefix, declaration or import. Returns matching files as JSON.",
	}, s.queryFiles)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "module_dependencies",
		Description: "Traverse the module import graph from a module, forward or reverse, with depth and size limits.",
	}, s.moduleDependencies)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "dependency_path",
		Description: "Find the shortest import path between two modules.",
	}, s.dependencyPath)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "module_history",
		Description: "Show how a module's metrics, or the run totals, changed over previous reports.",
	}, s.moduleHistory)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "show_declaration",
		Description: "Show source code around a protocol, struct, class or function declaration found in the last report.",
	}, s.showDeclaration)
}

func (s *Server) generateReport(ctx context.Context, req *mcp.CallToolRequest, args generateReportArgs) (*mcp.CallToolResult, any, error) {
	sourcePath := args.SourcePath
	if sourcePath == "" {
		sourcePath = s.cfg.Source
	}

	absRoot, err := filepath.Abs(sourcePath)
	if err != nil {
		return errorResult(fmt.Sprintf("invalid source path: %v", err)), nil, nil
	}

	snap, err := s.eng.Run(ctx, absRoot)
	if errors.Is(err, engine.ErrNoSourceFiles) {
		return textResult(fmt.Sprintf("No Swift source files found under %s. No report was produced.", absRoot)), nil, nil
	}
	if err != nil {
		return errorResult(fmt.Sprintf("report generation failed: %v", err)), nil, nil
	}

	// Write artifacts to disk
	if err := s.eng.WriteArtifacts(absRoot); err != nil {
		log.Printf("[server] warning: failed to write artifacts: %v", err)
	}

	meta := snap.Report.Meta
	total := snap.Report.Aggregate.Total
	summary := fmt.Sprintf(
		"Report generated successfully.\n\n"+
			"- Source: %s\n"+
			"- Files: %d (%d shared)\n"+
			"- Modules: %d (+%d test modules)\n"+
			"- LOC: %d, comments: %d (%.1f%%)\n"+
			"- Mean distance from main sequence: %.3f\n"+
			"- Dependency graph: %s\n"+
			"- Insights: %d\n"+
			"- Artifacts: %d\n"+
			"- Duration: %dms\n\n"+
			"Use the metrics://report/markdown resource to read the summary.",
		meta.Root, meta.Files, meta.SharedFiles, meta.Modules, meta.TestModules,
		total.LOC, total.CommentCount, total.POC,
		snap.Report.MainSequence.MeanDistance, snap.Graph.Summary(),
		len(snap.Insights), len(snap.Artifacts), meta.DurationMS,
	)
	return textResult(summary), nil, nil
}

// moduleView is the get_module response.
type moduleView struct {
	Name        string               `json:"name"`
	CompactName string               `json:"compact_name"`
	IsTest      bool                 `json:"is_test"`
	Files       int                  `json:"files"`
	Metrics     report.ModuleBody    `json:"metrics"`
	Internal    []modules.Dependency `json:"internal_dependencies"`
	External    []modules.Dependency `json:"external_dependencies"`
	Dependents  []modules.Dependency `json:"dependents"`
	SharedFiles []string             `json:"shared_files,omitempty"`
}

func (s *Server) getModule(ctx context.Context, req *mcp.CallToolRequest, args getModuleArgs) (*mcp.CallToolResult, any, error) {
	snap := s.eng.Snapshot()
	if snap == nil {
		return errorResult(noReportMsg), nil, nil
	}
	if args.Name == "" {
		return errorResult("name is required"), nil, nil
	}

	m, ok := findModule(snap, args.Name)
	if !ok {
		return errorResult(fmt.Sprintf("Module %q not found. Use list_modules to see available modules.", args.Name)), nil, nil
	}
	entry, _ := snap.Report.Module(m.Name)

	view := moduleView{
		Name:        m.Name,
		CompactName: m.CompactName(),
		IsTest:      m.IsTest,
		Files:       m.FileCount(),
		Metrics:     entry.Body,
		Internal:    metrics.InternalDependencies(m, snap.Modules, snap.System),
		External:    metrics.ExternalDependencies(m, snap.Modules, snap.System),
		Dependents:  []modules.Dependency{},
	}
	for _, e := range snap.Graph.Reverse(m.Name) {
		view.Dependents = append(view.Dependents, modules.Dependency{Source: e.Target, Target: m.Name, Count: e.Count})
	}
	for _, sf := range snap.Shared {
		for _, owner := range sf.Owners {
			if owner == m.Name {
				view.SharedFiles = append(view.SharedFiles, sf.Fact.Path)
			}
		}
	}

	return jsonResult(view)
}

func (s *Server) listModules(ctx context.Context, req *mcp.CallToolRequest, args listModulesArgs) (*mcp.CallToolResult, any, error) {
	snap := s.eng.Snapshot()
	if snap == nil {
		return errorResult(noReportMsg), nil, nil
	}

	entries := snap.Report.NonTest
	if args.Tests {
		entries = snap.Report.Tests
	}
	entries = append([]report.ModuleEntry(nil), entries...)

	key, err := sortKey(args.SortBy)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	if key != nil {
		sort.SliceStable(entries, func(i, j int) bool { return key(entries[i]) > key(entries[j]) })
	}

	var sb strings.Builder
	if args.Tests {
		sb.WriteString(fmt.Sprintf("%d test modules\n\n", len(entries)))
		sb.WriteString("| Module | LOC | POC | Methods | Tests |\n")
		sb.WriteString("|--------|-----|-----|---------|-------|\n")
		for _, e := range entries {
			b := e.Body
			sb.WriteString(fmt.Sprintf("| %s | %d | %.1f%% | %d | %d |\n", e.Name, b.LOC, b.POC, b.NOM, b.NOT))
		}
		return textResult(sb.String()), nil, nil
	}

	sb.WriteString(fmt.Sprintf("%d modules\n\n", len(entries)))
	sb.WriteString("| Module | LOC | POC | Fan-in | Fan-out | I | A | D |\n")
	sb.WriteString("|--------|-----|-----|--------|---------|---|---|---|\n")
	for _, e := range entries {
		b := e.Body
		sb.WriteString(fmt.Sprintf("| %s | %d | %.1f%% | %d | %d | %.2f | %.2f | %.2f |\n",
			e.Name, b.LOC, b.POC, intOrZero(b.FanIn), intOrZero(b.FanOut),
			floatOrZero(b.I), floatOrZero(b.A), floatOrZero(b.D3)))
	}
	return textResult(sb.String()), nil, nil
}

// sortKey returns a descending sort key for list_modules, nil for name order.
func sortKey(by string) (func(report.ModuleEntry) float64, error) {
	switch by {
	case "", "name":
		return nil, nil
	case "loc":
		return func(e report.ModuleEntry) float64 { return float64(e.Body.LOC) }, nil
	case "distance":
		return func(e report.ModuleEntry) float64 { return floatOrZero(e.Body.D3) }, nil
	case "instability":
		return func(e report.ModuleEntry) float64 { return floatOrZero(e.Body.I) }, nil
	case "fan_in":
		return func(e report.ModuleEntry) float64 { return float64(intOrZero(e.Body.FanIn)) }, nil
	case "fan_out":
		return func(e report.ModuleEntry) float64 { return float64(intOrZero(e.Body.FanOut)) }, nil
	default:
		return nil, fmt.Errorf("unknown sort_by %q (use name, loc, distance, instability, fan_in or fan_out)", by)
	}
}

func (s *Server) queryFiles(ctx context.Context, req *mcp.CallToolRequest, args queryFilesArgs) (*mcp.CallToolResult, any, error) {
	store := s.eng.Store()
	if store.Count() == 0 {
		return errorResult("No file facts available. Run generate_report first."), nil, nil
	}

	results, total := store.Query(facts.QueryOpts{
		Module:     args.Module,
		PathPrefix: args.PathPrefix,
		Declares:   args.Declares,
		Imports:    args.Imports,
		TestOnly:   args.TestsOnly,
		Limit:      args.Limit,
	})
	if results == nil {
		results = []facts.FileFact{}
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to marshal results: %v", err)), nil, nil
	}

	text := string(data)
	if total > len(results) {
		text += fmt.Sprintf("\n\n... (showing %d of %d results, refine your query)", len(results), total)
	}
	return textResult(text), nil, nil
}

func (s *Server) moduleDependencies(ctx context.Context, req *mcp.CallToolRequest, args moduleDependenciesArgs) (*mcp.CallToolResult, any, error) {
	snap := s.eng.Snapshot()
	if snap == nil {
		return errorResult(noReportMsg), nil, nil
	}

	direction := args.Direction
	if direction == "" {
		direction = "forward"
	}
	if direction != "forward" && direction != "reverse" {
		return errorResult(fmt.Sprintf("unknown direction %q (use forward or reverse)", direction)), nil, nil
	}

	m, ok := findModule(snap, args.Name)
	if !ok || !snap.Graph.Has(m.Name) {
		return errorResult(fmt.Sprintf("Module %q is not a non-test module of the last report.", args.Name)), nil, nil
	}

	return jsonResult(snap.Graph.Traverse(m.Name, direction, args.MaxDepth, args.MaxNodes))
}

func (s *Server) dependencyPath(ctx context.Context, req *mcp.CallToolRequest, args dependencyPathArgs) (*mcp.CallToolResult, any, error) {
	snap := s.eng.Snapshot()
	if snap == nil {
		return errorResult(noReportMsg), nil, nil
	}

	from, ok := findModule(snap, args.From)
	if !ok {
		return errorResult(fmt.Sprintf("Module %q not found.", args.From)), nil, nil
	}
	to, ok := findModule(snap, args.To)
	if !ok {
		return errorResult(fmt.Sprintf("Module %q not found.", args.To)), nil, nil
	}

	return jsonResult(snap.Graph.FindPath(from.Name, to.Name, args.MaxDepth))
}

func (s *Server) moduleHistory(ctx context.Context, req *mcp.CallToolRequest, args moduleHistoryArgs) (*mcp.CallToolResult, any, error) {
	if s.history == nil {
		return errorResult("History is disabled. Set history.enabled in the configuration."), nil, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = 20
	}

	if args.Name == "" {
		runs, err := s.history.Runs(ctx, limit)
		if err != nil {
			return errorResult(fmt.Sprintf("loading runs: %v", err)), nil, nil
		}
		return jsonResult(runs)
	}

	points, err := s.history.Trend(ctx, args.Name, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("loading history for %s: %v", args.Name, err)), nil, nil
	}
	if len(points) == 0 {
		return errorResult(fmt.Sprintf("No history recorded for module %q.", args.Name)), nil, nil
	}
	return jsonResult(points)
}

func (s *Server) showDeclaration(ctx context.Context, req *mcp.CallToolRequest, args showDeclarationArgs) (*mcp.CallToolResult, any, error) {
	snap := s.eng.Snapshot()
	if snap == nil {
		return errorResult(noReportMsg), nil, nil
	}
	if args.Name == "" {
		return errorResult("name is required"), nil, nil
	}

	results, _ := s.eng.Store().Query(facts.QueryOpts{Declares: args.Name, Limit: 5})
	if len(results) == 0 {
		return errorResult(fmt.Sprintf("No declarations matching %q", args.Name)), nil, nil
	}

	contextLines := args.ContextLines
	if contextLines <= 0 {
		contextLines = 30
	}

	root := snap.Report.Meta.Root
	var sb strings.Builder
	for i, f := range results {
		if i > 0 {
			sb.WriteString("\n---\n\n")
		}

		sb.WriteString(fmt.Sprintf("### %s\n", f.Path))
		sb.WriteString(fmt.Sprintf("Modules: %s\n\n", strings.Join(f.Modules, ", ")))

		absFile := filepath.Join(root, filepath.FromSlash(f.Path))
		line, err := findDeclarationLine(absFile, args.Name)
		if err != nil {
			sb.WriteString(fmt.Sprintf("_Could not read source: %v_\n", err))
			continue
		}
		source, err := readSourceWindow(absFile, line, contextLines)
		if err != nil {
			sb.WriteString(fmt.Sprintf("_Could not read source: %v_\n", err))
			continue
		}
		sb.WriteString(fmt.Sprintf("```swift\n%s```\n", source))
	}

	return textResult(sb.String()), nil, nil
}

// findDeclarationLine returns the 1-based line of the first declaration
// whose name contains name, or 1 when none is found.
func findDeclarationLine(absFile, name string) (int, error) {
	re := regexp.MustCompile(`\b(?:protocol|struct|class|func)\s+\w*` + regexp.QuoteMeta(name))

	f, err := os.Open(absFile)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 1; scanner.Scan(); n++ {
		if re.MatchString(scanner.Text()) {
			return n, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 1, nil
}

// readSourceWindow reads lines from a file centered around the given line number.
func readSourceWindow(absFile string, centerLine, contextLines int) (string, error) {
	data, err := os.ReadFile(absFile)
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(data), "\n")
	startLine := centerLine - contextLines/2
	if startLine < 1 {
		startLine = 1
	}
	endLine := centerLine + contextLines/2
	if endLine > len(lines) {
		endLine = len(lines)
	}

	var sb strings.Builder
	for i := startLine; i <= endLine; i++ {
		sb.WriteString(fmt.Sprintf("%4d│ %s\n", i, lines[i-1]))
	}
	return sb.String(), nil
}

// findModule looks a module up by exact, then case-insensitive, name.
func findModule(snap *report.Snapshot, name string) (*modules.Module, bool) {
	if m, ok := snap.Module(name); ok {
		return m, true
	}
	for _, m := range snap.Modules {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return nil, false
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func floatOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to marshal result: %v", err)), nil, nil
	}
	return textResult(string(data)), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
