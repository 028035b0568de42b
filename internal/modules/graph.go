package modules

import (
	"sort"
	"strconv"
	"strings"
)

// Graph provides adjacency-list indexes and traversal operations over the
// import edges between a fixed group of modules. Imports of modules outside
// the group are not edges.
type Graph struct {
	forward map[string][]Edge // module name → outgoing edges
	reverse map[string][]Edge // module name → incoming edges
	nodes   map[string]*Module
	names   []string // sorted
}

// Edge is a directed, weighted import relationship.
type Edge struct {
	Target string // target module (forward) or source module (reverse)
	Count  int    // import statements behind the edge
}

// TraversalResult holds the output of a graph traversal.
type TraversalResult struct {
	Nodes []TraversalNode `json:"nodes"`
	Edges []Dependency    `json:"edges"`
	Stats TraversalStats  `json:"stats"`
}

// TraversalNode is a node visited during traversal.
type TraversalNode struct {
	Name   string `json:"name"`
	IsTest bool   `json:"is_test"`
	Files  int    `json:"files"`
	Depth  int    `json:"depth"`
}

// TraversalStats summarizes a traversal.
type TraversalStats struct {
	NodesVisited    int  `json:"nodes_visited"`
	EdgesTraversed  int  `json:"edges_traversed"`
	MaxDepthReached int  `json:"max_depth_reached"`
	Truncated       bool `json:"truncated"`
}

// PathResult holds a shortest-path result.
type PathResult struct {
	From  string          `json:"from"`
	To    string          `json:"to"`
	Found bool            `json:"found"`
	Path  []TraversalNode `json:"path,omitempty"`
}

// NewGraph builds the import graph between mods. Self-imports are ignored.
func NewGraph(mods []*Module) *Graph {
	g := &Graph{
		forward: make(map[string][]Edge),
		reverse: make(map[string][]Edge),
		nodes:   make(map[string]*Module, len(mods)),
	}
	for _, m := range mods {
		g.nodes[m.Name] = m
		g.names = append(g.names, m.Name)
	}
	sort.Strings(g.names)

	for _, name := range g.names {
		m := g.nodes[name]
		for _, target := range m.ImportNames() {
			if target == name {
				continue
			}
			if _, ok := g.nodes[target]; !ok {
				continue
			}
			count := m.ImportCount(target)
			g.forward[name] = append(g.forward[name], Edge{Target: target, Count: count})
			g.reverse[target] = append(g.reverse[target], Edge{Target: name, Count: count})
		}
	}
	return g
}

// Has reports whether the named module is a node of the graph.
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Forward returns the outgoing edges of a module.
func (g *Graph) Forward(name string) []Edge {
	return g.forward[name]
}

// Reverse returns the incoming edges of a module.
func (g *Graph) Reverse(name string) []Edge {
	return g.reverse[name]
}

// Edges returns every edge, ordered by source then target.
func (g *Graph) Edges() []Dependency {
	var deps []Dependency
	for _, name := range g.names {
		for _, e := range g.forward[name] {
			deps = append(deps, Dependency{Source: name, Target: e.Target, Count: e.Count})
		}
	}
	return deps
}

// NodeCount returns the number of modules in the graph.
func (g *Graph) NodeCount() int {
	return len(g.names)
}

// EdgeCount returns the total number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, edges := range g.forward {
		count += len(edges)
	}
	return count
}

// Traverse performs a BFS traversal from the given start node.
// direction is "forward" (what start depends on) or "reverse" (what depends on start).
// maxDepth limits traversal depth (0 = use default 5).
// maxNodes limits total returned nodes (0 = use default 100).
func (g *Graph) Traverse(start, direction string, maxDepth, maxNodes int) TraversalResult {
	if maxDepth <= 0 {
		maxDepth = 5
	}
	if maxDepth > 20 {
		maxDepth = 20
	}
	if maxNodes <= 0 {
		maxNodes = 100
	}
	if maxNodes > 500 {
		maxNodes = 500
	}

	adj := g.forward
	if direction == "reverse" {
		adj = g.reverse
	}

	var result TraversalResult
	visited := make(map[string]bool)

	type queueItem struct {
		name  string
		depth int
	}

	visited[start] = true
	queue := []queueItem{{name: start, depth: 0}}
	result.Nodes = append(result.Nodes, g.nodeFor(start, 0))

	truncated := false
	maxDepthReached := 0

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if item.depth >= maxDepth {
			continue
		}

		for _, e := range adj[item.name] {
			result.Stats.EdgesTraversed++

			if direction == "reverse" {
				result.Edges = append(result.Edges, Dependency{Source: e.Target, Target: item.name, Count: e.Count})
			} else {
				result.Edges = append(result.Edges, Dependency{Source: item.name, Target: e.Target, Count: e.Count})
			}

			if visited[e.Target] {
				continue
			}
			visited[e.Target] = true

			newDepth := item.depth + 1
			if newDepth > maxDepthReached {
				maxDepthReached = newDepth
			}

			if len(result.Nodes) >= maxNodes {
				truncated = true
				continue
			}

			result.Nodes = append(result.Nodes, g.nodeFor(e.Target, newDepth))
			queue = append(queue, queueItem{name: e.Target, depth: newDepth})
		}
	}

	result.Stats.NodesVisited = len(visited)
	result.Stats.MaxDepthReached = maxDepthReached
	result.Stats.Truncated = truncated

	return result
}

// FindPath finds the shortest import path between two modules using BFS.
// maxDepth limits search depth (0 = use default 10).
func (g *Graph) FindPath(from, to string, maxDepth int) PathResult {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	if maxDepth > 20 {
		maxDepth = 20
	}

	if from == to {
		return PathResult{From: from, To: to, Found: true, Path: []TraversalNode{g.nodeFor(from, 0)}}
	}

	type queueItem struct {
		name  string
		depth int
	}

	visited := map[string]bool{from: true}
	parent := make(map[string]string) // child → parent
	queue := []queueItem{{name: from, depth: 0}}

	found := false
	for len(queue) > 0 && !found {
		item := queue[0]
		queue = queue[1:]

		if item.depth >= maxDepth {
			continue
		}

		for _, e := range g.forward[item.name] {
			if visited[e.Target] {
				continue
			}
			visited[e.Target] = true
			parent[e.Target] = item.name

			if e.Target == to {
				found = true
				break
			}
			queue = append(queue, queueItem{name: e.Target, depth: item.depth + 1})
		}
	}

	result := PathResult{From: from, To: to, Found: found}
	if !found {
		return result
	}

	var path []string
	for cur := to; cur != from; cur = parent[cur] {
		path = append(path, cur)
	}
	path = append(path, from)

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	for i, name := range path {
		result.Path = append(result.Path, g.nodeFor(name, i))
	}
	return result
}

// Cycles returns the strongly connected components with more than one
// module, each ordered by discovery, using Tarjan's algorithm.
func (g *Graph) Cycles() [][]string {
	var cycles [][]string
	for _, scc := range g.tarjanSCC() {
		if len(scc) > 1 {
			cycles = append(cycles, scc)
		}
	}
	return cycles
}

// FormatCycle renders a cycle as "A -> B -> A".
func FormatCycle(cycle []string) string {
	if len(cycle) == 0 {
		return ""
	}
	return strings.Join(cycle, " -> ") + " -> " + cycle[0]
}

func (g *Graph) tarjanSCC() [][]string {
	var (
		index    int
		stack    []string
		onStack  = make(map[string]bool)
		indices  = make(map[string]int)
		lowlinks = make(map[string]int)
		sccs     [][]string
	)

	var strongConnect func(v string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlinks[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, e := range g.forward[v] {
			w := e.Target
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				if lowlinks[w] < lowlinks[v] {
					lowlinks[v] = lowlinks[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlinks[v] {
					lowlinks[v] = indices[w]
				}
			}
		}

		// Root of an SCC
		if lowlinks[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Slice(scc, func(i, j int) bool { return indices[scc[i]] < indices[scc[j]] })
			sccs = append(sccs, scc)
		}
	}

	for _, v := range g.names {
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}

	return sccs
}

func (g *Graph) nodeFor(name string, depth int) TraversalNode {
	node := TraversalNode{Name: name, Depth: depth}
	if m, ok := g.nodes[name]; ok {
		node.IsTest = m.IsTest
		node.Files = m.FileCount()
	}
	return node
}

// Summary describes the graph size, e.g. "4 modules, 5 edges".
func (g *Graph) Summary() string {
	return strconv.Itoa(g.NodeCount()) + " modules, " + strconv.Itoa(g.EdgeCount()) + " edges"
}
