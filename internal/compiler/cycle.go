package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/kforge/internal/ir"
)

// CycleWarning reports a recursive call cycle among a kernel and its
// callees.
//
// Cycles are warnings, not errors: the SPIR-V backend accepts them, and
// the OpenCL backend emits each function once. Device compilers may still
// reject the result.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["f", "g", "f"]
	Message string   `json:"message"` // Human-readable description
}

// callGraph maps a function name to the callees it calls, in first-call
// order.
type callGraph struct {
	names []string
	edges map[string][]string
}

// AnalyzeCalls builds the call graph of entry and callees and reports
// every strongly connected component that forms a cycle. Calls to names
// outside the set (intrinsics) are ignored.
//
// The algorithm:
//  1. Collect call targets per function from its Call nodes
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-call as a warning
//
// Results are ordered by the position of the component's first function
// in [entry, callees...].
func AnalyzeCalls(entry *ir.Graph, callees []*ir.Graph) []CycleWarning {
	graph := buildCallGraph(entry, callees)
	var warnings []CycleWarning
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	return warnings
}

func buildCallGraph(entry *ir.Graph, callees []*ir.Graph) callGraph {
	fns := append([]*ir.Graph{entry}, callees...)
	known := make(map[string]bool, len(fns))
	for _, g := range fns {
		known[g.Name] = true
	}
	graph := callGraph{edges: make(map[string][]string)}
	for _, g := range fns {
		if _, dup := graph.edges[g.Name]; dup {
			continue
		}
		graph.names = append(graph.names, g.Name)
		graph.edges[g.Name] = []string{}
		seen := map[string]bool{}
		for _, call := range g.NodesOf(ir.OpCall) {
			if known[call.Name] && !seen[call.Name] {
				seen[call.Name] = true
				graph.edges[g.Name] = append(graph.edges[g.Name], call.Name)
			}
		}
	}
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph callGraph) bool {
	for _, neighbor := range graph.edges[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Components are returned in order of their root's position in
// graph.names; members are listed from the root along the call order.
func tarjanSCC(graph callGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		roots   = make(map[string][]string)
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component
		if lowlink[v] == indices[v] {
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
			// Popped in reverse discovery order; put the root first.
			for i, j := 0, len(scc)-1; i < j; i, j = i+1, j-1 {
				scc[i], scc[j] = scc[j], scc[i]
			}
			roots[v] = scc
		}
	}

	for _, node := range graph.names {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	var sccs [][]string
	for _, node := range graph.names {
		if scc, ok := roots[node]; ok {
			sccs = append(sccs, scc)
		}
	}
	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(scc []string, graph callGraph) CycleWarning {
	if len(scc) == 1 {
		fn := scc[0]
		return CycleWarning{
			Path:    []string{fn, fn},
			Message: fmt.Sprintf("Recursive call detected: %s → %s", fn, fn),
		}
	}
	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Recursive call cycle detected: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath follows call edges from the first SCC member through
// unvisited members until it returns to the start.
func reconstructCyclePath(scc []string, graph callGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph.edges[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
