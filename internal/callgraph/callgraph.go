// Package callgraph maintains the bidirectional caller/callee multigraph
// keyed by USR (spec §4.4). It supports incremental updates so the indexer
// can remove a single file's contribution without rebuilding the whole
// graph.
package callgraph

import "sync"

// Graph is a bidirectional call multigraph: for every edge caller->callee it
// keeps both the forward (callees) and reverse (callers) adjacency so
// find_callers and find_callees are both O(1) lookups rather than one of
// them requiring a full scan.
type Graph struct {
	mu       sync.RWMutex
	callees  map[string]map[string]bool // caller USR -> set of callee USRs
	callers  map[string]map[string]bool // callee USR -> set of caller USRs
}

// New returns an empty call graph.
func New() *Graph {
	return &Graph{
		callees: make(map[string]map[string]bool),
		callers: make(map[string]map[string]bool),
	}
}

// AddCall records a caller->callee edge. Empty USRs are ignored; an edge
// with no callee or no caller identity carries no information a query
// could ever resolve.
func (g *Graph) AddCall(callerUSR, calleeUSR string) {
	if callerUSR == "" || calleeUSR == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addLocked(callerUSR, calleeUSR)
}

func (g *Graph) addLocked(caller, callee string) {
	if g.callees[caller] == nil {
		g.callees[caller] = make(map[string]bool)
	}
	g.callees[caller][callee] = true
	if g.callers[callee] == nil {
		g.callers[callee] = make(map[string]bool)
	}
	g.callers[callee][caller] = true
}

// Clear removes every edge.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.callees = make(map[string]map[string]bool)
	g.callers = make(map[string]map[string]bool)
}

// RemoveSymbol deletes usr from the graph entirely: every edge where usr is
// the caller or the callee is removed, and the reverse-side entries for
// its neighbors are cleaned up so no dangling empty sets remain.
func (g *Graph) RemoveSymbol(usr string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if callees, ok := g.callees[usr]; ok {
		for callee := range callees {
			delete(g.callers[callee], usr)
			if len(g.callers[callee]) == 0 {
				delete(g.callers, callee)
			}
		}
		delete(g.callees, usr)
	}

	if callers, ok := g.callers[usr]; ok {
		for caller := range callers {
			delete(g.callees[caller], usr)
			if len(g.callees[caller]) == 0 {
				delete(g.callees, caller)
			}
		}
		delete(g.callers, usr)
	}
}

// Rebuild replaces the graph's contents with the edges given, keyed by
// caller USR -> callee USRs. Used when the global cache reloads from disk.
func (g *Graph) Rebuild(edges map[string][]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.callees = make(map[string]map[string]bool)
	g.callers = make(map[string]map[string]bool)
	for caller, callees := range edges {
		for _, callee := range callees {
			g.addLocked(caller, callee)
		}
	}
}

// FindCallers returns every USR with a recorded edge into functionUSR.
func (g *Graph) FindCallers(functionUSR string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return keys(g.callers[functionUSR])
}

// FindCallees returns every USR functionUSR has a recorded edge to.
func (g *Graph) FindCallees(functionUSR string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return keys(g.callees[functionUSR])
}

func keys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// CallPaths finds every simple call path from fromUSR to toUSR, descending
// at most maxDepth edges. A single-node path is returned when the two USRs
// are equal. Cycles are broken by excluding any USR already on the current
// path, since the source analyzer's unbounded DFS can otherwise loop
// forever on a recursive call graph.
func (g *Graph) CallPaths(fromUSR, toUSR string, maxDepth int) [][]string {
	if fromUSR == toUSR {
		return [][]string{{fromUSR}}
	}
	if maxDepth <= 0 {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[string]bool{fromUSR: true}
	return g.walkPaths(fromUSR, toUSR, maxDepth, visited)
}

func (g *Graph) walkPaths(from, to string, depth int, visited map[string]bool) [][]string {
	if depth <= 0 {
		return nil
	}

	var paths [][]string
	for callee := range g.callees[from] {
		if callee == to {
			paths = append(paths, []string{from, to})
			continue
		}
		if visited[callee] {
			continue
		}
		visited[callee] = true
		for _, sub := range g.walkPaths(callee, to, depth-1, visited) {
			paths = append(paths, append([]string{from}, sub...))
		}
		delete(visited, callee)
	}
	return paths
}

// Statistics summarizes call-graph shape for get_server_status.
type Statistics struct {
	FunctionsWithCalls    int
	FunctionsBeingCalled  int
	TotalUniqueCalls      int
	MostCalledFunctions   []UsageCount
	FunctionsWithMostCalls []UsageCount
}

// UsageCount pairs a USR with an edge count, used for the top-N summaries
// in Statistics.
type UsageCount struct {
	USR   string
	Count int
}

// Statistics computes aggregate call-graph counters, including the top-10
// most-called and most-calling functions.
func (g *Graph) Statistics() Statistics {
	g.mu.RLock()
	defer g.mu.RUnlock()

	total := 0
	for _, callees := range g.callees {
		total += len(callees)
	}

	return Statistics{
		FunctionsWithCalls:     len(g.callees),
		FunctionsBeingCalled:   len(g.callers),
		TotalUniqueCalls:       total,
		MostCalledFunctions:    topN(g.callers, 10),
		FunctionsWithMostCalls: topN(g.callees, 10),
	}
}

func topN(adjacency map[string]map[string]bool, n int) []UsageCount {
	counts := make([]UsageCount, 0, len(adjacency))
	for usr, set := range adjacency {
		counts = append(counts, UsageCount{USR: usr, Count: len(set)})
	}
	for i := 1; i < len(counts); i++ {
		for j := i; j > 0 && counts[j].Count > counts[j-1].Count; j-- {
			counts[j], counts[j-1] = counts[j-1], counts[j]
		}
	}
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}
