package graph

import "sort"

// BreakFunc decides whether the edge from -> to may be ignored to resolve a
// cycle. labels holds every label coalesced onto that edge.
type BreakFunc[V comparable, E any] func(from, to V, labels []E) bool

// TopologicalSort orders the vertices so that every vertex appears after all
// of its predecessors. Ties are broken by insertion order.
//
// When the graph contains a cycle, canBreakEdge (if non-nil) is consulted for
// an edge inside the unsorted remainder that may be ignored; sorting resumes
// once one is found. If no edge can be broken a *CycleError is returned. The
// graph itself is never modified.
func (g *Graph[V, E]) TopologicalSort(canBreakEdge BreakFunc[V, E]) ([]V, error) {
	waves, err := g.BatchingTopologicalSort(canBreakEdge)
	if err != nil {
		return nil, err
	}
	out := make([]V, 0, len(g.vertices))
	for _, w := range waves {
		out = append(out, w...)
	}
	return out, nil
}

// BatchingTopologicalSort groups the vertices into waves. Every predecessor
// of a vertex in wave n is in a wave before n, so the vertices of one wave
// are independent of each other. Cycle handling matches TopologicalSort.
func (g *Graph[V, E]) BatchingTopologicalSort(canBreakEdge BreakFunc[V, E]) ([][]V, error) {
	idxWaves, err := g.sortIndices(canBreakEdge)
	if err != nil {
		return nil, err
	}
	waves := make([][]V, 0, len(idxWaves))
	for _, w := range idxWaves {
		waves = append(waves, g.values(w))
	}
	return waves, nil
}

type edgeKey struct{ from, to int }

func (g *Graph[V, E]) sortIndices(canBreakEdge BreakFunc[V, E]) ([][]int, error) {
	n := len(g.vertices)
	counts := make([]int, n)
	for i := range g.vertices {
		for _, j := range g.succOrder[i] {
			counts[j]++
		}
	}

	done := make([]bool, n)
	broken := make(map[edgeKey]bool)
	var ready []int
	for i := 0; i < n; i++ {
		if counts[i] == 0 {
			ready = append(ready, i)
		}
	}

	var waves [][]int
	sorted := 0
	for sorted < n {
		if len(ready) == 0 {
			if canBreakEdge == nil {
				return nil, g.cycleError(done, broken)
			}
			e, ok := g.findBreakableEdge(done, broken, canBreakEdge)
			if !ok {
				return nil, g.cycleError(done, broken)
			}
			broken[e] = true
			counts[e.to]--
			if counts[e.to] == 0 {
				ready = append(ready, e.to)
			}
			continue
		}

		wave := ready
		ready = nil
		for _, i := range wave {
			done[i] = true
		}
		sorted += len(wave)
		for _, i := range wave {
			for _, j := range g.succOrder[i] {
				if broken[edgeKey{i, j}] || done[j] {
					continue
				}
				counts[j]--
				if counts[j] == 0 {
					ready = append(ready, j)
				}
			}
		}
		sort.Ints(ready)
		waves = append(waves, wave)
	}
	return waves, nil
}

// findBreakableEdge scans the unsorted vertices in insertion order for the
// first edge the caller allows to be broken. Only edges inside a strongly
// connected component of the remainder are candidates; an edge on no cycle
// is a real ordering constraint.
func (g *Graph[V, E]) findBreakableEdge(done []bool, broken map[edgeKey]bool, canBreakEdge BreakFunc[V, E]) (edgeKey, bool) {
	comp := g.components(done, broken)
	for i := range g.vertices {
		if done[i] {
			continue
		}
		for _, j := range g.succOrder[i] {
			k := edgeKey{i, j}
			if done[j] || broken[k] || comp[i] != comp[j] {
				continue
			}
			if canBreakEdge(g.vertices[i], g.vertices[j], g.succ[i][j]) {
				return k, true
			}
		}
	}
	return edgeKey{}, false
}

// components labels the strongly connected components of the unsorted
// vertices over the edges not yet broken (Tarjan). Sorted vertices get -1.
func (g *Graph[V, E]) components(done []bool, broken map[edgeKey]bool) []int {
	n := len(g.vertices)
	comp := make([]int, n)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range comp {
		comp[i], index[i] = -1, -1
	}
	var stack []int
	next, count := 0, 0
	var visit func(v int)
	visit = func(v int) {
		index[v], low[v] = next, next
		next++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range g.succOrder[v] {
			if done[w] || broken[edgeKey{v, w}] {
				continue
			}
			if index[w] < 0 {
				visit(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}
		if low[v] != index[v] {
			return
		}
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			comp[w] = count
			if w == v {
				break
			}
		}
		count++
	}
	for i := 0; i < n; i++ {
		if !done[i] && index[i] < 0 {
			visit(i)
		}
	}
	return comp
}

// cycleError reconstructs one cycle among the unsorted vertices. Every
// unsorted vertex still has an unsorted predecessor over a live edge, so
// walking predecessors from any of them must revisit a vertex.
func (g *Graph[V, E]) cycleError(done []bool, broken map[edgeKey]bool) error {
	start := -1
	for i := range g.vertices {
		if !done[i] {
			start = i
			break
		}
	}
	if start < 0 {
		return &CycleError[V]{}
	}

	seenAt := make(map[int]int)
	var walk []int
	cur := start
	for {
		if pos, ok := seenAt[cur]; ok {
			walk = walk[pos:]
			break
		}
		seenAt[cur] = len(walk)
		walk = append(walk, cur)
		next := -1
		for _, p := range g.pred[cur] {
			if !done[p] && !broken[edgeKey{p, cur}] {
				next = p
				break
			}
		}
		if next < 0 {
			return &CycleError[V]{Path: g.values(walk)}
		}
		cur = next
	}

	// walk follows predecessor links; flip it into edge direction and close it.
	path := make([]V, 0, len(walk)+1)
	for i := len(walk) - 1; i >= 0; i-- {
		path = append(path, g.vertices[walk[i]])
	}
	path = append(path, path[0])
	return &CycleError[V]{Path: path}
}
