// Package graph implements the directed multigraph used to order build
// vertices, detect dependency cycles and prune unreachable vertices.
package graph

// Graph is a directed multigraph. Parallel edges between the same ordered
// pair of vertices are coalesced into one successor entry that carries every
// edge label added for that pair.
//
// Graph is not safe for concurrent mutation. Once populated, the read-only
// queries (sorts, reachability, successor lookups) may be called from
// multiple goroutines.
type Graph[V comparable, E any] struct {
	vertices []V
	index    map[V]int

	// succ[i] holds the labels for every edge i -> j, keyed by j.
	succ      []map[int][]E
	succOrder [][]int // j values of succ[i] in first-insertion order
	pred      [][]int // distinct predecessors in first-insertion order
}

// New returns an empty graph.
func New[V comparable, E any]() *Graph[V, E] {
	return &Graph[V, E]{index: make(map[V]int)}
}

// AddVertex adds v if it is not already present and reports whether it was added.
func (g *Graph[V, E]) AddVertex(v V) bool {
	if _, ok := g.index[v]; ok {
		return false
	}
	g.index[v] = len(g.vertices)
	g.vertices = append(g.vertices, v)
	g.succ = append(g.succ, nil)
	g.succOrder = append(g.succOrder, nil)
	g.pred = append(g.pred, nil)
	return true
}

// AddEdge adds a directed edge from -> to labelled e. Missing vertices are
// added. In sort order, from is placed before to.
func (g *Graph[V, E]) AddEdge(from, to V, e E) {
	g.AddVertex(from)
	g.AddVertex(to)
	i, j := g.index[from], g.index[to]
	if g.succ[i] == nil {
		g.succ[i] = make(map[int][]E)
	}
	labels, exists := g.succ[i][j]
	g.succ[i][j] = append(labels, e)
	if !exists {
		g.succOrder[i] = append(g.succOrder[i], j)
		g.pred[j] = append(g.pred[j], i)
	}
}

// HasVertex reports whether v is in the graph.
func (g *Graph[V, E]) HasVertex(v V) bool {
	_, ok := g.index[v]
	return ok
}

// Len returns the number of vertices.
func (g *Graph[V, E]) Len() int { return len(g.vertices) }

// Vertices returns the vertices in insertion order.
func (g *Graph[V, E]) Vertices() []V {
	out := make([]V, len(g.vertices))
	copy(out, g.vertices)
	return out
}

// Successors returns the distinct vertices v has an edge to.
func (g *Graph[V, E]) Successors(v V) []V {
	i, ok := g.index[v]
	if !ok {
		return nil
	}
	return g.values(g.succOrder[i])
}

// Predecessors returns the distinct vertices with an edge to v.
func (g *Graph[V, E]) Predecessors(v V) []V {
	i, ok := g.index[v]
	if !ok {
		return nil
	}
	return g.values(g.pred[i])
}

// Edges returns the labels of every edge from -> to.
func (g *Graph[V, E]) Edges(from, to V) []E {
	i, ok := g.index[from]
	if !ok {
		return nil
	}
	j, ok := g.index[to]
	if !ok || g.succ[i] == nil {
		return nil
	}
	labels := g.succ[i][j]
	out := make([]E, len(labels))
	copy(out, labels)
	return out
}

// Reverse returns a new graph with every edge direction flipped. Vertex
// insertion order is preserved.
func (g *Graph[V, E]) Reverse() *Graph[V, E] {
	r := New[V, E]()
	for _, v := range g.vertices {
		r.AddVertex(v)
	}
	for i, v := range g.vertices {
		for _, j := range g.succOrder[i] {
			for _, e := range g.succ[i][j] {
				r.AddEdge(g.vertices[j], v, e)
			}
		}
	}
	return r
}

// GetUnreachableVertices walks forward from roots and returns every vertex
// that was not visited. Roots that are not in the graph are ignored.
func (g *Graph[V, E]) GetUnreachableVertices(roots []V) map[V]struct{} {
	visited := make([]bool, len(g.vertices))
	queue := make([]int, 0, len(roots))
	for _, r := range roots {
		if i, ok := g.index[r]; ok && !visited[i] {
			visited[i] = true
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		for _, j := range g.succOrder[i] {
			if !visited[j] {
				visited[j] = true
				queue = append(queue, j)
			}
		}
	}
	out := make(map[V]struct{})
	for i, seen := range visited {
		if !seen {
			out[g.vertices[i]] = struct{}{}
		}
	}
	return out
}

func (g *Graph[V, E]) values(idx []int) []V {
	out := make([]V, 0, len(idx))
	for _, i := range idx {
		out = append(out, g.vertices[i])
	}
	return out
}
