// Package projectgraph holds every dependency node of one build invocation
// and answers the ordering and reachability queries planning needs.
package projectgraph

import (
	"fmt"
	"strings"

	"github.com/k8ika0s/build-sequencer/internal/graph"
	"github.com/k8ika0s/build-sequencer/internal/model"
)

// Graph owns the nodes of one build. Nodes are stored by id and relate to
// each other through the ids in their dependency sets. It is not safe for
// concurrent mutation; read-only queries may run concurrently once built.
type Graph struct {
	nodes map[string]model.Node
	order []string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]model.Node)}
}

// Add inserts n. If a node with the same id exists the existing node is
// returned and n is discarded.
func (g *Graph) Add(n model.Node) model.Node {
	if existing, ok := g.nodes[n.ID()]; ok {
		return existing
	}
	g.nodes[n.ID()] = n
	g.order = append(g.order, n.ID())
	return n
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (model.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Project returns the project with the given id.
func (g *Graph) Project(id string) (*model.ConfiguredProject, bool) {
	p, ok := g.nodes[id].(*model.ConfiguredProject)
	return p, ok
}

// Directory returns the directory phase node with the given id.
func (g *Graph) Directory(id string) (*model.DirectoryNode, bool) {
	d, ok := g.nodes[id].(*model.DirectoryNode)
	return d, ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []model.Node {
	out := make([]model.Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Projects returns all projects in insertion order.
func (g *Graph) Projects() []*model.ConfiguredProject {
	var out []*model.ConfiguredProject
	for _, id := range g.order {
		if p, ok := g.nodes[id].(*model.ConfiguredProject); ok {
			out = append(out, p)
		}
	}
	return out
}

// Directories returns all directory phase nodes in insertion order.
func (g *Graph) Directories() []*model.DirectoryNode {
	var out []*model.DirectoryNode
	for _, id := range g.order {
		if d, ok := g.nodes[id].(*model.DirectoryNode); ok {
			out = append(out, d)
		}
	}
	return out
}

// ProjectsIn returns the projects owned by the named directory.
func (g *Graph) ProjectsIn(directory string) []*model.ConfiguredProject {
	var out []*model.ConfiguredProject
	for _, p := range g.Projects() {
		if strings.EqualFold(p.Directory, directory) {
			out = append(out, p)
		}
	}
	return out
}

// AddDependency records that from depends on to. Both nodes must exist.
func (g *Graph) AddDependency(from, to string) (bool, error) {
	src, ok := g.nodes[from]
	if !ok {
		return false, fmt.Errorf("unknown node %q", from)
	}
	dst, ok := g.nodes[to]
	if !ok {
		return false, fmt.Errorf("unknown dependency %q of %q", to, from)
	}
	return src.Dependencies().Add(dst), nil
}

// Dependents returns the ids of nodes that directly depend on id.
func (g *Graph) Dependents(id string) []string {
	var out []string
	for _, nid := range g.order {
		if g.nodes[nid].Dependencies().Contains(id) {
			out = append(out, nid)
		}
	}
	return out
}

// Remove deletes the node and every edge that points at it.
func (g *Graph) Remove(id string) bool {
	if _, ok := g.nodes[id]; !ok {
		return false
	}
	delete(g.nodes, id)
	for i, v := range g.order {
		if v == id {
			g.order = append(g.order[:i:i], g.order[i+1:]...)
			break
		}
	}
	for _, n := range g.nodes {
		n.Dependencies().Remove(id)
	}
	return true
}

// sortGraph builds a graph whose edges run from dependency to dependent, so
// a topological order lists dependencies first. Edges to ids that are not in
// the graph are ignored.
func (g *Graph) sortGraph() *graph.Graph[string, struct{}] {
	sg := graph.New[string, struct{}]()
	for _, id := range g.order {
		sg.AddVertex(id)
	}
	for _, id := range g.order {
		for _, dep := range g.nodes[id].Dependencies().IDs() {
			if _, ok := g.nodes[dep]; !ok {
				continue
			}
			sg.AddEdge(dep, id, struct{}{})
		}
	}
	return sg
}

// DependencyOrder returns node ids with every dependency before its
// dependents. canBreakEdge may be nil.
func (g *Graph) DependencyOrder(canBreakEdge graph.BreakFunc[string, struct{}]) ([]string, error) {
	return g.sortGraph().TopologicalSort(canBreakEdge)
}

// Batches groups node ids into waves; nodes within a wave have no edge
// between them and may be processed concurrently.
func (g *Graph) Batches(canBreakEdge graph.BreakFunc[string, struct{}]) ([][]string, error) {
	return g.sortGraph().BatchingTopologicalSort(canBreakEdge)
}

// DirectoryOrder orders directories so that a directory comes after every
// directory its projects reference. When directories reference each other
// it returns false and the directories forming one such cycle.
func (g *Graph) DirectoryOrder() (order []string, cycle []string, ok bool) {
	s := graph.NewSorter[string]()
	for _, p := range g.Projects() {
		s.Node(p.Directory)
		for _, dep := range p.Dependencies().IDs() {
			q, isProject := g.Project(dep)
			if !isProject || strings.EqualFold(q.Directory, p.Directory) {
				continue
			}
			s.Edge(p.Directory, q.Directory)
		}
	}
	return s.Sort()
}

// Unreachable returns the ids no root depends on, directly or transitively.
func (g *Graph) Unreachable(roots []string) map[string]struct{} {
	return g.sortGraph().Reverse().GetUnreachableVertices(roots)
}

// PruneUnreachable removes synthetic nodes that no root depends on and
// returns their ids in insertion order. Projects are never pruned.
func (g *Graph) PruneUnreachable(roots []string) []string {
	unreachable := g.Unreachable(roots)
	var pruned []string
	for _, id := range append([]string(nil), g.order...) {
		if _, ok := unreachable[id]; !ok {
			continue
		}
		if !model.Synthetic(g.nodes[id]) {
			continue
		}
		g.Remove(id)
		pruned = append(pruned, id)
	}
	return pruned
}
