package projectgraph

import (
	"strings"

	"github.com/k8ika0s/build-sequencer/internal/model"
)

// ResolveReferences rewrites assembly references that name a project's
// output to the project itself, and module references that name a directory
// to that directory's Completion node. Resolved reference nodes that nothing
// depends on any more are removed. Unresolved references stay as leaves.
func (g *Graph) ResolveReferences() int {
	outputs := make(map[string]*model.ConfiguredProject)
	for _, p := range g.Projects() {
		if p.OutputAssembly != "" {
			outputs[strings.ToLower(p.OutputAssembly)] = p
		}
	}

	resolved := 0
	for _, n := range g.Nodes() {
		for _, dep := range n.Dependencies().IDs() {
			target := g.resolve(dep, outputs)
			if target == nil || target.ID() == n.ID() {
				continue
			}
			n.Dependencies().Replace(dep, target)
			resolved++
		}
	}

	for _, n := range g.Nodes() {
		switch n.Kind() {
		case model.KindAssembly, model.KindModule:
			if g.resolve(n.ID(), outputs) != nil && len(g.Dependents(n.ID())) == 0 {
				g.Remove(n.ID())
			}
		}
	}
	return resolved
}

func (g *Graph) resolve(id string, outputs map[string]*model.ConfiguredProject) model.Node {
	switch ref := g.nodes[id].(type) {
	case *model.AssemblyRef:
		if p, ok := outputs[strings.ToLower(ref.Name)]; ok {
			return p
		}
	case *model.ModuleRef:
		if d, ok := g.nodes[model.CompletionID(ref.Name)]; ok {
			return d
		}
		for _, d := range g.Directories() {
			if d.IsCompletion && strings.EqualFold(d.Name, ref.Name) {
				return d
			}
		}
	}
	return nil
}
