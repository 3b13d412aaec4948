package sequencer

import (
	"github.com/k8ika0s/build-sequencer/internal/model"
)

// MarkDirty marks every clean project that directly depends on one of dirty
// as DependencyChanged and returns the ids it marked.
func (s *Sequencer) MarkDirty(nodes []model.Node, dirty map[string]struct{}) map[string]struct{} {
	marked := make(map[string]struct{})
	for _, n := range nodes {
		p, ok := n.(*model.ConfiguredProject)
		if !ok || p.IsDirty {
			continue
		}
		if changed := changedDependencies(p, dirty); len(changed) > 0 {
			p.MarkDirty(model.DependencyChanged, changed...)
			marked[p.ID()] = struct{}{}
		}
	}
	return marked
}

// MarkDirtyAll marks every project that depends on a seed, directly or
// transitively, and returns the ids it newly marked. Projects already dirty
// keep their reason but still carry the change to their dependents.
func (s *Sequencer) MarkDirtyAll(nodes []model.Node, seeds map[string]struct{}) map[string]struct{} {
	reached := make(map[string]struct{}, len(seeds))
	for id := range seeds {
		reached[id] = struct{}{}
	}
	marked := make(map[string]struct{})
	frontier := seeds
	for len(frontier) > 0 {
		next := make(map[string]struct{})
		for _, n := range nodes {
			p, ok := n.(*model.ConfiguredProject)
			if !ok {
				continue
			}
			if _, seen := reached[p.ID()]; seen {
				continue
			}
			changed := changedDependencies(p, frontier)
			if len(changed) == 0 {
				continue
			}
			if !p.IsDirty {
				p.MarkDirty(model.DependencyChanged, changed...)
				marked[p.ID()] = struct{}{}
			}
			reached[p.ID()] = struct{}{}
			next[p.ID()] = struct{}{}
		}
		frontier = next
	}
	return marked
}

func changedDependencies(p *model.ConfiguredProject, dirty map[string]struct{}) []string {
	var changed []string
	for _, dep := range p.Dependencies().IDs() {
		if _, ok := dirty[dep]; ok {
			changed = append(changed, dep)
		}
	}
	return changed
}

func dirtyIDs(projects []*model.ConfiguredProject) map[string]struct{} {
	out := make(map[string]struct{})
	for _, p := range projects {
		if p.IsDirty {
			out[p.ID()] = struct{}{}
		}
	}
	return out
}
