package sequencer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/k8ika0s/build-sequencer/internal/buildctx"
	"github.com/k8ika0s/build-sequencer/internal/model"
	"github.com/k8ika0s/build-sequencer/internal/projectgraph"
)

// Plan is the result of CreatePlan.
type Plan struct {
	// Waves hold included projects and directory phase nodes; nodes in one
	// wave do not depend on each other.
	Waves  [][]string
	Graph  *projectgraph.Graph
	Pruned []string
	// DirectoryOrder lists directories after the directories they reference.
	// It is nil when directories reference each other.
	DirectoryOrder []string
}

// Projects returns the included projects in wave order.
func (p *Plan) Projects() []*model.ConfiguredProject {
	var out []*model.ConfiguredProject
	for _, wave := range p.Waves {
		for _, id := range wave {
			if proj, ok := p.Graph.Project(id); ok {
				out = append(out, proj)
			}
		}
	}
	return out
}

// RetrievePrebuilts returns the restore decision per directory name.
func (p *Plan) RetrievePrebuilts() map[string]*bool {
	out := make(map[string]*bool)
	for _, d := range p.Graph.Directories() {
		if !d.IsCompletion {
			out[d.Name] = d.RetrievePrebuilts
		}
	}
	return out
}

// Counts returns how many included projects build and how many restore.
func (p *Plan) Counts() (build, cached int) {
	for _, proj := range p.Projects() {
		if proj.RequiresBuilding() {
			build++
		} else {
			cached++
		}
	}
	return build, cached
}

// CreatePlan marks dirty projects, applies state files, wires directory
// phases and returns the batched build order. selection names the
// directories the user asked for; empty selects every directory.
func (s *Sequencer) CreatePlan(ctx *buildctx.Context, orch buildctx.OrchestrationFiles, g *projectgraph.Graph, isDownstream bool, selection []string) (*Plan, error) {
	projects := g.Projects()
	if err := CheckDuplicateGuids(projects); err != nil {
		return nil, err
	}

	selected := selectedDirectories(projects, selection)
	for _, p := range projects {
		p.IncludeInBuild = selected[strings.ToLower(p.Directory)]
	}
	if err := s.synthesizeDirectories(g, selected); err != nil {
		return nil, err
	}

	order, err := g.DependencyOrder(breakDirectoryPhaseEdge)
	if err != nil {
		return nil, fmt.Errorf("order projects: %w", err)
	}

	sourcesRoot := ctx.SourcesRoot
	if ctx.SourceTree != nil {
		for _, p := range projects {
			rel := ProjectKey(sourcesRoot, p.ProjectDir())
			if changes := ctx.SourceTree.ChangesUnder(rel); len(changes) > 0 {
				p.MarkDirty(model.ProjectItemChanged)
				s.logf("%s: %d changed items, first %s", p.ProjectFileName(), len(changes), changes[0].Path)
			}
		}
	}

	for _, p := range projects {
		if orch.AlwaysBuild(p.FullPath) {
			p.IncludeInBuild = true
			p.MarkDirty(model.AlwaysBuild)
		}
	}

	loggedUpToDate := make(map[string]bool)
	for _, id := range order {
		p, ok := g.Project(id)
		if !ok || p.IsDirty {
			continue
		}
		s.ApplyStateFile(s.StateFiles, sourcesRoot, p, loggedUpToDate, s.PackageChecker)
	}

	options := orch.ExtensibilityImposition.BuildCacheOptions
	for {
		s.MarkDirtyAll(g.Nodes(), dirtyIDs(projects))
		included := s.includeRequired(g, isDownstream)
		coupled := s.coupleTestsToWeb(projects)
		poisoned := s.SecondPassAnalysis(g, options)
		if len(included)+len(coupled)+len(poisoned) == 0 {
			break
		}
	}

	s.addImplicitDirectoryDependencies(g, projects)

	var roots []string
	for _, p := range projects {
		if p.IncludeInBuild {
			roots = append(roots, p.ID())
		}
	}
	for _, d := range g.Directories() {
		if d.IsCompletion && selected[strings.ToLower(d.Name)] {
			roots = append(roots, d.ID())
		}
	}
	pruned := g.PruneUnreachable(roots)

	batches, err := g.Batches(breakDirectoryPhaseEdge)
	if err != nil {
		return nil, fmt.Errorf("batch plan: %w", err)
	}
	plan := &Plan{Graph: g, Pruned: pruned}
	if dirs, cycle, ok := g.DirectoryOrder(); ok {
		plan.DirectoryOrder = dirs
	} else {
		s.logf("sequencer: directories reference each other: %s", strings.Join(cycle, " -> "))
	}
	for _, wave := range batches {
		var kept []string
		for _, id := range wave {
			n, _ := g.Node(id)
			switch v := n.(type) {
			case *model.ConfiguredProject:
				if v.IncludeInBuild {
					kept = append(kept, id)
				}
			case *model.DirectoryNode:
				kept = append(kept, id)
			}
		}
		if len(kept) > 0 {
			plan.Waves = append(plan.Waves, kept)
		}
	}
	build, cached := plan.Counts()
	s.logf("sequencer: %d waves, %d projects to build, %d restored from cache", len(plan.Waves), build, cached)
	return plan, nil
}

func selectedDirectories(projects []*model.ConfiguredProject, selection []string) map[string]bool {
	out := make(map[string]bool)
	for _, name := range selection {
		if name = strings.TrimSpace(name); name != "" {
			out[strings.ToLower(name)] = true
		}
	}
	if len(out) == 0 {
		for _, p := range projects {
			out[strings.ToLower(p.Directory)] = true
		}
	}
	return out
}

// synthesizeDirectories adds Initialize and Completion nodes for every
// project directory and pipeline contributor, then wires them: a project
// depends on its directory's Initialize node, Completion depends on every
// project of the directory, and Initialize depends on the Completion of each
// directory its projects reference.
func (s *Sequencer) synthesizeDirectories(g *projectgraph.Graph, selected map[string]bool) error {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name == "" || seen[strings.ToLower(name)] {
			return
		}
		seen[strings.ToLower(name)] = true
		names = append(names, name)
	}
	projects := g.Projects()
	for _, p := range projects {
		add(p.Directory)
	}
	if s.Pipeline != nil {
		for _, name := range s.Pipeline.DependencyContributors() {
			add(name)
		}
	}
	for _, name := range names {
		for _, completion := range []bool{false, true} {
			n := g.Add(model.NewDirectoryNode(name, completion))
			if d, ok := n.(*model.DirectoryNode); ok {
				d.AddedByDependencyAnalysis = !selected[strings.ToLower(name)]
			}
		}
	}

	canonical := make(map[string]string, len(names))
	for _, name := range names {
		canonical[strings.ToLower(name)] = name
	}
	for _, p := range projects {
		dir := canonical[strings.ToLower(p.Directory)]
		if _, err := g.AddDependency(p.ID(), model.InitializeID(dir)); err != nil {
			return err
		}
		if _, err := g.AddDependency(model.CompletionID(dir), p.ID()); err != nil {
			return err
		}
		for _, depID := range p.Dependencies().IDs() {
			dep, ok := g.Project(depID)
			if !ok || strings.EqualFold(dep.Directory, p.Directory) {
				continue
			}
			other := canonical[strings.ToLower(dep.Directory)]
			if _, err := g.AddDependency(model.InitializeID(dir), model.CompletionID(other)); err != nil {
				return err
			}
		}
	}
	g.ResolveReferences()
	return nil
}

// breakDirectoryPhaseEdge allows ordering edges between directory phases to
// be dropped when directories reference each other. Project edges are never
// broken.
func breakDirectoryPhaseEdge(from, to string, _ []struct{}) bool {
	return strings.HasSuffix(from, ".Completion") && strings.HasSuffix(to, ".Initialize")
}

// includeRequired adds out-of-date projects that an included project needs
// and, in downstream builds, dirty projects that consume an included dirty
// project. It returns the ids it included.
func (s *Sequencer) includeRequired(g *projectgraph.Graph, isDownstream bool) []string {
	var added []string
	for changed := true; changed; {
		changed = false
		for _, p := range g.Projects() {
			if p.IncludeInBuild {
				for _, depID := range p.Dependencies().IDs() {
					dep, ok := g.Project(depID)
					if ok && !dep.IncludeInBuild && dep.OutOfDate() {
						dep.IncludeInBuild = true
						added = append(added, dep.ID())
						changed = true
					}
				}
				continue
			}
			if !isDownstream || !p.IsDirty {
				continue
			}
			for _, depID := range p.Dependencies().IDs() {
				dep, ok := g.Project(depID)
				if ok && dep.IncludeInBuild && dep.IsDirty {
					p.IncludeInBuild = true
					added = append(added, p.ID())
					changed = true
					break
				}
			}
		}
	}
	return added
}

// coupleTestsToWeb dirties clean web projects associated with a dirty test
// project: they share a solution or the test references the web project.
func (s *Sequencer) coupleTestsToWeb(projects []*model.ConfiguredProject) []string {
	var coupled []string
	for _, t := range projects {
		if !t.IsTest() || !t.IsDirty || !t.IncludeInBuild {
			continue
		}
		for _, w := range projects {
			if w == t || !w.IsWeb() || w.IsDirty {
				continue
			}
			sameSolution := t.SolutionFile != "" && strings.EqualFold(filepath.ToSlash(t.SolutionFile), filepath.ToSlash(w.SolutionFile))
			if !sameSolution && !t.Dependencies().Contains(w.ID()) {
				continue
			}
			w.MarkDirty(model.AssociatedTestChanged, t.ID())
			w.IncludeInBuild = true
			coupled = append(coupled, w.ID())
			s.logf("%s: rebuilt for changed test project %s", w.ProjectFileName(), t.ProjectFileName())
		}
	}
	return coupled
}

// SecondPassAnalysis sets RetrievePrebuilts for every directory. Under
// DisableCacheWhenProjectChanged a directory with a dirty included project
// restores nothing and its clean included projects are dirtied. It returns
// the ids it dirtied.
func (s *Sequencer) SecondPassAnalysis(g *projectgraph.Graph, options buildctx.BuildCacheOptions) []string {
	var dirtied []string
	for _, d := range g.Directories() {
		if d.IsCompletion {
			continue
		}
		projects := g.ProjectsIn(d.Name)
		anyDirty := false
		for _, p := range projects {
			if p.IncludeInBuild && p.IsDirty {
				anyDirty = true
				break
			}
		}
		retrieve := len(s.SelectStateFiles(d.Name)) > 0
		if anyDirty && options == buildctx.DisableCacheWhenProjectChanged {
			retrieve = false
			n := 0
			for _, p := range projects {
				if p.IncludeInBuild && !p.IsDirty {
					p.MarkDirty(model.DirectoryCacheDisabled)
					dirtied = append(dirtied, p.ID())
					n++
				}
			}
			if n > 0 {
				s.logf("%s: cache disabled for %d projects, a project in the directory changed", d.Name, n)
			}
		}
		d.SetRetrievePrebuilts(retrieve)
		if c, ok := g.Directory(model.CompletionID(d.Name)); ok {
			c.SetRetrievePrebuilts(retrieve)
		}
	}
	return dirtied
}

// addImplicitDirectoryDependencies makes every project that builds depend on
// the Initialize node of each cached project it references, so artifacts of
// that directory are restored before it runs.
func (s *Sequencer) addImplicitDirectoryDependencies(g *projectgraph.Graph, projects []*model.ConfiguredProject) {
	for _, p := range projects {
		if !p.RequiresBuilding() {
			continue
		}
		for _, depID := range p.Dependencies().IDs() {
			dep, ok := g.Project(depID)
			if !ok || dep.RequiresBuilding() {
				continue
			}
			initID := model.InitializeID(dep.Directory)
			if _, ok := g.Directory(initID); !ok {
				for _, dn := range g.Directories() {
					if !dn.IsCompletion && strings.EqualFold(dn.Name, dep.Directory) {
						initID = dn.ID()
						break
					}
				}
			}
			if _, err := g.AddDependency(p.ID(), initID); err != nil {
				s.logf("%s: %v", p.ProjectFileName(), err)
			}
		}
	}
}
