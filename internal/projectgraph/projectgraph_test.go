package projectgraph

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/k8ika0s/build-sequencer/internal/graph"
	"github.com/k8ika0s/build-sequencer/internal/model"
)

func project(g *Graph, path, dir string) *model.ConfiguredProject {
	p := model.NewProject(path, dir)
	g.Add(p)
	return p
}

func TestDependencyOrderListsDependenciesFirst(t *testing.T) {
	g := New()
	app := project(g, "/src/App/App.csproj", "App")
	lib := project(g, "/src/Lib/Lib.csproj", "Lib")
	core := project(g, "/src/Core/Core.csproj", "Core")
	mustDepend(t, g, app.ID(), lib.ID())
	mustDepend(t, g, lib.ID(), core.ID())

	order, err := g.DependencyOrder(nil)
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	want := []string{core.ID(), lib.ID(), app.ID()}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestBatchesGroupIndependentProjects(t *testing.T) {
	g := New()
	a := project(g, "/src/A/A.csproj", "A")
	b := project(g, "/src/B/B.csproj", "B")
	c := project(g, "/src/C/C.csproj", "C")
	mustDepend(t, g, c.ID(), a.ID())
	mustDepend(t, g, c.ID(), b.ID())

	waves, err := g.Batches(nil)
	if err != nil {
		t.Fatalf("batches: %v", err)
	}
	want := [][]string{{a.ID(), b.ID()}, {c.ID()}}
	if diff := cmp.Diff(want, waves); diff != "" {
		t.Fatalf("waves mismatch (-want +got):\n%s", diff)
	}
}

func TestDependencyOrderReportsCycle(t *testing.T) {
	g := New()
	a := project(g, "/src/A/A.csproj", "A")
	b := project(g, "/src/B/B.csproj", "B")
	mustDepend(t, g, a.ID(), b.ID())
	mustDepend(t, g, b.ID(), a.ID())

	_, err := g.DependencyOrder(nil)
	if !errors.Is(err, graph.ErrCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestDependentsAndRemove(t *testing.T) {
	g := New()
	app := project(g, "/src/App/App.csproj", "App")
	web := project(g, "/src/Web/Web.csproj", "App")
	lib := project(g, "/src/Lib/Lib.csproj", "Lib")
	mustDepend(t, g, app.ID(), lib.ID())
	mustDepend(t, g, web.ID(), lib.ID())

	if diff := cmp.Diff([]string{app.ID(), web.ID()}, g.Dependents(lib.ID())); diff != "" {
		t.Fatalf("dependents mismatch (-want +got):\n%s", diff)
	}
	if got := len(g.ProjectsIn("app")); got != 2 {
		t.Fatalf("expected 2 projects in App, got %d", got)
	}
	g.Remove(lib.ID())
	if app.Dependencies().Contains(lib.ID()) {
		t.Fatalf("remove should drop edges to the node")
	}
	if _, err := g.AddDependency(app.ID(), lib.ID()); err == nil {
		t.Fatalf("expected error for unknown dependency")
	}
}

func TestPruneUnreachableKeepsProjects(t *testing.T) {
	g := New()
	app := project(g, "/src/App/App.csproj", "App")
	other := project(g, "/src/Other/Other.csproj", "Other")
	appInit := g.Add(model.NewDirectoryNode("App", false))
	otherInit := g.Add(model.NewDirectoryNode("Other", false))
	stray := g.Add(model.NewAssemblyRef("Stray.dll"))
	mustDepend(t, g, app.ID(), appInit.ID())
	mustDepend(t, g, other.ID(), otherInit.ID())
	mustDepend(t, g, other.ID(), stray.ID())

	pruned := g.PruneUnreachable([]string{app.ID()})
	if diff := cmp.Diff([]string{otherInit.ID(), stray.ID()}, pruned); diff != "" {
		t.Fatalf("pruned mismatch (-want +got):\n%s", diff)
	}
	if _, ok := g.Project(other.ID()); !ok {
		t.Fatalf("projects must not be pruned")
	}
	if other.Dependencies().Len() != 0 {
		t.Fatalf("edges to pruned nodes should be removed: %v", other.Dependencies().IDs())
	}
}

func TestResolveReferences(t *testing.T) {
	g := New()
	app := project(g, "/src/App/App.csproj", "App")
	lib := project(g, "/src/Lib/Lib.csproj", "Lib")
	lib.OutputAssembly = "Lib.dll"
	completion := g.Add(model.NewDirectoryNode("Shared", true))
	asm := g.Add(model.NewAssemblyRef("lib.DLL"))
	mod := g.Add(model.NewModuleRef("shared"))
	ext := g.Add(model.NewAssemblyRef("Newtonsoft.Json.dll"))
	for _, dep := range []string{asm.ID(), mod.ID(), ext.ID()} {
		mustDepend(t, g, app.ID(), dep)
	}

	if n := g.ResolveReferences(); n != 2 {
		t.Fatalf("resolved %d references, want 2", n)
	}
	want := []string{ext.ID(), lib.ID(), completion.ID()}
	if diff := cmp.Diff(want, app.Dependencies().IDs()); diff != "" {
		t.Fatalf("dependencies mismatch (-want +got):\n%s", diff)
	}
	if _, ok := g.Node(asm.ID()); ok {
		t.Fatalf("resolved assembly ref should be removed")
	}
	if _, ok := g.Node(ext.ID()); !ok {
		t.Fatalf("unresolved ref should stay as a leaf")
	}
}

func TestManifestBuild(t *testing.T) {
	body := `
projects:
  - path: /src/Lib/Lib.csproj
    directory: Lib
    guid: "{A}"
    output_assembly: Lib.dll
  - path: /src/App/App.csproj
    directory: App
    guid: "{B}"
    assembly_references: [Lib.dll, System.Web.dll]
  - path: /src/App.Tests/App.Tests.csproj
    directory: App
    test: true
    solution: App.sln
    project_references: [/src/App/App.csproj]
`
	dir := t.TempDir()
	path := filepath.Join(dir, "projects.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	g, err := m.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := len(g.Projects()); got != 3 {
		t.Fatalf("expected 3 projects, got %d", got)
	}
	app, _ := g.Project("/src/App/App.csproj")
	if !app.Dependencies().Contains("/src/Lib/Lib.csproj") {
		t.Fatalf("assembly reference should resolve to Lib: %v", app.Dependencies().IDs())
	}
	tests, _ := g.Project("/src/App.Tests/App.Tests.csproj")
	if !tests.IsTest() || tests.SolutionFile != "App.sln" {
		t.Fatalf("test project fields not loaded: %+v", tests)
	}
}

func TestManifestUnknownReference(t *testing.T) {
	m, err := ParseManifest([]byte(`{"projects":[{"path":"/a/A.csproj","directory":"A","project_references":["/b/B.csproj"]}]}`), true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := m.Build(); err == nil {
		t.Fatalf("expected unknown reference error")
	}
}

func TestManifestWithRoot(t *testing.T) {
	m := Manifest{Projects: []ProjectEntry{
		{Path: "Lib/Lib.csproj", Directory: "Lib"},
		{Path: "/abs/App.csproj", Directory: "App", ProjectReferences: []string{"Lib/Lib.csproj"}},
	}}
	got := m.WithRoot("/src")
	if got.Projects[0].Path != "/src/Lib/Lib.csproj" || got.Projects[1].Path != "/abs/App.csproj" {
		t.Fatalf("unexpected paths %+v", got.Projects)
	}
	if got.Projects[1].ProjectReferences[0] != "/src/Lib/Lib.csproj" {
		t.Fatalf("unexpected reference %+v", got.Projects[1].ProjectReferences)
	}
	if m.Projects[0].Path != "Lib/Lib.csproj" {
		t.Fatalf("original manifest modified")
	}
	if _, err := got.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
}

func TestDirectoryOrder(t *testing.T) {
	g := New()
	app := project(g, "/src/App/App.csproj", "App")
	lib := project(g, "/src/Lib/Lib.csproj", "Lib")
	core := project(g, "/src/Lib/Core.csproj", "Lib")
	mustDepend(t, g, app.ID(), lib.ID())
	mustDepend(t, g, lib.ID(), core.ID())

	order, _, ok := g.DirectoryOrder()
	if !ok {
		t.Fatalf("expected directories to order")
	}
	if diff := cmp.Diff([]string{"Lib", "App"}, order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	mustDepend(t, g, core.ID(), app.ID())
	if _, cycle, ok := g.DirectoryOrder(); ok || len(cycle) == 0 {
		t.Fatalf("expected directory cycle, got ok=%v cycle=%v", ok, cycle)
	}
}

func mustDepend(t *testing.T, g *Graph, from, to string) {
	t.Helper()
	if _, err := g.AddDependency(from, to); err != nil {
		t.Fatalf("add dependency: %v", err)
	}
}
