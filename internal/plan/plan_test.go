package plan

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/k8ika0s/build-sequencer/internal/artifact"
	"github.com/k8ika0s/build-sequencer/internal/buildctx"
	"github.com/k8ika0s/build-sequencer/internal/buildstate"
	"github.com/k8ika0s/build-sequencer/internal/model"
	"github.com/k8ika0s/build-sequencer/internal/packagecheck"
	"github.com/k8ika0s/build-sequencer/internal/projectgraph"
	"github.com/k8ika0s/build-sequencer/internal/sequencer"
)

func samplePlan(t *testing.T) *sequencer.Plan {
	t.Helper()
	g := projectgraph.New()
	p1 := model.NewProject("/src/Dir1/P1/P1.csproj", "Dir1")
	p1.OutputAssembly = "P1.dll"
	p2 := model.NewProject("/src/Dir2/P2/P2.csproj", "Dir2")
	p2.OutputAssembly = "P2.dll"
	g.Add(p1)
	g.Add(p2)
	if _, err := g.AddDependency(p2.ID(), p1.ID()); err != nil {
		t.Fatalf("add dependency: %v", err)
	}

	sf := buildstate.New(buildstate.BucketID{ID: "h1", Tag: "Dir1"}, "7", "")
	key := sequencer.ProjectKey("/src", p1.FullPath)
	sf.Outputs[key] = &buildstate.ProjectOutputSnapshot{ProjectFile: key, Directory: "Dir1", FilesWritten: []string{"bin/P1.dll"}}
	sf.Artifacts["Dir1"] = []artifact.Manifest{{ID: "Dir1", InstanceID: "7", Items: []artifact.Item{{Path: "bin/P1.dll"}}}}
	files := []*buildstate.BuildStateFile{sf}

	logger := log.New(&bytes.Buffer{}, "", 0)
	s := &sequencer.Sequencer{
		StateFiles:     files,
		PackageChecker: packagecheck.New(logger, files),
		Pipeline:       buildctx.StaticPipeline{},
		Logger:         logger,
	}
	p, err := s.CreatePlan(buildctx.New("/src"), buildctx.OrchestrationFiles{}, g, false, nil)
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	return p
}

func TestFromPlan(t *testing.T) {
	snap := FromPlan("run-1", samplePlan(t))
	if snap.RunID != "run-1" || snap.Build != 1 || snap.Cached != 1 {
		t.Fatalf("unexpected counts: %+v", snap)
	}
	p1, ok := snap.Project("/src/Dir1/P1/P1.csproj")
	if !ok || p1.Action != ActionRestore || p1.RequiresBuilding || p1.Kind != "project" {
		t.Fatalf("unexpected P1 node %+v", p1)
	}
	p2, ok := snap.Project("/src/Dir2/P2/P2.csproj")
	if !ok || p2.Action != ActionBuild || !p2.RequiresBuilding || p2.BuildReason != "ProjectOutputNotFound" {
		t.Fatalf("unexpected P2 node %+v", p2)
	}
	phase, ok := snap.Project(model.InitializeID("Dir1"))
	if !ok || phase.Action != ActionPhase || phase.Directory != "Dir1" {
		t.Fatalf("unexpected phase node %+v", phase)
	}
	if r := snap.RetrievePrebuilts["Dir1"]; r == nil || !*r {
		t.Fatalf("expected Dir1 to retrieve prebuilts, got %v", r)
	}
	if diff := cmp.Diff([]string{"Dir1", "Dir2"}, snap.DirectoryOrder); diff != "" {
		t.Fatalf("directory order mismatch (-want +got):\n%s", diff)
	}
	var flat []string
	for _, w := range snap.Waves {
		flat = append(flat, w...)
	}
	if len(flat) != len(snap.Nodes) {
		t.Fatalf("expected one node per wave entry, got %d/%d", len(snap.Nodes), len(flat))
	}
}

func TestLoadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", FileName)
	yes := true
	snap := Snapshot{
		RunID:             "abc",
		Waves:             [][]string{{"a"}, {"b", "c"}},
		Nodes:             []Node{{ID: "a", Kind: "Project", Action: ActionBuild, RequiresBuilding: true, BuildReason: "InputsChanged"}},
		RetrievePrebuilts: map[string]*bool{"Dir1": &yes},
	}
	if err := Write(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateWritesPlan(t *testing.T) {
	dir := t.TempDir()
	if _, err := Generate(dir, "r", samplePlan(t)); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Fatalf("plan.json not written: %v", err)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error")
	}
}
