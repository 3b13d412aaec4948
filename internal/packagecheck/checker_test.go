package packagecheck

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/k8ika0s/build-sequencer/internal/artifact"
	"github.com/k8ika0s/build-sequencer/internal/buildstate"
	"github.com/k8ika0s/build-sequencer/internal/model"
)

func stateWithArtifacts(manifests ...artifact.Manifest) *buildstate.BuildStateFile {
	f := buildstate.New(buildstate.BucketID{ID: "h", Tag: "Core"}, "1", "")
	f.Artifacts["drop"] = manifests
	return f
}

func TestContainsAssembly(t *testing.T) {
	f := stateWithArtifacts(artifact.Manifest{ID: "core", InstanceID: "i1", Items: []artifact.Item{{Path: "bin/Core.Lib.dll"}}})
	c := New(log.New(&bytes.Buffer{}, "", 0), []*buildstate.BuildStateFile{f})
	p := model.NewProject("/src/Core/Lib/Lib.csproj", "Core")
	p.OutputAssembly = "core.lib.DLL"
	if !c.DoesArtifactContainProjectItem(p) {
		t.Fatalf("expected assembly to be found")
	}
}

func TestZipPackagedProjectNeedsZip(t *testing.T) {
	f := stateWithArtifacts(artifact.Manifest{ID: "web", InstanceID: "i2", Items: []artifact.Item{{Path: "bin/Site.dll"}}})
	var buf bytes.Buffer
	c := New(log.New(&buf, "", 0), []*buildstate.BuildStateFile{f})
	p := model.NewProject("/src/Web/Site/Site.csproj", "Web")
	p.OutputAssembly = "Site.dll"
	p.ZipPackaged = true
	if c.DoesArtifactContainProjectItem(p) {
		t.Fatalf("zip packaged project should require Site.zip")
	}
	out := buf.String()
	if !strings.Contains(out, "Site.zip not found in packages") || !strings.Contains(out, "checked artifact web (instance i2)") {
		t.Fatalf("unexpected log output:\n%s", out)
	}
}

func TestNoManifests(t *testing.T) {
	c := New(log.New(&bytes.Buffer{}, "", 0), nil)
	p := model.NewProject("/src/A/A.csproj", "A")
	p.OutputAssembly = "A.dll"
	if c.DoesArtifactContainProjectItem(p) {
		t.Fatalf("nothing can be found without manifests")
	}
}
