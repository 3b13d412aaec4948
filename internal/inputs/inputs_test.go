package inputs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/k8ika0s/build-sequencer/internal/buildstate"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestChangedByHash(t *testing.T) {
	dir := t.TempDir()
	props := filepath.Join(dir, "Directory.Build.props")
	writeFile(t, props, "<Project />")

	recorded, err := New([]string{props}, true).Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if changed, _, _ := New([]string{props}, true).Changed(recorded); changed {
		t.Fatalf("same content should not be a change")
	}

	writeFile(t, props, "<Project Sdk=\"x\" />")
	changed, name, err := New([]string{props}, true).Changed(recorded)
	if err != nil {
		t.Fatalf("changed: %v", err)
	}
	if !changed || name != filepath.ToSlash(props) {
		t.Fatalf("content change not detected: %v %q", changed, name)
	}
}

func TestChangedByNameIgnoresContent(t *testing.T) {
	recorded := []buildstate.TrackedInputFile{{Path: "/old/agent/Directory.Build.props", Sha1: "stale"}}
	c := New([]string{"/new/agent/directory.build.props"}, false)
	if changed, name, _ := c.Changed(recorded); changed {
		t.Fatalf("name-only comparison flagged %q", name)
	}
	c = New([]string{"/new/agent/directory.build.props", "/new/agent/global.json"}, false)
	if changed, name, _ := c.Changed(recorded); !changed || name != "/new/agent/global.json" {
		t.Fatalf("added input not detected: %v %q", changed, name)
	}
}

func TestChangedDetectsRemovedInput(t *testing.T) {
	recorded := []buildstate.TrackedInputFile{{Path: "a.props", Sha1: "1"}, {Path: "b.props", Sha1: "2"}}
	c := &Check{TreatAsFiles: true}
	c.once.Do(func() { c.current = []buildstate.TrackedInputFile{{Path: "a.props", Sha1: "1"}} })
	changed, name, _ := c.Changed(recorded)
	if !changed || name != "b.props" {
		t.Fatalf("removed input not detected: %v %q", changed, name)
	}
}

func TestMissingFileHashesEmpty(t *testing.T) {
	c := New([]string{filepath.Join(t.TempDir(), "absent.props")}, true)
	cur, err := c.Current()
	if err != nil {
		t.Fatalf("missing files should not fail: %v", err)
	}
	if len(cur) != 1 || cur[0].Sha1 != "" {
		t.Fatalf("unexpected %+v", cur)
	}
}
