package sourcetree

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func TestHashIsStableAndContentSensitive(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"Core/Lib/Lib.csproj":  "<Project/>",
		"Core/Lib/Class1.cs":   "class C {}",
		"Core/Lib/bin/Lib.dll": "binary",
		"Web/Site/Site.csproj": "<Project/>",
		".git/HEAD":            "ref: main",
	})
	h := &Hasher{Parallelism: 2}
	first, err := h.Hash(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if len(first) != 2 || first[0].Tag != "Core" || first[1].Tag != "Web" {
		t.Fatalf("unexpected buckets %+v", first)
	}

	writeTree(t, root, map[string]string{"Core/Lib/bin/Lib.dll": "rebuilt"})
	second, err := h.Hash(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("bin output should not affect buckets (-first +second):\n%s", diff)
	}

	writeTree(t, root, map[string]string{"Core/Lib/Class1.cs": "class C { int x; }"})
	third, err := h.Hash(context.Background(), root, []string{"Core", "Web"})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if third[0].ID == first[0].ID {
		t.Fatalf("source change should change the Core bucket")
	}
	if third[1].ID != first[1].ID {
		t.Fatalf("Web bucket should be unaffected")
	}
}

func TestIdenticalContentInDifferentBucketsHashesApart(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"A/x.txt": "same", "B/x.txt": "same"})
	buckets, err := (&Hasher{}).Hash(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if buckets[0].ID == buckets[1].ID {
		t.Fatalf("bucket ids must include the tag")
	}
}

func TestHashMissingBucketFails(t *testing.T) {
	if _, err := (&Hasher{}).Hash(context.Background(), t.TempDir(), []string{"Nope"}); err == nil {
		t.Fatalf("expected error for missing bucket directory")
	}
}

func TestParseChanges(t *testing.T) {
	in := "M\tCore/Lib/Class1.cs\nA\tCore/Lib/New.cs\nD\tWeb/Old/Old.csproj\nR087\tWeb/a.cs\tWeb/b.cs\n\n"
	got, err := ParseChanges(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []Change{
		{Path: "Core/Lib/Class1.cs", Status: Modified},
		{Path: "Core/Lib/New.cs", Status: Added},
		{Path: "Web/Old/Old.csproj", Status: Deleted},
		{Path: "Web/a.cs", Status: Deleted},
		{Path: "Web/b.cs", Status: Added},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("changes mismatch (-want +got):\n%s", diff)
	}
	if _, err := ParseChanges(strings.NewReader("garbage")); err == nil {
		t.Fatalf("expected malformed line error")
	}
}

func TestChangesUnderAndDeleted(t *testing.T) {
	m := Metadata{Changes: []Change{
		{Path: "Core/Lib/Class1.cs"},
		{Path: "core/LibTests/T.cs"},
		{Path: "Web/Site/Site.csproj", Status: Deleted},
	}}
	if got := len(m.ChangesUnder("Core/Lib")); got != 1 {
		t.Fatalf("expected 1 change under Core/Lib, got %d", got)
	}
	if got := len(m.ChangesUnder("Core")); got != 2 {
		t.Fatalf("expected 2 changes under Core, got %d", got)
	}
	if d := m.Deleted(); len(d) != 1 || d[0].Path != "Web/Site/Site.csproj" {
		t.Fatalf("unexpected deletions %+v", d)
	}
}
