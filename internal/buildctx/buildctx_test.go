package buildctx

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrchestrationFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestration.yaml")
	body := `
extensibility_imposition:
  always_build_projects:
    - Web/Site/Site.csproj
  build_cache_options: DoNotDisableCacheWhenProjectChanged
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	o, err := LoadOrchestrationFiles(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if o.ExtensibilityImposition.BuildCacheOptions != DoNotDisableCacheWhenProjectChanged {
		t.Fatalf("options = %s", o.ExtensibilityImposition.BuildCacheOptions)
	}
	if !o.AlwaysBuild("/src/Web/Site/Site.csproj") {
		t.Fatalf("relative entry should match the full path")
	}
	if o.AlwaysBuild("/src/Web/OtherSite/OtherSite.csproj") {
		t.Fatalf("unexpected match")
	}
}

func TestLoadOrchestrationFilesRejectsUnknownOption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestration.yaml")
	if err := os.WriteFile(path, []byte("extensibility_imposition:\n  build_cache_options: Sometimes\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadOrchestrationFiles(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDefaultsWithoutFile(t *testing.T) {
	o, err := LoadOrchestrationFiles("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if o.ExtensibilityImposition.BuildCacheOptions != DisableCacheWhenProjectChanged {
		t.Fatalf("default should disable cache when a project changes")
	}
}

func TestVariables(t *testing.T) {
	ctx := New("/src")
	ctx.Variables.SetBool(IsBuildCacheEnabled, true)
	if !ctx.Variables.Bool(IsBuildCacheEnabled) {
		t.Fatalf("expected variable to be true")
	}
	if ctx.Variables.Bool("missing") {
		t.Fatalf("missing variable should be false")
	}
	if got := ctx.Variables.Snapshot()[IsBuildCacheEnabled]; got != "true" {
		t.Fatalf("snapshot value = %q", got)
	}
}
