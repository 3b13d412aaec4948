package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/k8ika0s/build-sequencer/internal/buildctx"
	"github.com/k8ika0s/build-sequencer/internal/statestore"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("PARALLELISM", "")
	t.Setenv("STATE_FILE_NAME", "")
	cfg := FromEnv()
	if cfg.StateFileName != "buildstate.metadata" {
		t.Fatalf("unexpected state file name %q", cfg.StateFileName)
	}
	if cfg.Parallelism < 1 || cfg.Parallelism > MaxParallelism {
		t.Fatalf("unexpected parallelism %d", cfg.Parallelism)
	}
	if !cfg.TreatInputsAsFiles {
		t.Fatalf("expected inputs to be hashed by default")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PARALLELISM", "3")
	t.Setenv("DOWNSTREAM", "yes")
	t.Setenv("TRACKED_INPUT_FILES", "a/dir.props, b/global.json;;c.json")
	cfg := FromEnv()
	if cfg.Parallelism != 3 || !cfg.Downstream {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if diff := cmp.Diff([]string{"a/dir.props", "b/global.json", "c.json"}, cfg.TrackedInputFiles); diff != "" {
		t.Fatalf("tracked inputs mismatch (-want +got):\n%s", diff)
	}
}

func TestGetenvIntIgnoresInvalid(t *testing.T) {
	t.Setenv("SEQ_TEST_INT", "-2")
	if got := getenvInt("SEQ_TEST_INT", 4); got != 4 {
		t.Fatalf("expected default, got %d", got)
	}
}

func TestStateStoreAndIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := Config{StagingDir: dir, IndexFile: filepath.Join(dir, "idx.json")}
	st, err := cfg.StateStore(ctx)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, ok := st.(*statestore.FileStore); !ok {
		t.Fatalf("expected file store, got %T", st)
	}
	idx, err := cfg.StateIndex(ctx)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if _, ok := idx.(*statestore.FileIndex); !ok {
		t.Fatalf("expected file index, got %T", idx)
	}

	cfg.IndexBackend = "redis"
	if _, err := cfg.StateIndex(ctx); err == nil {
		t.Fatalf("expected error without REDIS_URL")
	}
	cfg.IndexBackend = "bogus"
	if _, err := cfg.StateIndex(ctx); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	cfg.IndexBackend = "none"
	if idx, err := cfg.StateIndex(ctx); err != nil || idx != nil {
		t.Fatalf("expected no index, got %v %v", idx, err)
	}
}

func TestOrchestrationOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestration.yaml")
	body := "extensibility_imposition:\n  always_build_projects:\n    - Tools/Gen.csproj\n  build_cache_options: DisableCacheWhenProjectChanged\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := Config{OrchestrationFile: path, BuildCacheOptions: "DoNotDisableCacheWhenProjectChanged"}
	o, err := cfg.Orchestration()
	if err != nil {
		t.Fatalf("orchestration: %v", err)
	}
	if o.ExtensibilityImposition.BuildCacheOptions != buildctx.DoNotDisableCacheWhenProjectChanged {
		t.Fatalf("expected env override, got %v", o.ExtensibilityImposition.BuildCacheOptions)
	}
	if !o.AlwaysBuild("/src/Tools/Gen.csproj") {
		t.Fatalf("expected always-build entry from file")
	}

	cfg.BuildCacheOptions = "sometimes"
	if _, err := cfg.Orchestration(); err == nil {
		t.Fatalf("expected error for unknown option")
	}
}
