// Package config loads sequencer settings from the environment.
package config

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/k8ika0s/build-sequencer/internal/buildctx"
	"github.com/k8ika0s/build-sequencer/internal/buildstate"
	"github.com/k8ika0s/build-sequencer/internal/statestore"
)

// MaxParallelism caps the default degree of parallelism.
const MaxParallelism = 6

// Config holds sequencer settings.
type Config struct {
	HTTPAddr            string
	APIToken            string
	SourcesRoot         string
	StagingDir          string
	PlanDir             string
	StateFileName       string
	Parallelism         int
	IndexBackend        string
	IndexFile           string
	RedisURL            string
	RedisKey            string
	PostgresDSN         string
	ObjectStoreEndpoint string
	ObjectStoreBucket   string
	ObjectStoreAccess   string
	ObjectStoreSecret   string
	ObjectStoreUseSSL   bool
	ObjectStorePrefix   string
	KafkaBrokers        string
	KafkaTopic          string
	ControlPlaneURL     string
	ControlPlaneToken   string
	OrchestrationFile   string
	TrackedInputFiles   []string
	TreatInputsAsFiles  bool
	BuildCacheOptions   string
	Downstream          bool
	BuildID             string
	Branch              string
	CommitSha           string
	PullRequestID       string
}

// FromEnv loads configuration with sensible defaults.
func FromEnv() Config {
	return Config{
		HTTPAddr:            getenv("SEQUENCER_HTTP_ADDR", ":9100"),
		APIToken:            getenv("SEQUENCER_TOKEN", ""),
		SourcesRoot:         getenv("SOURCES_ROOT", "/src"),
		StagingDir:          getenv("ARTIFACT_STAGING_DIR", "/src/_artifacts"),
		PlanDir:             getenv("PLAN_DIR", "/tmp/sequencer"),
		StateFileName:       getenv("STATE_FILE_NAME", buildstate.DefaultFileName),
		Parallelism:         getenvInt("PARALLELISM", DefaultParallelism()),
		IndexBackend:        getenv("STATE_INDEX_BACKEND", "file"),
		IndexFile:           getenv("STATE_INDEX_FILE", "/tmp/sequencer/state_index.json"),
		RedisURL:            getenv("REDIS_URL", ""),
		RedisKey:            getenv("REDIS_KEY", "sequencer:statefiles"),
		PostgresDSN:         getenv("POSTGRES_DSN", ""),
		ObjectStoreEndpoint: getenv("OBJECT_STORE_ENDPOINT", ""),
		ObjectStoreBucket:   getenv("OBJECT_STORE_BUCKET", ""),
		ObjectStoreAccess:   getenv("OBJECT_STORE_ACCESS_KEY", ""),
		ObjectStoreSecret:   getenv("OBJECT_STORE_SECRET_KEY", ""),
		ObjectStoreUseSSL:   getenvBool("OBJECT_STORE_USE_SSL", false),
		ObjectStorePrefix:   getenv("OBJECT_STORE_PREFIX", "buildstate"),
		KafkaBrokers:        getenv("KAFKA_BROKERS", ""),
		KafkaTopic:          getenv("KAFKA_TOPIC", "sequencer.plans"),
		ControlPlaneURL:     getenv("CONTROL_PLANE_URL", ""),
		ControlPlaneToken:   getenv("CONTROL_PLANE_TOKEN", ""),
		OrchestrationFile:   getenv("ORCHESTRATION_FILE", ""),
		TrackedInputFiles:   splitList(getenv("TRACKED_INPUT_FILES", "")),
		TreatInputsAsFiles:  getenvBool("TREAT_INPUTS_AS_FILES", true),
		BuildCacheOptions:   getenv("BUILD_CACHE_OPTIONS", ""),
		Downstream:          getenvBool("DOWNSTREAM", false),
		BuildID:             getenv("BUILD_ID", ""),
		Branch:              getenv("BUILD_BRANCH", ""),
		CommitSha:           getenv("BUILD_COMMIT_SHA", ""),
		PullRequestID:       getenv("PULL_REQUEST_ID", ""),
	}
}

// DefaultParallelism is min(NumCPU, MaxParallelism).
func DefaultParallelism() int {
	n := runtime.NumCPU()
	if n > MaxParallelism {
		return MaxParallelism
	}
	if n < 1 {
		return 1
	}
	return n
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getenvBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y":
			return true
		case "0", "false", "no", "n":
			return false
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// StateStore returns the MinIO store when an object store is configured and
// the staging directory store otherwise.
func (c Config) StateStore(ctx context.Context) (statestore.Store, error) {
	if c.ObjectStoreEndpoint == "" || c.ObjectStoreBucket == "" {
		if c.StagingDir == "" {
			return statestore.NullStore{}, nil
		}
		return statestore.NewFileStore(c.StagingDir), nil
	}
	return statestore.NewMinIOStore(ctx, c.ObjectStoreEndpoint, c.ObjectStoreAccess, c.ObjectStoreSecret, c.ObjectStoreBucket, c.ObjectStorePrefix, c.ObjectStoreUseSSL)
}

// StateIndex returns the configured index backend: file, redis, postgres or
// none.
func (c Config) StateIndex(ctx context.Context) (statestore.Index, error) {
	switch strings.ToLower(c.IndexBackend) {
	case "", "file":
		return statestore.NewFileIndex(c.IndexFile), nil
	case "redis":
		if c.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL required for redis index")
		}
		return statestore.NewRedisIndex(c.RedisURL, c.RedisKey), nil
	case "postgres":
		if c.PostgresDSN == "" {
			return nil, fmt.Errorf("POSTGRES_DSN required for postgres index")
		}
		idx, err := statestore.OpenPostgres(ctx, c.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown state index backend %q", c.IndexBackend)
	}
}

// Orchestration loads the orchestration file. BUILD_CACHE_OPTIONS, when set,
// overrides the file.
func (c Config) Orchestration() (buildctx.OrchestrationFiles, error) {
	o, err := buildctx.LoadOrchestrationFiles(c.OrchestrationFile)
	if err != nil {
		return o, err
	}
	if c.BuildCacheOptions != "" {
		opt, err := buildctx.ParseBuildCacheOptions(c.BuildCacheOptions)
		if err != nil {
			return o, err
		}
		o.ExtensibilityImposition.BuildCacheOptions = opt
	}
	return o, nil
}

// BuildMetadata describes the running build.
func (c Config) BuildMetadata() buildctx.BuildMetadata {
	return buildctx.BuildMetadata{
		BuildID:       c.BuildID,
		Branch:        c.Branch,
		CommitSha:     c.CommitSha,
		PullRequestID: c.PullRequestID,
	}
}
