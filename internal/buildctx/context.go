// Package buildctx carries the inputs of one build operation: source tree,
// known state files, switches and orchestration settings.
package buildctx

import (
	"strconv"
	"sync"

	"github.com/k8ika0s/build-sequencer/internal/buildstate"
	"github.com/k8ika0s/build-sequencer/internal/sourcetree"
)

// IsBuildCacheEnabled is the variable set once state files were found.
const IsBuildCacheEnabled = "IsBuildCacheEnabled"

// Switches are command line switches that affect planning.
type Switches struct {
	// Downstream builds the selection plus every project that consumes it.
	Downstream bool `json:"downstream"`
}

// BuildMetadata identifies the running build.
type BuildMetadata struct {
	BuildID       string `json:"build_id"`
	Branch        string `json:"branch,omitempty"`
	CommitSha     string `json:"commit_sha,omitempty"`
	PullRequestID string `json:"pull_request_id,omitempty"`
}

// IsPullRequest reports whether the build validates a pull request.
func (m BuildMetadata) IsPullRequest() bool { return m.PullRequestID != "" }

// PipelineService answers questions about the surrounding build pipeline.
type PipelineService interface {
	// DependencyContributors names directories that contribute dependencies
	// to the build without being selected by the user.
	DependencyContributors() []string
}

// StaticPipeline is a PipelineService with a fixed contributor list.
type StaticPipeline struct {
	Contributors []string
}

func (s StaticPipeline) DependencyContributors() []string { return s.Contributors }

// Variables are string values shared with the execution layer.
type Variables struct {
	mu     sync.RWMutex
	values map[string]string
}

// Set stores a value.
func (v *Variables) Set(key, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.values == nil {
		v.values = make(map[string]string)
	}
	v.values[key] = value
}

// SetBool stores a boolean value.
func (v *Variables) SetBool(key string, value bool) {
	v.Set(key, strconv.FormatBool(value))
}

// Get returns a value.
func (v *Variables) Get(key string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.values[key]
	return val, ok
}

// Bool returns a boolean value; unset or malformed values are false.
func (v *Variables) Bool(key string) bool {
	s, ok := v.Get(key)
	if !ok {
		return false
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// Snapshot copies all values.
func (v *Variables) Snapshot() map[string]string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]string, len(v.values))
	for k, val := range v.values {
		out[k] = val
	}
	return out
}

// Context is the input of one build operation.
type Context struct {
	SourcesRoot string
	StagingDir  string
	SourceTree  *sourcetree.Metadata
	StateFiles  *buildstate.Metadata
	Switches    Switches
	Build       BuildMetadata
	Variables   *Variables
	Pipeline    PipelineService
}

// New returns a context with empty metadata.
func New(sourcesRoot string) *Context {
	return &Context{
		SourcesRoot: sourcesRoot,
		SourceTree:  &sourcetree.Metadata{Root: sourcesRoot},
		StateFiles:  &buildstate.Metadata{},
		Variables:   &Variables{},
		Pipeline:    StaticPipeline{},
	}
}
