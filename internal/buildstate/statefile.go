// Package buildstate models the persisted snapshot of a previous build: the
// outputs each project wrote and the artifact packages that hold them.
package buildstate

import (
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/k8ika0s/build-sequencer/internal/artifact"
)

// ProjectOutputSnapshot records what one project wrote.
type ProjectOutputSnapshot struct {
	ProjectFile string `json:"projectFile"`
	// AbsoluteProjectFile is machine-local and never persisted.
	AbsoluteProjectFile string   `json:"-"`
	Directory           string   `json:"directory"`
	FilesWritten        []string `json:"filesWritten"`
	OutputPath          string   `json:"outputPath,omitempty"`
	IsTestProject       bool     `json:"isTestProject,omitempty"`
	Origin              string   `json:"origin,omitempty"`
}

// DefaultExcludedDirs are intermediate and staging folders whose files are
// never recorded as outputs.
var DefaultExcludedDirs = []string{"obj", "_artifacts"}

// Normalize drops files under excluded directories, then de-duplicates and
// sorts the list. Paths are compared with forward slashes.
func (s *ProjectOutputSnapshot) Normalize(excludedDirs ...string) {
	if len(excludedDirs) == 0 {
		excludedDirs = DefaultExcludedDirs
	}
	seen := make(map[string]struct{}, len(s.FilesWritten))
	out := s.FilesWritten[:0]
	for _, f := range s.FilesWritten {
		f = strings.ReplaceAll(f, "\\", "/")
		if f == "" || underAny(f, excludedDirs) {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	s.FilesWritten = out
}

func underAny(file string, dirs []string) bool {
	lower := strings.ToLower(path.Clean(file))
	for _, d := range dirs {
		d = strings.ToLower(strings.Trim(strings.ReplaceAll(d, "\\", "/"), "/"))
		if d == "" {
			continue
		}
		if strings.HasPrefix(lower, d+"/") || strings.Contains(lower, "/"+d+"/") {
			return true
		}
	}
	return false
}

// TrackedInputFile is an input outside the source tree that affects every
// project in a bucket, e.g. shared build property files.
type TrackedInputFile struct {
	Path string `json:"path"`
	Sha1 string `json:"sha1,omitempty"`
}

// BuildStateFile is the snapshot of one build for one bucket.
type BuildStateFile struct {
	ID            string                            `json:"id"`
	BuildID       string                            `json:"buildId"`
	TreeSha       string                            `json:"treeSha,omitempty"`
	Bucket        BucketID                          `json:"bucketId"`
	Outputs       map[string]*ProjectOutputSnapshot `json:"outputs"`
	Artifacts     map[string][]artifact.Manifest    `json:"artifacts,omitempty"`
	TrackedInputs []TrackedInputFile                `json:"trackedInputFiles,omitempty"`
	ParentID      string                            `json:"parentId,omitempty"`
	ParentBuildID string                            `json:"parentBuildId,omitempty"`
	ParentTreeSha string                            `json:"parentTreeSha,omitempty"`

	// Location is where the file was read from; set by stores.
	Location string `json:"-"`
}

// New returns an empty state file with a fresh id.
func New(bucket BucketID, buildID, treeSha string) *BuildStateFile {
	return &BuildStateFile{
		ID:        uuid.NewString(),
		BuildID:   buildID,
		TreeSha:   treeSha,
		Bucket:    bucket,
		Outputs:   make(map[string]*ProjectOutputSnapshot),
		Artifacts: make(map[string][]artifact.Manifest),
	}
}

// SetParent links the file to the build it supersedes.
func (f *BuildStateFile) SetParent(parent *BuildStateFile) {
	if parent == nil {
		return
	}
	f.ParentID = parent.ID
	f.ParentBuildID = parent.BuildID
	f.ParentTreeSha = parent.TreeSha
}

// Output finds the recorded output of a project file. Keys are compared
// exactly first and then ignoring case and separator style.
func (f *BuildStateFile) Output(projectFile string) (*ProjectOutputSnapshot, bool) {
	if s, ok := f.Outputs[projectFile]; ok {
		return s, true
	}
	key := outputKey(projectFile)
	for k, s := range f.Outputs {
		if outputKey(k) == key {
			return s, true
		}
	}
	return nil, false
}

// RemoveOutput deletes the output recorded for projectFile. Missing keys are
// ignored.
func (f *BuildStateFile) RemoveOutput(projectFile string) bool {
	if _, ok := f.Outputs[projectFile]; ok {
		delete(f.Outputs, projectFile)
		return true
	}
	key := outputKey(projectFile)
	for k := range f.Outputs {
		if outputKey(k) == key {
			delete(f.Outputs, k)
			return true
		}
	}
	return false
}

// Manifests returns every artifact manifest in container name order.
func (f *BuildStateFile) Manifests() []artifact.Manifest {
	names := make([]string, 0, len(f.Artifacts))
	for name := range f.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []artifact.Manifest
	for _, name := range names {
		out = append(out, f.Artifacts[name]...)
	}
	return out
}

// PrepareForSerialization strips machine-local paths and normalizes outputs.
func (f *BuildStateFile) PrepareForSerialization() {
	for _, s := range f.Outputs {
		s.AbsoluteProjectFile = ""
		s.Normalize()
	}
}

func outputKey(p string) string {
	return strings.ToLower(strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "./"))
}
