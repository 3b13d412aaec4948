// Package sequencer decides which projects of a build must be rebuilt and
// which can be restored from a previous build's state files, and orders the
// result into waves.
package sequencer

import (
	"log"
	"path/filepath"
	"strings"

	"github.com/k8ika0s/build-sequencer/internal/buildctx"
	"github.com/k8ika0s/build-sequencer/internal/buildstate"
	"github.com/k8ika0s/build-sequencer/internal/model"
	"github.com/k8ika0s/build-sequencer/internal/packagecheck"
	"github.com/k8ika0s/build-sequencer/internal/statefile"
)

// Logger receives planning diagnostics.
type Logger interface {
	Printf(format string, args ...any)
}

// PackageChecker verifies a cached output is restorable.
type PackageChecker interface {
	DoesArtifactContainProjectItem(p *model.ConfiguredProject) bool
}

// InputsCheck compares tracked input files with a state file's record.
type InputsCheck interface {
	Changed(recorded []buildstate.TrackedInputFile) (bool, string, error)
}

// Sequencer plans one build.
type Sequencer struct {
	// StateFiles are the state files applicable to the current tree.
	StateFiles     []*buildstate.BuildStateFile
	PackageChecker PackageChecker
	// Inputs is optional; without it tracked inputs are not compared.
	Inputs   InputsCheck
	Pipeline buildctx.PipelineService
	Logger   Logger
}

// NewFromContext selects the applicable state files of ctx, evicts outputs
// of deleted projects, publishes IsBuildCacheEnabled and returns a sequencer
// wired to the result.
func NewFromContext(ctx *buildctx.Context, inputs InputsCheck, logger Logger) *Sequencer {
	ctrl := &statefile.Controller{Logger: logger}
	files := ctrl.GetApplicableStateFiles(ctx)
	ctrl.EvictNotExistentProjects(ctx, files)
	ctrl.SetIsBuildCacheEnabled(ctx, files)
	return &Sequencer{
		StateFiles:     files,
		PackageChecker: packagecheck.New(logger, files),
		Inputs:         inputs,
		Pipeline:       ctx.Pipeline,
		Logger:         logger,
	}
}

func (s *Sequencer) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// SelectStateFiles returns the state files of a bucket, newest build first.
func (s *Sequencer) SelectStateFiles(bucketTag string) []*buildstate.BuildStateFile {
	return selectStateFiles(s.StateFiles, bucketTag)
}

func selectStateFiles(files []*buildstate.BuildStateFile, bucketTag string) []*buildstate.BuildStateFile {
	var out []*buildstate.BuildStateFile
	for _, f := range files {
		if strings.EqualFold(f.Bucket.Tag, bucketTag) {
			out = append(out, f)
		}
	}
	buildstate.SortNewestFirst(out)
	return out
}

// ApplyStateFile decides whether p can reuse the outputs recorded by the
// newest candidate state file of its bucket. loggedUpToDate keeps the
// up-to-date message to one line per bucket. Downstream mode does not change
// this decision; CreatePlan applies it to inclusion only.
func (s *Sequencer) ApplyStateFile(candidates []*buildstate.BuildStateFile, sourcesRoot string, p *model.ConfiguredProject, loggedUpToDate map[string]bool, checker PackageChecker) {
	files := selectStateFiles(candidates, p.Directory)
	if len(files) == 0 {
		p.MarkDirty(model.ProjectOutputNotFound)
		s.logf("%s: no state file for bucket %s", p.ProjectFileName(), p.Directory)
		return
	}
	sf := files[0]
	key := ProjectKey(sourcesRoot, p.FullPath)
	if _, ok := sf.Output(key); !ok {
		p.MarkDirty(model.ProjectOutputNotFound)
		s.logf("%s: no output recorded in build %s", key, sf.BuildID)
		return
	}
	if s.Inputs != nil {
		changed, name, err := s.Inputs.Changed(sf.TrackedInputs)
		if err != nil {
			p.MarkDirty(model.InputsChanged)
			s.logf("%s: tracked inputs unreadable: %v", key, err)
			return
		}
		if changed {
			p.MarkDirty(model.InputsChanged)
			s.logf("%s: tracked input %s changed since build %s", key, name, sf.BuildID)
			return
		}
	}
	if checker != nil && !checker.DoesArtifactContainProjectItem(p) {
		p.SetReason(model.OutputNotInPackages)
		return
	}
	tag := strings.ToLower(p.Directory)
	if loggedUpToDate != nil && !loggedUpToDate[tag] {
		s.logf("%s is up to date (build %s)", p.Directory, sf.BuildID)
		loggedUpToDate[tag] = true
	}
}

// ProjectKey is the state file key of a project: its path relative to the
// sources root with forward slashes. Paths outside the root are kept as is.
func ProjectKey(sourcesRoot, fullPath string) string {
	if sourcesRoot != "" {
		rel, err := filepath.Rel(filepath.FromSlash(sourcesRoot), filepath.FromSlash(fullPath))
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(fullPath)
}
