// Package statefile selects the state files that apply to the current source
// tree.
package statefile

import (
	"log"

	"github.com/k8ika0s/build-sequencer/internal/buildctx"
	"github.com/k8ika0s/build-sequencer/internal/buildstate"
)

// Logger receives advisory diagnostics.
type Logger interface {
	Printf(format string, args ...any)
}

// Controller picks applicable state files and cleans them up.
type Controller struct {
	Logger Logger
}

func (c *Controller) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// GetApplicableStateFiles returns every known state file whose bucket matches
// a bucket of the current tree, newest build first within each bucket.
func (c *Controller) GetApplicableStateFiles(ctx *buildctx.Context) []*buildstate.BuildStateFile {
	if ctx.SourceTree == nil || ctx.StateFiles == nil {
		return nil
	}
	var out []*buildstate.BuildStateFile
	for _, bucket := range ctx.SourceTree.Buckets {
		files := ctx.StateFiles.ForBucket(bucket)
		if len(files) == 0 {
			c.logf("No state file: %s (bucket %s)", bucket.Tag, bucket.ID)
			continue
		}
		newest := files[0]
		c.logf("Using state file: %s (bucket %s, build %s, id %s, %d candidates) %s",
			bucket.Tag, bucket.ID, newest.BuildID, newest.ID, len(files), newest.Location)
		out = append(out, files...)
	}
	return out
}

// EvictNotExistentProjects removes outputs of project files the source tree
// reports as deleted. Keys that are not present are ignored.
func (c *Controller) EvictNotExistentProjects(ctx *buildctx.Context, files []*buildstate.BuildStateFile) int {
	if ctx.SourceTree == nil {
		return 0
	}
	evicted := 0
	for _, change := range ctx.SourceTree.Deleted() {
		for _, f := range files {
			if f.RemoveOutput(change.Path) {
				c.logf("statefile: evicted deleted project %s from %s (build %s)", change.Path, f.Bucket.Tag, f.BuildID)
				evicted++
			}
		}
	}
	return evicted
}

// SetIsBuildCacheEnabled publishes whether any state file applies.
func (c *Controller) SetIsBuildCacheEnabled(ctx *buildctx.Context, files []*buildstate.BuildStateFile) bool {
	enabled := len(files) > 0
	if ctx.Variables == nil {
		ctx.Variables = &buildctx.Variables{}
	}
	ctx.Variables.SetBool(buildctx.IsBuildCacheEnabled, enabled)
	return enabled
}
