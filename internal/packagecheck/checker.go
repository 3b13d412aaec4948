// Package packagecheck verifies that a project's cached output can actually
// be restored from a recorded artifact package.
package packagecheck

import (
	"log"

	"github.com/k8ika0s/build-sequencer/internal/artifact"
	"github.com/k8ika0s/build-sequencer/internal/buildstate"
	"github.com/k8ika0s/build-sequencer/internal/model"
)

// Logger receives diagnostics.
type Logger interface {
	Printf(format string, args ...any)
}

// Checker scans the artifact manifests of a set of state files.
type Checker struct {
	Logger    Logger
	manifests []artifact.Manifest
}

// New returns a checker over every manifest recorded in files.
func New(logger Logger, files []*buildstate.BuildStateFile) *Checker {
	c := &Checker{Logger: logger}
	for _, f := range files {
		c.manifests = append(c.manifests, f.Manifests()...)
	}
	return c
}

// DoesArtifactContainProjectItem reports whether any manifest lists the
// project's expected output file.
func (c *Checker) DoesArtifactContainProjectItem(p *model.ConfiguredProject) bool {
	expected := p.ExpectedOutput()
	for _, m := range c.manifests {
		if m.Contains(expected) {
			return true
		}
	}
	c.logf("%s: %s not found in packages", p.ProjectFileName(), expected)
	for _, m := range c.manifests {
		c.logf("  checked artifact %s (instance %s)", m.ID, m.InstanceID)
	}
	return false
}

func (c *Checker) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
