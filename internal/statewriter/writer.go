// Package statewriter records the outputs of a finished build as one state
// file per source tree bucket.
package statewriter

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/k8ika0s/build-sequencer/internal/artifact"
	"github.com/k8ika0s/build-sequencer/internal/buildctx"
	"github.com/k8ika0s/build-sequencer/internal/buildstate"
	"github.com/k8ika0s/build-sequencer/internal/statestore"
)

// Logger receives advisory diagnostics.
type Logger interface {
	Printf(format string, args ...any)
}

// History finds the newest state file of a bucket tag across content
// hashes.
type History interface {
	Previous(ctx context.Context, tag string) (*buildstate.BuildStateFile, error)
}

// Writer publishes state files to a store and, when set, an index.
type Writer struct {
	Store    statestore.Store
	Index    statestore.Index
	FileName string
	// History is consulted for the parent of each new file in addition to
	// the state files of the build context. It may be nil.
	History History
	Logger  Logger
}

// Input is what the finished build produced.
type Input struct {
	// Outputs are the snapshots of projects built in this run. Directory
	// selects the bucket a snapshot belongs to.
	Outputs []*buildstate.ProjectOutputSnapshot
	// Artifacts are the packages published by this run, keyed by bucket tag
	// and then by artifact group name.
	Artifacts     map[string]map[string][]artifact.Manifest
	TrackedInputs []buildstate.TrackedInputFile
}

// Written describes one published state file.
type Written struct {
	File *buildstate.BuildStateFile
	Key  string
}

func (w *Writer) logf(format string, args ...any) {
	if w.Logger != nil {
		w.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// WriteStateFile builds and stores a state file for every bucket of the
// current source tree.
func (w *Writer) WriteStateFile(ctx context.Context, bctx *buildctx.Context, in Input) ([]Written, error) {
	if bctx.SourceTree == nil {
		return nil, fmt.Errorf("source tree metadata required")
	}
	var deleted []string
	for _, c := range bctx.SourceTree.Deleted() {
		deleted = append(deleted, c.Path)
	}

	var out []Written
	for _, bucket := range bctx.SourceTree.Buckets {
		f := buildstate.New(bucket, bctx.Build.BuildID, bctx.Build.CommitSha)
		prev := previous(bctx.StateFiles, bucket.Tag)
		if w.History != nil {
			h, err := w.History.Previous(ctx, bucket.Tag)
			if err != nil {
				return out, fmt.Errorf("find previous state file for %s: %w", bucket.Tag, err)
			}
			prev = newer(prev, h)
		}
		f.SetParent(prev)

		fresh := 0
		for _, s := range in.Outputs {
			if !strings.EqualFold(s.Directory, bucket.Tag) {
				continue
			}
			cp := *s
			cp.FilesWritten = append([]string(nil), s.FilesWritten...)
			f.Outputs[cp.ProjectFile] = &cp
			fresh++
		}
		carried := MergeExistingOutputs(f, prev, deleted)
		mergeArtifacts(f, prev, in.Artifacts[bucket.Tag])
		f.TrackedInputs = append(f.TrackedInputs, in.TrackedInputs...)
		f.PrepareForSerialization()

		data, err := buildstate.Marshal(f)
		if err != nil {
			return out, fmt.Errorf("marshal state file for %s: %w", bucket, err)
		}
		key := statestore.Key(bucket, w.FileName)
		if err := w.Store.Put(ctx, key, data); err != nil {
			return out, fmt.Errorf("write state file %s: %w", key, err)
		}
		if w.Index != nil {
			entry := statestore.Entry{
				BucketID:    bucket.ID,
				Tag:         bucket.Tag,
				BuildID:     f.BuildID,
				StateFileID: f.ID,
				Location:    key,
			}
			if err := w.Index.Record(ctx, entry); err != nil {
				return out, fmt.Errorf("index state file %s: %w", key, err)
			}
		}
		f.Location = key
		w.logf("statewriter: wrote %s (%d built, %d carried) to %s", bucket, fresh, carried, key)
		out = append(out, Written{File: f, Key: key})
	}
	return out, nil
}

// previous returns the newest known state file for a bucket tag, whatever
// its content hash.
func previous(md *buildstate.Metadata, tag string) *buildstate.BuildStateFile {
	if md == nil {
		return nil
	}
	var files []*buildstate.BuildStateFile
	for _, f := range md.StateFiles {
		if strings.EqualFold(f.Bucket.Tag, tag) {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil
	}
	buildstate.SortNewestFirst(files)
	return files[0]
}

// newer returns whichever of a and b has the later build, preferring a on
// a tie.
func newer(a, b *buildstate.BuildStateFile) *buildstate.BuildStateFile {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case buildstate.CompareBuildIDs(b.BuildID, a.BuildID) > 0:
		return b
	default:
		return a
	}
}

// MergeExistingOutputs copies the outputs of prev that f does not already
// hold, skipping deleted project files. Outputs already in f win. It returns
// the number of outputs carried over.
func MergeExistingOutputs(f, prev *buildstate.BuildStateFile, deleted []string) int {
	if prev == nil {
		return 0
	}
	gone := make(map[string]bool, len(deleted))
	for _, d := range deleted {
		gone[foldPath(d)] = true
	}
	current := make(map[string]bool, len(f.Outputs))
	for k := range f.Outputs {
		current[foldPath(k)] = true
	}
	n := 0
	for k, s := range prev.Outputs {
		key := foldPath(k)
		if current[key] || gone[key] {
			continue
		}
		cp := *s
		cp.FilesWritten = append([]string(nil), s.FilesWritten...)
		f.Outputs[k] = &cp
		n++
	}
	return n
}

// mergeArtifacts keeps the previous artifact groups and replaces the ones
// this build republished.
func mergeArtifacts(f, prev *buildstate.BuildStateFile, fresh map[string][]artifact.Manifest) {
	if prev != nil {
		for name, ms := range prev.Artifacts {
			f.Artifacts[name] = append([]artifact.Manifest(nil), ms...)
		}
	}
	for name, ms := range fresh {
		f.Artifacts[name] = append([]artifact.Manifest(nil), ms...)
	}
}

func foldPath(p string) string {
	return strings.ToLower(strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "./"))
}
