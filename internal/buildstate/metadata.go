package buildstate

import (
	"sort"
	"strconv"
	"strings"
)

// Metadata is the catalog of state files known to a build.
type Metadata struct {
	StateFiles []*BuildStateFile
}

// Add appends files to the catalog, skipping nil entries.
func (m *Metadata) Add(files ...*BuildStateFile) {
	for _, f := range files {
		if f != nil {
			m.StateFiles = append(m.StateFiles, f)
		}
	}
}

// ForBucket returns the files recorded for bucket, newest build first.
func (m *Metadata) ForBucket(bucket BucketID) []*BuildStateFile {
	var out []*BuildStateFile
	for _, f := range m.StateFiles {
		if f.Bucket.Matches(bucket) {
			out = append(out, f)
		}
	}
	SortNewestFirst(out)
	return out
}

// SortNewestFirst orders files by BuildID descending. Ids that both parse as
// integers compare numerically, so "11" sorts before "3"; anything else
// compares as strings.
func SortNewestFirst(files []*BuildStateFile) {
	sort.SliceStable(files, func(i, j int) bool {
		return CompareBuildIDs(files[i].BuildID, files[j].BuildID) > 0
	})
}

// CompareBuildIDs returns -1, 0 or 1.
func CompareBuildIDs(a, b string) int {
	ai, aerr := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
	bi, berr := strconv.ParseInt(strings.TrimSpace(b), 10, 64)
	if aerr == nil && berr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
