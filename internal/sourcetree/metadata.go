// Package sourcetree describes the source tree of the current build: the
// hashed buckets and the file changes since the previous build.
package sourcetree

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/k8ika0s/build-sequencer/internal/buildstate"
)

// ChangeStatus classifies a changed path.
type ChangeStatus int

const (
	Modified ChangeStatus = iota
	Added
	Deleted
)

func (s ChangeStatus) String() string {
	switch s {
	case Added:
		return "Added"
	case Deleted:
		return "Deleted"
	default:
		return "Modified"
	}
}

// MarshalJSON encodes the status by name.
func (s ChangeStatus) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// UnmarshalJSON decodes a status name.
func (s *ChangeStatus) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch strings.ToLower(name) {
	case "added":
		*s = Added
	case "deleted":
		*s = Deleted
	case "modified", "":
		*s = Modified
	default:
		return fmt.Errorf("unknown change status %q", name)
	}
	return nil
}

// Change is one path that differs from the previous build, relative to the
// sources root with forward slashes.
type Change struct {
	Path   string       `json:"path"`
	Status ChangeStatus `json:"status"`
}

// Metadata is the current source tree as seen by planning.
type Metadata struct {
	Root    string                `json:"root"`
	Buckets []buildstate.BucketID `json:"buckets"`
	Changes []Change              `json:"changes,omitempty"`
}

// Bucket returns the bucket with the given tag.
func (m *Metadata) Bucket(tag string) (buildstate.BucketID, bool) {
	for _, b := range m.Buckets {
		if strings.EqualFold(b.Tag, tag) {
			return b, true
		}
	}
	return buildstate.BucketID{}, false
}

// Deleted returns the changes with status Deleted.
func (m *Metadata) Deleted() []Change {
	var out []Change
	for _, c := range m.Changes {
		if c.Status == Deleted {
			out = append(out, c)
		}
	}
	return out
}

// ChangesUnder returns the changes whose path lies below dir.
func (m *Metadata) ChangesUnder(dir string) []Change {
	prefix := strings.ToLower(strings.Trim(path.Clean(strings.ReplaceAll(dir, "\\", "/")), "/")) + "/"
	var out []Change
	for _, c := range m.Changes {
		p := strings.ToLower(strings.TrimPrefix(strings.ReplaceAll(c.Path, "\\", "/"), "/"))
		if prefix == "./" || strings.HasPrefix(p, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// ParseChanges reads `git diff --name-status` output. Renames become a
// deletion of the old path and an addition of the new one.
func ParseChanges(r io.Reader) ([]Change, error) {
	var out []Change
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("malformed change line %q", line)
		}
		code := fields[0]
		switch {
		case strings.HasPrefix(code, "R") && len(fields) >= 3:
			out = append(out, Change{Path: fields[1], Status: Deleted}, Change{Path: fields[2], Status: Added})
		case strings.HasPrefix(code, "C") && len(fields) >= 3:
			out = append(out, Change{Path: fields[2], Status: Added})
		case code == "A":
			out = append(out, Change{Path: fields[1], Status: Added})
		case code == "D":
			out = append(out, Change{Path: fields[1], Status: Deleted})
		default:
			out = append(out, Change{Path: fields[1], Status: Modified})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
