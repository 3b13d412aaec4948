package buildstate

import (
	"encoding/json"
	"fmt"
	"path/filepath"
)

// DefaultFileName is the state file name inside a bucket container.
const DefaultFileName = "buildstate.metadata"

// TreeVersion tells which tree state a bucket was computed from.
type TreeVersion int

const (
	CurrentTree TreeVersion = iota
	PreviousTree
)

func (v TreeVersion) String() string {
	switch v {
	case CurrentTree:
		return "CurrentTree"
	case PreviousTree:
		return "PreviousTree"
	default:
		return fmt.Sprintf("TreeVersion(%d)", int(v))
	}
}

// MarshalJSON encodes the version by name.
func (v TreeVersion) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON accepts the name or the numeric value.
func (v *TreeVersion) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		switch s {
		case "CurrentTree":
			*v = CurrentTree
		case "PreviousTree":
			*v = PreviousTree
		default:
			return fmt.Errorf("unknown tree version %q", s)
		}
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("tree version: %w", err)
	}
	*v = TreeVersion(n)
	return nil
}

// BucketID addresses one hashed source-tree subdirectory.
type BucketID struct {
	// ID is the content hash of the bucket's tracked files.
	ID string `json:"id"`
	// Tag names the source directory the bucket covers.
	Tag     string      `json:"tag"`
	Version TreeVersion `json:"version"`
}

func (b BucketID) String() string {
	return b.Tag + "@" + b.ID
}

// ContainerName is the staging directory name for the bucket's state file.
func (b BucketID) ContainerName() string {
	return "~" + b.ID
}

// Path returns where the bucket's state file lives under stagingDir.
func (b BucketID) Path(stagingDir, fileName string) string {
	if fileName == "" {
		fileName = DefaultFileName
	}
	return filepath.Join(stagingDir, b.ContainerName(), fileName)
}

// Matches reports whether two bucket ids describe the same content.
func (b BucketID) Matches(other BucketID) bool {
	return b.ID == other.ID && b.Tag == other.Tag
}
