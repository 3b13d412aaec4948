// Package inputs compares the tracked input files of the current build with
// the ones recorded in a state file.
package inputs

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/k8ika0s/build-sequencer/internal/buildstate"
)

// Check holds the tracked input files of the current build.
type Check struct {
	Paths []string
	// TreatAsFiles compares content hashes; otherwise only file names are
	// compared.
	TreatAsFiles bool

	once    sync.Once
	current []buildstate.TrackedInputFile
	err     error
}

// New returns a check over paths.
func New(paths []string, treatAsFiles bool) *Check {
	return &Check{Paths: paths, TreatAsFiles: treatAsFiles}
}

// Current returns the tracked inputs of this build, hashing them once.
func (c *Check) Current() ([]buildstate.TrackedInputFile, error) {
	c.once.Do(func() {
		c.current, c.err = c.collect()
	})
	return c.current, c.err
}

func (c *Check) collect() ([]buildstate.TrackedInputFile, error) {
	out := make([]buildstate.TrackedInputFile, 0, len(c.Paths))
	for _, p := range c.Paths {
		f := buildstate.TrackedInputFile{Path: filepath.ToSlash(p)}
		if c.TreatAsFiles {
			sum, err := HashFile(p)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("hash tracked input %s: %w", p, err)
			}
			f.Sha1 = sum
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Changed reports whether recorded differs from the current inputs and names
// the first differing file.
func (c *Check) Changed(recorded []buildstate.TrackedInputFile) (bool, string, error) {
	current, err := c.Current()
	if err != nil {
		return false, "", err
	}
	if c.TreatAsFiles {
		changed, name := diffByHash(current, recorded)
		return changed, name, nil
	}
	changed, name := diffByName(current, recorded)
	return changed, name, nil
}

func diffByHash(current, recorded []buildstate.TrackedInputFile) (bool, string) {
	want := make(map[string]string, len(recorded))
	for _, f := range recorded {
		want[key(f.Path)] = f.Sha1
	}
	for _, f := range current {
		sum, ok := want[key(f.Path)]
		if !ok || !strings.EqualFold(sum, f.Sha1) {
			return true, f.Path
		}
		delete(want, key(f.Path))
	}
	for _, f := range recorded {
		if _, left := want[key(f.Path)]; left {
			return true, f.Path
		}
	}
	return false, ""
}

func diffByName(current, recorded []buildstate.TrackedInputFile) (bool, string) {
	names := make(map[string]int)
	for _, f := range recorded {
		names[baseKey(f.Path)]++
	}
	for _, f := range current {
		if names[baseKey(f.Path)] == 0 {
			return true, f.Path
		}
		names[baseKey(f.Path)]--
	}
	for _, f := range recorded {
		if names[baseKey(f.Path)] > 0 {
			return true, f.Path
		}
	}
	return false, ""
}

func key(p string) string {
	return strings.ToLower(filepath.ToSlash(p))
}

func baseKey(p string) string {
	return strings.ToLower(filepath.Base(filepath.FromSlash(p)))
}

// HashFile returns the hex SHA-1 of a file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
