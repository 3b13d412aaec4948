package sourcetree

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/k8ika0s/build-sequencer/internal/buildstate"
)

// DefaultSkipDirs are never part of a bucket hash.
var DefaultSkipDirs = []string{".git", "bin", "obj"}

// Hasher computes content buckets for top-level source directories.
type Hasher struct {
	// Parallelism bounds how many buckets are hashed at once.
	Parallelism int
	SkipDirs    []string
}

// Hash returns one CurrentTree bucket per tag. With no tags every top-level
// directory of root is hashed. Buckets are returned sorted by tag.
func (h *Hasher) Hash(ctx context.Context, root string, tags []string) ([]buildstate.BucketID, error) {
	if len(tags) == 0 {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("list source root: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() && !h.skip(e.Name()) {
				tags = append(tags, e.Name())
			}
		}
	}
	out := make([]buildstate.BucketID, len(tags))
	g, gctx := errgroup.WithContext(ctx)
	limit := h.Parallelism
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for i, tag := range tags {
		i, tag := i, tag
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			id, err := h.hashDir(filepath.Join(root, tag), tag)
			if err != nil {
				return fmt.Errorf("hash bucket %s: %w", tag, err)
			}
			out[i] = buildstate.BucketID{ID: id, Tag: tag, Version: buildstate.CurrentTree}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}

func (h *Hasher) skip(name string) bool {
	dirs := h.SkipDirs
	if dirs == nil {
		dirs = DefaultSkipDirs
	}
	for _, d := range dirs {
		if strings.EqualFold(d, name) {
			return true
		}
	}
	return false
}

// hashDir hashes the tag and every file's relative path and content.
func (h *Hasher) hashDir(dir, tag string) (string, error) {
	sum := sha1.New()
	io.WriteString(sum, tag)
	sum.Write([]byte{0})
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && h.skip(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		io.WriteString(sum, filepath.ToSlash(rel))
		sum.Write([]byte{0})
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		_, err = io.Copy(sum, f)
		f.Close()
		if err != nil {
			return err
		}
		sum.Write([]byte{0})
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}
