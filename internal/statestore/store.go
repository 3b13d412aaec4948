// Package statestore persists state files and the index that maps source
// buckets to published state files.
package statestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/k8ika0s/build-sequencer/internal/buildstate"
)

// ErrNotFound is returned by Get for missing keys.
var ErrNotFound = errors.New("state file not found")

// Store reads and writes state file blobs by key.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Key is the store key of a bucket's state file: "~<bucket id>/<file>".
func Key(bucket buildstate.BucketID, fileName string) string {
	if fileName == "" {
		fileName = buildstate.DefaultFileName
	}
	return path.Join(bucket.ContainerName(), fileName)
}

// NullStore discards writes and finds nothing.
type NullStore struct{}

func (NullStore) Put(_ context.Context, _ string, _ []byte) error { return nil }

func (NullStore) Get(_ context.Context, key string) ([]byte, error) {
	return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
}

// FileStore keeps state files under the artifact staging directory.
type FileStore struct {
	Root string
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Root: dir}
}

func (f *FileStore) path(key string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	if clean == "/" {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(f.Root, filepath.FromSlash(clean[1:])), nil
}

// Put writes data atomically.
func (f *FileStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}

// Get reads the blob stored under key.
func (f *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return data, err
}
