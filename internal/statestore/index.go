package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/k8ika0s/build-sequencer/internal/buildstate"
)

// Entry records one published state file.
type Entry struct {
	BucketID    string `json:"bucket_id"`
	Tag         string `json:"tag"`
	BuildID     string `json:"build_id"`
	StateFileID string `json:"state_file_id"`
	Location    string `json:"location"`
	RecordedAt  int64  `json:"recorded_at"`
}

// Index maps buckets to the locations of their state files.
type Index interface {
	Record(ctx context.Context, e Entry) error
	Lookup(ctx context.Context, bucket buildstate.BucketID) ([]Entry, error)
	// LookupTag returns the entries of every bucket with the given tag,
	// whatever its content hash, newest build first. Tags compare without
	// case.
	LookupTag(ctx context.Context, tag string) ([]Entry, error)
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return buildstate.CompareBuildIDs(entries[i].BuildID, entries[j].BuildID) > 0
	})
}

func stamp(e *Entry) {
	if e.RecordedAt == 0 {
		e.RecordedAt = time.Now().Unix()
	}
}

// FileIndex is a file-backed index (JSON list).
type FileIndex struct {
	path string
	mu   sync.Mutex
}

// NewFileIndex creates an index at the given file path.
func NewFileIndex(path string) *FileIndex {
	return &FileIndex{path: path}
}

func (f *FileIndex) load() ([]Entry, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []Entry{}, nil
	}
	var items []Entry
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (f *FileIndex) save(items []Entry) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o644)
}

// Record appends e, replacing an entry with the same state file id.
func (f *FileIndex) Record(ctx context.Context, e Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	stamp(&e)
	items, err := f.load()
	if err != nil {
		return err
	}
	out := items[:0]
	for _, it := range items {
		if it.StateFileID != e.StateFileID || e.StateFileID == "" {
			out = append(out, it)
		}
	}
	out = append(out, e)
	return f.save(out)
}

// Lookup returns the entries of a bucket, newest build first.
func (f *FileIndex) Lookup(ctx context.Context, bucket buildstate.BucketID) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := f.load()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, it := range items {
		if it.BucketID == bucket.ID && it.Tag == bucket.Tag {
			out = append(out, it)
		}
	}
	sortEntries(out)
	return out, nil
}

// LookupTag returns the entries of every bucket tagged tag, newest build
// first.
func (f *FileIndex) LookupTag(ctx context.Context, tag string) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := f.load()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, it := range items {
		if strings.EqualFold(it.Tag, tag) {
			out = append(out, it)
		}
	}
	sortEntries(out)
	return out, nil
}
