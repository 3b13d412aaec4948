package statestore

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/k8ika0s/build-sequencer/internal/buildstate"
)

// Logger receives advisory diagnostics.
type Logger interface {
	Printf(format string, args ...any)
}

// Loader fetches the state files of a set of buckets.
type Loader struct {
	Store       Store
	Index       Index
	Parallelism int
	FileName    string
	Logger      Logger
}

func (l *Loader) logf(format string, args ...any) {
	if l.Logger != nil {
		l.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Load reads every state file recorded for the given buckets. Missing,
// unreadable and foreign-version files are logged and skipped; only context
// and index errors fail the load.
func (l *Loader) Load(ctx context.Context, buckets []buildstate.BucketID) (*buildstate.Metadata, error) {
	var (
		mu  sync.Mutex
		out buildstate.Metadata
	)
	g, ctx := errgroup.WithContext(ctx)
	if l.Parallelism > 0 {
		g.SetLimit(l.Parallelism)
	}
	for _, b := range buckets {
		b := b
		g.Go(func() error {
			files, err := l.loadBucket(ctx, b)
			if err != nil {
				return err
			}
			mu.Lock()
			out.Add(files...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (l *Loader) loadBucket(ctx context.Context, b buildstate.BucketID) ([]*buildstate.BuildStateFile, error) {
	keys := []string{Key(b, l.FileName)}
	if l.Index != nil {
		entries, err := l.Index.Lookup(ctx, b)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			keys = keys[:0]
			for _, e := range entries {
				keys = append(keys, e.Location)
			}
		}
	}
	var files []*buildstate.BuildStateFile
	for _, key := range keys {
		f, err := l.read(ctx, key)
		if err != nil {
			return nil, err
		}
		if f == nil {
			continue
		}
		if !f.Bucket.Matches(b) {
			l.logf("statestore: skip %s: bucket %s does not match %s", key, f.Bucket, b)
			continue
		}
		files = append(files, f)
	}
	return files, nil
}

// Previous returns the newest readable state file recorded for a bucket
// tag under any content hash. Without an index there is no way to find
// files of other hashes and it returns nil.
func (l *Loader) Previous(ctx context.Context, tag string) (*buildstate.BuildStateFile, error) {
	if l.Index == nil {
		return nil, nil
	}
	entries, err := l.Index.LookupTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		f, err := l.read(ctx, e.Location)
		if err != nil {
			return nil, err
		}
		if f == nil {
			continue
		}
		if !strings.EqualFold(f.Bucket.Tag, tag) {
			l.logf("statestore: skip %s: bucket %s is not tagged %s", e.Location, f.Bucket, tag)
			continue
		}
		return f, nil
	}
	return nil, nil
}

// read fetches and decodes one state file. Files that are missing,
// unreadable or of another version yield nil; only context errors fail.
func (l *Loader) read(ctx context.Context, key string) (*buildstate.BuildStateFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := l.Store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		l.logf("statestore: read %s: %v", key, err)
		return nil, nil
	}
	f, err := buildstate.Unmarshal(data)
	if err != nil {
		l.logf("statestore: skip %s: %v", key, err)
		return nil, nil
	}
	f.Location = key
	return f, nil
}
