package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/k8ika0s/build-sequencer/internal/buildstate"
)

// RedisIndex keeps one Redis list per bucket and one per bucket tag.
type RedisIndex struct {
	client *redis.Client
	prefix string
	// MaxEntries caps each bucket list; older entries are trimmed.
	MaxEntries int64
}

// NewRedisIndex creates a Redis-backed index. If url is empty or invalid,
// operations will error.
func NewRedisIndex(url, prefix string) *RedisIndex {
	if prefix == "" {
		prefix = "sequencer:statefiles"
	}
	if url == "" {
		return &RedisIndex{prefix: prefix, MaxEntries: 20}
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return &RedisIndex{prefix: prefix, MaxEntries: 20}
	}
	return &RedisIndex{client: redis.NewClient(opt), prefix: prefix, MaxEntries: 20}
}

func (r *RedisIndex) ensure() error {
	if r.client == nil {
		return errors.New("redis index not configured")
	}
	return nil
}

func (r *RedisIndex) key(bucketID, tag string) string {
	return r.prefix + ":" + tag + ":" + bucketID
}

func (r *RedisIndex) tagKey(tag string) string {
	return r.prefix + ":tags:" + strings.ToLower(tag)
}

// Record appends e to its bucket list.
func (r *RedisIndex) Record(ctx context.Context, e Entry) error {
	if err := r.ensure(); err != nil {
		return err
	}
	stamp(&e)
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	for _, key := range []string{r.key(e.BucketID, e.Tag), r.tagKey(e.Tag)} {
		pipe.RPush(ctx, key, data)
		if r.MaxEntries > 0 {
			pipe.LTrim(ctx, key, -r.MaxEntries, -1)
		}
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Lookup returns the entries of a bucket, newest build first.
func (r *RedisIndex) Lookup(ctx context.Context, bucket buildstate.BucketID) ([]Entry, error) {
	if err := r.ensure(); err != nil {
		return nil, err
	}
	return r.list(ctx, r.key(bucket.ID, bucket.Tag))
}

// LookupTag returns the entries recorded for a bucket tag, newest build
// first.
func (r *RedisIndex) LookupTag(ctx context.Context, tag string) ([]Entry, error) {
	if err := r.ensure(); err != nil {
		return nil, err
	}
	return r.list(ctx, r.tagKey(tag))
}

func (r *RedisIndex) list(ctx context.Context, key string) ([]Entry, error) {
	vals, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	items := make([]Entry, 0, len(vals))
	for _, v := range vals {
		var e Entry
		if err := json.Unmarshal([]byte(v), &e); err == nil {
			items = append(items, e)
		}
	}
	sortEntries(items)
	return items, nil
}

// Close releases the client.
func (r *RedisIndex) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
