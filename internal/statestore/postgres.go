package statestore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/k8ika0s/build-sequencer/internal/buildstate"
)

const schema = `
CREATE TABLE IF NOT EXISTS build_state_files (
	state_file_id TEXT PRIMARY KEY,
	bucket_id     TEXT NOT NULL,
	tag           TEXT NOT NULL,
	build_id      TEXT NOT NULL,
	location      TEXT NOT NULL,
	recorded_at   BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS build_state_files_bucket ON build_state_files (bucket_id, tag);
CREATE INDEX IF NOT EXISTS build_state_files_tag ON build_state_files (lower(tag));
`

// PostgresIndex keeps the index in the build_state_files table.
type PostgresIndex struct {
	db *sql.DB
}

// OpenPostgres connects with the lib/pq driver and ensures the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresIndex, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := NewPostgres(db)
	if err := p.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres creates an index with an existing *sql.DB.
func NewPostgres(db *sql.DB) *PostgresIndex {
	return &PostgresIndex{db: db}
}

// EnsureSchema creates the table if needed.
func (p *PostgresIndex) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Record upserts e by state file id.
func (p *PostgresIndex) Record(ctx context.Context, e Entry) error {
	stamp(&e)
	_, err := p.db.ExecContext(ctx, `
INSERT INTO build_state_files (state_file_id, bucket_id, tag, build_id, location, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (state_file_id) DO UPDATE SET location = EXCLUDED.location, recorded_at = EXCLUDED.recorded_at`,
		e.StateFileID, e.BucketID, e.Tag, e.BuildID, e.Location, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("record state file %s: %w", e.StateFileID, err)
	}
	return nil
}

// Lookup returns the entries of a bucket, newest build first.
func (p *PostgresIndex) Lookup(ctx context.Context, bucket buildstate.BucketID) ([]Entry, error) {
	return p.query(ctx, `
SELECT state_file_id, bucket_id, tag, build_id, location, recorded_at
FROM build_state_files WHERE bucket_id = $1 AND tag = $2`, bucket.ID, bucket.Tag)
}

// LookupTag returns the entries of every bucket tagged tag, newest build
// first.
func (p *PostgresIndex) LookupTag(ctx context.Context, tag string) ([]Entry, error) {
	return p.query(ctx, `
SELECT state_file_id, bucket_id, tag, build_id, location, recorded_at
FROM build_state_files WHERE lower(tag) = lower($1)`, tag)
}

func (p *PostgresIndex) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.StateFileID, &e.BucketID, &e.Tag, &e.BuildID, &e.Location, &e.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortEntries(out)
	return out, nil
}

// Close closes the database.
func (p *PostgresIndex) Close() error { return p.db.Close() }
