package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS translation_keys (
	key         TEXT PRIMARY KEY,
	number      BIGINT NOT NULL DEFAULT 0,
	file        TEXT NOT NULL,
	tag         TEXT NOT NULL,
	content     TEXT NOT NULL,
	language    TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS translation_keys_number_idx ON translation_keys (number);
`

const upsertEntry = `
INSERT INTO translation_keys (key, number, file, tag, content, language)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (key) DO UPDATE SET
	number = EXCLUDED.number,
	file = EXCLUDED.file,
	tag = EXCLUDED.tag,
	content = EXCLUDED.content,
	language = EXCLUDED.language,
	updated_at = now()
`

// Entry is one extracted key as stored in the registry.
type Entry struct {
	Key      string
	Number   int64 // 0 for keys not in the generated format
	File     string
	Tag      string
	Content  string
	Language string
}

// Registry persists issued keys in PostgreSQL.
type Registry struct {
	pool *pgxpool.Pool
}

// NewRegistry connects to PostgreSQL and verifies the connection.
func NewRegistry(ctx context.Context, databaseURL string) (*Registry, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}
	log.Debug().Msg("Connected to key registry")
	return &Registry{pool: pool}, nil
}

// EnsureSchema creates the registry table if needed.
func (r *Registry) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure registry schema: %w", err)
	}
	return nil
}

// MaxKey returns the highest key number stored, or 0.
func (r *Registry) MaxKey(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(number), 0) FROM translation_keys`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("query max key: %w", err)
	}
	return n, nil
}

// Upsert inserts or updates entries in one round trip.
func (r *Registry) Upsert(ctx context.Context, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	b := &pgx.Batch{}
	for _, e := range entries {
		b.Queue(upsertEntry, e.Key, e.Number, e.File, e.Tag, e.Content, e.Language)
	}

	br := r.pool.SendBatch(ctx, b)
	defer br.Close()

	affected := 0
	for _, e := range entries {
		tag, err := br.Exec()
		if err != nil {
			return affected, fmt.Errorf("upsert key %s: %w", e.Key, err)
		}
		affected += int(tag.RowsAffected())
	}

	log.Info().Int("count", affected).Msg("Upserted registry keys")
	return affected, nil
}

// DeleteAbove removes keys numbered above n and returns how many were removed.
func (r *Registry) DeleteAbove(ctx context.Context, n int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM translation_keys WHERE number > $1`, n)
	if err != nil {
		return 0, fmt.Errorf("delete keys above %d: %w", n, err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the connection pool.
func (r *Registry) Close() {
	r.pool.Close()
}
