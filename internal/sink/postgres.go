package sink

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/webcorpus/harvester/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the connection pool used for chunk rows.
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresSink writes one row per chunk into Postgres.
type PostgresSink struct {
	pool  execCloser
	table string
}

// NewPostgresSink creates a Postgres-backed sink using the provided config.
func NewPostgresSink(ctx context.Context, cfg PostgresConfig) (*PostgresSink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sink.postgres.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "chunks"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresSink{pool: pool, table: table}, nil
}

// NewPostgresSinkWithPool constructs a sink from an existing pool (primarily for testing).
func NewPostgresSinkWithPool(pool execCloser, table string) (*PostgresSink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "chunks"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresSink{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *PostgresSink) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Store inserts one row per chunk. Re-stores of the same URL and index
// overwrite the previous text so reruns stay idempotent.
func (s *PostgresSink) Store(ctx context.Context, doc crawler.ChunkedDocument) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres sink is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	url,
	title,
	lang,
	depth,
	task_id,
	content_hash,
	fetched_at,
	chunk_index,
	heading,
	chunk_text,
	token_count,
	oversized,
	continuation
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (url, chunk_index) DO UPDATE SET
	title = EXCLUDED.title,
	content_hash = EXCLUDED.content_hash,
	fetched_at = EXCLUDED.fetched_at,
	heading = EXCLUDED.heading,
	chunk_text = EXCLUDED.chunk_text,
	token_count = EXCLUDED.token_count,
	oversized = EXCLUDED.oversized,
	continuation = EXCLUDED.continuation
`, s.table)

	for _, c := range doc.Chunks {
		if _, err := s.pool.Exec(ctx, query,
			doc.URL,
			doc.Title,
			c.Lang,
			doc.Depth,
			doc.TaskID,
			doc.ContentHash,
			doc.FetchedAt,
			c.Index,
			c.Heading,
			c.Text,
			c.TokenCount,
			c.Oversized,
			c.Continuation,
		); err != nil {
			return fmt.Errorf("insert chunk %d for %s: %w", c.Index, doc.URL, err)
		}
	}
	return nil
}
