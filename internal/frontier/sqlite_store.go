package frontier

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	// Pure-Go sqlite driver, registered as "sqlite".
	_ "modernc.org/sqlite"

	"github.com/webcorpus/harvester/internal/crawler"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS urls (
	url    TEXT PRIMARY KEY,
	depth  INTEGER NOT NULL,
	status TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_urls_status_depth ON urls (status, depth);
`

// SQLiteStore keeps the frontier in a local sqlite database. Transitions are
// single statements or transactions, so durability holds without explicit
// journal management.
type SQLiteStore struct {
	db       *sql.DB
	maxDepth int
	logger   *zap.Logger
}

// NewSQLiteStore opens the database at path, creates the schema, and resets
// in-progress rows left behind by an unclean shutdown back to pending.
func NewSQLiteStore(ctx context.Context, path string, maxDepth int, logger *zap.Logger) (*SQLiteStore, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("max depth must be >= 0, got %d", maxDepth)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// Frontier writes are serialized through the orchestrator; a single
	// connection avoids sqlite write contention.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("create frontier schema: %w", err)
	}

	requeued, err := db.ExecContext(ctx,
		`UPDATE urls SET status = ? WHERE status = ?`,
		crawler.URLStatusPending, crawler.URLStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("requeue interrupted urls: %w", err)
	}
	if n, _ := requeued.RowsAffected(); n > 0 {
		logger.Info("requeued interrupted urls", zap.Int64("count", n))
	}

	return &SQLiteStore{db: db, maxDepth: maxDepth, logger: logger}, nil
}

// Seed adds URLs at depth 0 if untracked.
func (s *SQLiteStore) Seed(ctx context.Context, urls []string) error {
	for _, u := range urls {
		if _, err := s.EnqueueDiscovered(ctx, u, 0); err != nil {
			return err
		}
	}
	return nil
}

// EnqueueDiscovered inserts url at depth unless beyond the bound or tracked.
func (s *SQLiteStore) EnqueueDiscovered(ctx context.Context, url string, depth int) (bool, error) {
	if depth > s.maxDepth {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO urls (url, depth, status) VALUES (?, ?, ?) ON CONFLICT (url) DO NOTHING`,
		url, depth, crawler.URLStatusPending)
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", url, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", url, err)
	}
	return n > 0, nil
}

// NextBatch reserves up to n pending URLs inside one transaction.
func (s *SQLiteStore) NextBatch(ctx context.Context, n int) ([]crawler.URLRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT url, depth FROM urls WHERE status = ? ORDER BY depth, url LIMIT ?`,
		crawler.URLStatusPending, n)
	if err != nil {
		return nil, fmt.Errorf("select pending: %w", err)
	}
	var batch []crawler.URLRecord
	for rows.Next() {
		var rec crawler.URLRecord
		if err := rows.Scan(&rec.URL, &rec.Depth); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan pending row: %w", err)
		}
		rec.Status = crawler.URLStatusInProgress
		batch = append(batch, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate pending rows: %w", err)
	}
	rows.Close()

	for _, rec := range batch {
		if _, err := tx.ExecContext(ctx,
			`UPDATE urls SET status = ? WHERE url = ?`,
			crawler.URLStatusInProgress, rec.URL); err != nil {
			return nil, fmt.Errorf("reserve %s: %w", rec.URL, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch tx: %w", err)
	}
	return batch, nil
}

// Complete transitions an in-progress URL to done.
func (s *SQLiteStore) Complete(ctx context.Context, url string) error {
	return s.transition(ctx, url, crawler.URLStatusDone)
}

// Fail transitions an in-progress URL to errored.
func (s *SQLiteStore) Fail(ctx context.Context, url string) error {
	return s.transition(ctx, url, crawler.URLStatusErrored)
}

func (s *SQLiteStore) transition(ctx context.Context, url string, to crawler.URLStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE urls SET status = ? WHERE url = ? AND status = ?`,
		to, url, crawler.URLStatusInProgress)
	if err != nil {
		return fmt.Errorf("transition %s to %s: %w", url, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition %s to %s: %w", url, to, err)
	}
	if n == 0 {
		return fmt.Errorf("transition %s to %s: not in progress", url, to)
	}
	return nil
}

// Counts reports the size of each tracking set.
func (s *SQLiteStore) Counts(ctx context.Context) (crawler.Counts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM urls GROUP BY status`)
	if err != nil {
		return crawler.Counts{}, fmt.Errorf("count urls: %w", err)
	}
	defer rows.Close()

	var counts crawler.Counts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return crawler.Counts{}, fmt.Errorf("scan count row: %w", err)
		}
		switch crawler.URLStatus(status) {
		case crawler.URLStatusPending:
			counts.Pending = n
		case crawler.URLStatusInProgress:
			counts.InProgress = n
		case crawler.URLStatusDone:
			counts.Done = n
		case crawler.URLStatusErrored:
			counts.Errored = n
		}
	}
	if err := rows.Err(); err != nil {
		return crawler.Counts{}, fmt.Errorf("iterate count rows: %w", err)
	}
	return counts, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close frontier db: %w", err)
	}
	return nil
}
