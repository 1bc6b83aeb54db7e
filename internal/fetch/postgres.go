package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/webcorpus/harvester/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the pool serving previously crawled pages.
type PostgresConfig struct {
	DSN      string
	Table    string
	MaxConns int32
}

type pageRowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresFetcher serves pages stored by a previous run, keyed by
// normalized URL.
type PostgresFetcher struct {
	pool  pageRowQuerier
	table string
}

// NewPostgresFetcher creates a database-backed Fetcher using the provided config.
func NewPostgresFetcher(ctx context.Context, cfg PostgresConfig) (*PostgresFetcher, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("fetch.postgres.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "pages"
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
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresFetcher{pool: pool, table: table}, nil
}

// NewPostgresFetcherWithPool constructs a fetcher from an existing pool (primarily for testing).
func NewPostgresFetcherWithPool(pool pageRowQuerier, table string) (*PostgresFetcher, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "pages"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresFetcher{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (f *PostgresFetcher) Close() error {
	if f == nil || f.pool == nil {
		return nil
	}
	f.pool.Close()
	return nil
}

// Fetch loads the stored page body for the URL. A missing row is permanent.
func (f *PostgresFetcher) Fetch(ctx context.Context, req crawler.FetchRequest) (crawler.Page, error) {
	if f == nil || f.pool == nil {
		return crawler.Page{}, crawler.NewPermanentFetchError(req.URL, errors.New("page store is not configured"))
	}
	query := fmt.Sprintf(`SELECT html FROM %s WHERE url = $1`, f.table)

	start := time.Now()
	var body []byte
	err := f.pool.QueryRow(ctx, query, req.URL).Scan(&body)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return crawler.Page{}, crawler.NewPermanentFetchError(req.URL, fmt.Errorf("no stored page: %w", err))
	case err != nil:
		return crawler.Page{}, crawler.NewRetryableFetchError(req.URL, fmt.Errorf("query stored page: %w", err))
	}
	return crawler.Page{
		URL:        req.URL,
		FinalURL:   req.URL,
		StatusCode: http.StatusOK,
		Body:       body,
		Duration:   time.Since(start),
	}, nil
}
