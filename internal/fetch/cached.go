package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/webcorpus/harvester/internal/crawler"
	"github.com/webcorpus/harvester/internal/sink"
)

// CachedFetcher serves pages from the snapshot directory an earlier run's
// filesystem sink populated. Useful for re-chunking a corpus without
// touching the network.
type CachedFetcher struct {
	root   string
	hasher crawler.Hasher
}

// NewCachedFetcher reads snapshots rooted at dir.
func NewCachedFetcher(root string, hasher crawler.Hasher) (*CachedFetcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat cache root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cache root %s is not a directory", root)
	}
	return &CachedFetcher{root: root, hasher: hasher}, nil
}

// Fetch loads the snapshot for the URL. A missing snapshot is a permanent
// failure since retrying cannot make the file appear.
func (f *CachedFetcher) Fetch(ctx context.Context, req crawler.FetchRequest) (crawler.Page, error) {
	if err := ctx.Err(); err != nil {
		return crawler.Page{}, crawler.ClassifyFetchError(req.URL, err)
	}
	key, err := f.hasher.Hash([]byte(req.URL))
	if err != nil {
		return crawler.Page{}, crawler.NewPermanentFetchError(req.URL, fmt.Errorf("hash url: %w", err))
	}
	start := time.Now()
	body, err := os.ReadFile(sink.HTMLPath(f.root, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return crawler.Page{}, crawler.NewPermanentFetchError(req.URL, fmt.Errorf("no cached snapshot: %w", err))
		}
		return crawler.Page{}, crawler.NewRetryableFetchError(req.URL, fmt.Errorf("read snapshot: %w", err))
	}
	return crawler.Page{
		URL:        req.URL,
		FinalURL:   req.URL,
		StatusCode: http.StatusOK,
		Body:       body,
		Duration:   time.Since(start),
	}, nil
}
