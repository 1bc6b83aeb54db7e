// Package sink persists finished chunked documents. Variants cover local
// disk, Postgres, Google Cloud Storage, and an in-memory sink for tests.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/webcorpus/harvester/internal/crawler"
)

// Layout helpers shared with the cache-backed fetcher, which reads the
// snapshots this sink writes.

// HTMLPath is the raw markup snapshot location for a content key.
func HTMLPath(root, key string) string {
	return filepath.Join(root, "pages", key+".html")
}

// ChunksPath is the JSONL chunk file location for a content key.
func ChunksPath(root, key string) string {
	return filepath.Join(root, "chunks", key+".jsonl")
}

// MetaPath is the document metadata location for a content key.
func MetaPath(root, key string) string {
	return filepath.Join(root, "pages", key+".json")
}

// FSSink writes each document as an HTML snapshot, a JSONL file of chunks,
// and a metadata record, all keyed by the hash of the normalized URL.
type FSSink struct {
	root   string
	hasher crawler.Hasher
	logger *zap.Logger
}

// NewFSSink returns a sink rooted at dir.
func NewFSSink(root string, hasher crawler.Hasher, logger *zap.Logger) (*FSSink, error) {
	for _, dir := range []string{filepath.Join(root, "pages"), filepath.Join(root, "chunks")} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create sink dir %s: %w", dir, err)
		}
	}
	return &FSSink{
		root:   root,
		hasher: hasher,
		logger: logger,
	}, nil
}

// Store writes the snapshot, the chunk lines, and the metadata for doc.
func (s *FSSink) Store(ctx context.Context, doc crawler.ChunkedDocument) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	key, err := s.hasher.Hash([]byte(doc.URL))
	if err != nil {
		return fmt.Errorf("hash url %s: %w", doc.URL, err)
	}

	if doc.HTML != "" {
		if err := os.WriteFile(HTMLPath(s.root, key), []byte(doc.HTML), 0o600); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	if err := s.writeChunks(ChunksPath(s.root, key), doc.Chunks); err != nil {
		return err
	}

	meta, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(MetaPath(s.root, key), meta, 0o600); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func (s *FSSink) writeChunks(path string, chunks []crawler.Chunk) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open chunk file %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	for _, c := range chunks {
		if err := enc.Encode(c); err != nil {
			closeErr := f.Close()
			if closeErr != nil {
				return fmt.Errorf("encode chunk: %w (close: %v)", err, closeErr)
			}
			return fmt.Errorf("encode chunk: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close chunk file %s: %w", path, err)
	}
	return nil
}
