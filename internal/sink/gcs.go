package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/webcorpus/harvester/internal/crawler"
)

// blobWriter is the slice of the GCS surface the sink needs, injectable
// for tests.
type blobWriter interface {
	PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error)
}

// GCSSink writes one JSON object per document into a configured bucket.
type GCSSink struct {
	blobs  blobWriter
	prefix string
	hasher crawler.Hasher
}

// BlobStore writes artifacts to a GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// NewBlobStore creates a GCS-backed blob store.
func NewBlobStore(client *storage.Client, bucket string) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{client: client, bucket: bucket}, nil
}

// PutObject uploads data to the configured bucket and returns a gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	writer := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, r); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}

// NewGCSSink creates a sink that uploads each document as one JSON object.
func NewGCSSink(blobs blobWriter, prefix string, hasher crawler.Hasher) (*GCSSink, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	return &GCSSink{
		blobs:  blobs,
		prefix: strings.Trim(prefix, "/"),
		hasher: hasher,
	}, nil
}

// Store uploads the document JSON keyed by the hash of the normalized URL.
func (s *GCSSink) Store(ctx context.Context, doc crawler.ChunkedDocument) error {
	key, err := s.hasher.Hash([]byte(doc.URL))
	if err != nil {
		return fmt.Errorf("hash url %s: %w", doc.URL, err)
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	path := key + ".json"
	if s.prefix != "" {
		path = s.prefix + "/" + path
	}
	if _, err := s.blobs.PutObject(ctx, path, "application/json", bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("upload document for %s: %w", doc.URL, err)
	}
	return nil
}
