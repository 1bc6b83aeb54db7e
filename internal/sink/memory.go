package sink

import (
	"context"
	"sync"

	"github.com/webcorpus/harvester/internal/crawler"
)

// MemorySink collects documents in memory. Test use only.
type MemorySink struct {
	mu   sync.Mutex
	docs []crawler.ChunkedDocument
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Store appends doc to the in-memory list.
func (s *MemorySink) Store(_ context.Context, doc crawler.ChunkedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
	return nil
}

// Documents returns a copy of everything stored so far.
func (s *MemorySink) Documents() []crawler.ChunkedDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]crawler.ChunkedDocument, len(s.docs))
	copy(out, s.docs)
	return out
}
