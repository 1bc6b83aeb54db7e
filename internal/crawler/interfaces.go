package crawler

import (
	"context"
	"time"
)

// Frontier is the authoritative, durable record of crawl progress. Every
// mutation persists before the call returns; all methods are safe under
// concurrent invocation, though the orchestrator is the only writer.
type Frontier interface {
	// Seed adds URLs at depth 0 if they are not tracked yet.
	Seed(ctx context.Context, urls []string) error
	// NextBatch atomically reserves up to n pending URLs, marking them
	// in-progress. It may return fewer than n, including zero; a zero batch
	// does not mean the run is finished while tasks are still in flight.
	NextBatch(ctx context.Context, n int) ([]URLRecord, error)
	// Complete transitions an in-progress URL to done.
	Complete(ctx context.Context, url string) error
	// Fail transitions an in-progress URL to errored.
	Fail(ctx context.Context, url string) error
	// EnqueueDiscovered adds a URL at the given depth unless it exceeds the
	// depth bound or is already tracked in any set. Reports whether the URL
	// was added.
	EnqueueDiscovered(ctx context.Context, url string, depth int) (bool, error)
	// Counts returns the size of each tracking set, safe for concurrent
	// reporting reads.
	Counts(ctx context.Context) (Counts, error)
	Close() error
}

// Fetcher retrieves one page. Implementations decide the transport: headless
// rendering, plain HTTP, a local cache, or a database of prior crawls.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (Page, error)
}

// Sink receives finished chunked documents. Durability is the sink's concern;
// the core logs failures but does not retry them.
type Sink interface {
	Store(ctx context.Context, doc ChunkedDocument) error
}

// Publisher pushes chunk-emitted events to a message bus for the downstream
// embedding consumer.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// TokenCounter maps text spans to token counts under a fixed encoding.
type TokenCounter interface {
	Count(text string) int
	Encode(text string) []int
}

// Hasher computes digests for snapshot naming and integrity metadata.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces task correlation IDs.
type IDGenerator interface {
	NewID() (string, error)
}
