// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"
)

// URLStatus represents the lifecycle state of a tracked URL.
type URLStatus string

// URL status values persisted by the frontier. Transitions are monotonic:
// pending -> in_progress -> {done, errored}.
const (
	URLStatusPending    URLStatus = "pending"
	URLStatusInProgress URLStatus = "in_progress"
	URLStatusDone       URLStatus = "done"
	URLStatusErrored    URLStatus = "errored"
)

// URLRecord is the frontier's durable record for one normalized URL.
type URLRecord struct {
	URL    string    `json:"url"`
	Depth  int       `json:"depth"`
	Status URLStatus `json:"status"`
}

// Counts reports how many URLs sit in each tracking set.
type Counts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Done       int `json:"done"`
	Errored    int `json:"errored"`
}

// CrawlTask binds one URL fetch to a depth value for the duration of a single
// attempt. TaskID is a correlation token for log lines only.
type CrawlTask struct {
	URL    string
	Depth  int
	TaskID string
}

// FetchRequest captures everything a Fetcher needs to retrieve a page.
type FetchRequest struct {
	URL    string
	Depth  int
	TaskID string
}

// Page is the result returned by a Fetcher implementation.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	UsedJS     bool
}

// ContentBlock is a run of document text anchored to its nearest enclosing
// headings. Produced by the block grouper, immutable afterwards.
type ContentBlock struct {
	HeadingPath []string
	Text        string
	TokenCount  int
}

// Chunk is a token-bounded unit of page text handed to the sink and the
// downstream embedding consumer. Never mutated after emission.
type Chunk struct {
	SourceURL  string `json:"url"`
	Heading    string `json:"heading"`
	Lang       string `json:"lang"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
	TokenIDs   []int  `json:"token_ids"`
	// Oversized marks a chunk whose single indivisible span could not be
	// split below the target budget. Emitted anyway, never dropped.
	Oversized bool `json:"oversized,omitempty"`
	// Continuation is true when this chunk continues the same block as the
	// previous chunk (a split of an oversized block). Reconstruction joins
	// continuation chunks without a separator.
	Continuation bool `json:"continuation,omitempty"`
}

// ChunkedDocument is the finished unit routed to a sink: one fetched page and
// its ordered chunks.
type ChunkedDocument struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Lang        string    `json:"lang"`
	Depth       int       `json:"depth"`
	TaskID      string    `json:"task_id"`
	ContentHash string    `json:"content_hash"`
	FetchedAt   time.Time `json:"fetched_at"`
	UsedJS      bool      `json:"used_js"`
	Chunks      []Chunk   `json:"chunks"`
	// HTML is the cleaned markup snapshot; sinks may persist or ignore it.
	HTML string `json:"-"`
}

// TokenTotal sums the token counts of all chunks.
func (d ChunkedDocument) TokenTotal() int {
	total := 0
	for _, c := range d.Chunks {
		total += c.TokenCount
	}
	return total
}
