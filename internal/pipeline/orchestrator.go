package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/webcorpus/harvester/internal/chunk"
	"github.com/webcorpus/harvester/internal/crawler"
	"github.com/webcorpus/harvester/internal/extract"
)

// LangRule stamps a language on URLs containing a substring. Rules are
// checked in order; the first match wins.
type LangRule struct {
	Substring string
	Lang      string
}

// Config holds the settings for one crawl run.
type Config struct {
	Seeds          []string
	AllowedDomains []string
	Workers        int
	BatchSize      int
	DefaultLang    string
	LangRules      []LangRule
	Topic          string
}

// Summary reports what a run accomplished. Returned by Run and served live
// through the status API.
type Summary struct {
	Done            int `json:"done"`
	Errored         int `json:"errored"`
	Retries         int `json:"retries"`
	ChunksEmitted   int `json:"chunks_emitted"`
	OversizedChunks int `json:"oversized_chunks"`
	SinkErrors      int `json:"sink_errors"`
	Published       int `json:"published"`
}

// Status is the live view the reporting API serves.
type Status struct {
	Counts  crawler.Counts `json:"counts"`
	Summary Summary        `json:"summary"`
}

// Orchestrator drives the crawl. It is the only writer to the frontier;
// workers fetch and chunk, results funnel back to the run loop which owns
// every state transition.
type Orchestrator struct {
	frontier  crawler.Frontier
	fetcher   crawler.Fetcher
	chunker   *chunk.Pipeline
	sink      crawler.Sink
	publisher crawler.Publisher
	hasher    crawler.Hasher
	clock     crawler.Clock
	ids       crawler.IDGenerator
	retry     *ExponentialRetryPolicy
	logger    *zap.Logger
	cfg       Config

	mu      sync.Mutex
	summary Summary
}

// New wires an Orchestrator. The publisher may be nil when no downstream
// consumer is configured.
func New(
	frontier crawler.Frontier,
	fetcher crawler.Fetcher,
	chunker *chunk.Pipeline,
	sink crawler.Sink,
	publisher crawler.Publisher,
	hasher crawler.Hasher,
	clock crawler.Clock,
	ids crawler.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if frontier == nil || fetcher == nil || chunker == nil || sink == nil {
		return nil, fmt.Errorf("frontier, fetcher, chunker, and sink are required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = cfg.Workers
	}
	return &Orchestrator{
		frontier:  frontier,
		fetcher:   fetcher,
		chunker:   chunker,
		sink:      sink,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		ids:       ids,
		retry:     NewExponentialRetryPolicy(),
		logger:    logger,
		cfg:       cfg,
	}, nil
}

// taskResult carries one finished task back to the run loop.
type taskResult struct {
	record      crawler.URLRecord
	links       []string
	chunks      int
	oversized   int
	retries     int
	sinkErrors  int
	published   int
	err         error
	interrupted bool
}

// Run drains the frontier until it is quiescent: no pending URLs and no
// tasks in flight. On cancellation, in-flight URLs are left in progress so
// the next run requeues them. A frontier persistence failure is fatal: the
// run drains in-flight tasks and returns the error rather than continue
// with state that would not survive a restart.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	if err := o.seed(ctx); err != nil {
		return o.Summary(), err
	}

	results := make(chan taskResult, o.cfg.Workers)
	inFlight := 0

	for {
		if ctx.Err() == nil && inFlight < o.cfg.Workers {
			want := o.cfg.BatchSize
			if want > o.cfg.Workers-inFlight {
				want = o.cfg.Workers - inFlight
			}
			batch, err := o.frontier.NextBatch(ctx, want)
			if err != nil {
				if ctx.Err() == nil {
					return o.Summary(), fmt.Errorf("reserve batch: %w", err)
				}
			}
			if len(batch) == 0 && inFlight == 0 {
				break
			}
			for _, rec := range batch {
				inFlight++
				go func(rec crawler.URLRecord) {
					results <- o.process(ctx, rec)
				}(rec)
			}
		}

		if inFlight == 0 {
			break
		}
		res := <-results
		inFlight--
		if err := o.handle(ctx, res); err != nil {
			for inFlight > 0 {
				<-results
				inFlight--
			}
			o.logExit(ctx)
			return o.Summary(), err
		}
	}

	o.logExit(ctx)
	return o.Summary(), ctx.Err()
}

func (o *Orchestrator) seed(ctx context.Context) error {
	normalized := make([]string, 0, len(o.cfg.Seeds))
	for _, raw := range o.cfg.Seeds {
		u, err := crawler.NormalizeURL(raw)
		if err != nil {
			return fmt.Errorf("normalize seed %q: %w", raw, err)
		}
		normalized = append(normalized, u)
	}
	if err := o.frontier.Seed(ctx, normalized); err != nil {
		return fmt.Errorf("seed frontier: %w", err)
	}
	return nil
}

// process runs one URL end to end off the run loop: fetch with retry,
// clean, extract links, chunk, deliver. Sink and publish failures never
// fail the URL.
func (o *Orchestrator) process(ctx context.Context, rec crawler.URLRecord) taskResult {
	res := taskResult{record: rec}

	taskID := ""
	if o.ids != nil {
		if id, err := o.ids.NewID(); err == nil {
			taskID = id
		}
	}
	log := o.logger.With(
		zap.String("url", rec.URL),
		zap.Int("depth", rec.Depth),
		zap.String("task_id", taskID),
	)

	page, retries, err := o.fetchWithRetry(ctx, crawler.FetchRequest{URL: rec.URL, Depth: rec.Depth, TaskID: taskID})
	res.retries = retries
	if err != nil {
		if ctx.Err() != nil {
			res.interrupted = true
			return res
		}
		res.err = err
		log.Warn("fetch failed", zap.Error(err))
		return res
	}
	crawler.TotalFetches.Inc()

	doc, err := extract.Clean(page.Body)
	if err != nil {
		res.err = fmt.Errorf("clean page: %w", err)
		log.Warn("clean failed", zap.Error(err))
		return res
	}

	base := page.FinalURL
	if base == "" {
		base = rec.URL
	}
	links, err := extract.Links(page.Body, base, o.cfg.AllowedDomains)
	if err != nil {
		log.Warn("link extraction failed", zap.Error(err))
	}
	res.links = links

	chunks := o.chunker.ChunkHTML(rec.URL, o.langFor(rec.URL), doc.HTML)
	if len(chunks) == 0 {
		log.Debug("page produced no chunks")
		return res
	}
	res.chunks = len(chunks)
	crawler.TotalChunks.Add(float64(len(chunks)))
	for _, c := range chunks {
		if c.Oversized {
			res.oversized++
			crawler.TotalOversizedChunks.Inc()
		}
	}

	chunked := crawler.ChunkedDocument{
		URL:    rec.URL,
		Title:  doc.Title,
		Lang:   o.langFor(rec.URL),
		Depth:  rec.Depth,
		TaskID: taskID,
		UsedJS: page.UsedJS,
		Chunks: chunks,
		HTML:   doc.HTML,
	}
	if o.hasher != nil {
		if hash, err := o.hasher.Hash([]byte(doc.HTML)); err == nil {
			chunked.ContentHash = hash
		}
	}
	if o.clock != nil {
		chunked.FetchedAt = o.clock.Now().UTC()
	}

	if err := o.sink.Store(ctx, chunked); err != nil {
		res.sinkErrors++
		crawler.TotalSinkErrors.Inc()
		log.Error("sink store failed", zap.Error(err))
	} else if o.publisher != nil {
		event := map[string]any{
			"url":       rec.URL,
			"chunks":    len(chunks),
			"task_id":   taskID,
			"timestamp": chunked.FetchedAt,
		}
		if _, err := o.publisher.Publish(ctx, o.cfg.Topic, event); err != nil {
			log.Error("publish failed", zap.Error(err))
		} else {
			res.published++
		}
	}

	log.Info("page processed",
		zap.Int("chunks", len(chunks)),
		zap.Int("links", len(links)),
		zap.Duration("fetch_duration", page.Duration),
	)
	return res
}

// handle applies one task result to the frontier. Transitions run on a
// detached context so completed work is recorded even during shutdown. A
// transition that fails to persist returns the error; the summary only
// counts URLs whose transition was durably recorded.
func (o *Orchestrator) handle(ctx context.Context, res taskResult) error {
	o.mu.Lock()
	o.summary.Retries += res.retries
	o.summary.ChunksEmitted += res.chunks
	o.summary.OversizedChunks += res.oversized
	o.summary.SinkErrors += res.sinkErrors
	o.summary.Published += res.published
	o.mu.Unlock()

	if res.interrupted {
		o.logger.Debug("task interrupted, left in progress", zap.String("url", res.record.URL))
		return nil
	}

	fctx := context.WithoutCancel(ctx)
	if res.err != nil {
		crawler.TotalFetchErrors.Inc()
		if err := o.frontier.Fail(fctx, res.record.URL); err != nil {
			return fmt.Errorf("record failure of %s: %w", res.record.URL, err)
		}
		o.mu.Lock()
		o.summary.Errored++
		o.mu.Unlock()
		return nil
	}

	if err := o.frontier.Complete(fctx, res.record.URL); err != nil {
		return fmt.Errorf("record completion of %s: %w", res.record.URL, err)
	}
	o.mu.Lock()
	o.summary.Done++
	o.mu.Unlock()

	for _, link := range res.links {
		added, err := o.frontier.EnqueueDiscovered(fctx, link, res.record.Depth+1)
		if err != nil {
			return fmt.Errorf("enqueue discovered %s: %w", link, err)
		}
		if added {
			o.logger.Debug("discovered", zap.String("url", link), zap.Int("depth", res.record.Depth+1))
		}
	}
	return nil
}

func (o *Orchestrator) fetchWithRetry(ctx context.Context, req crawler.FetchRequest) (crawler.Page, int, error) {
	attempt := 0
	retries := 0
	for {
		page, err := o.fetcher.Fetch(ctx, req)
		if err == nil {
			return page, retries, nil
		}
		if ctx.Err() != nil || !o.retry.ShouldRetry(err, attempt) {
			return crawler.Page{}, retries, err
		}
		retries++
		crawler.TotalFetchRetries.Inc()
		select {
		case <-time.After(o.retry.Backoff(attempt)):
		case <-ctx.Done():
			return crawler.Page{}, retries, ctx.Err()
		}
		attempt++
	}
}

func (o *Orchestrator) langFor(rawURL string) string {
	for _, rule := range o.cfg.LangRules {
		if rule.Substring != "" && strings.Contains(rawURL, rule.Substring) {
			return rule.Lang
		}
	}
	return o.cfg.DefaultLang
}

// Summary returns a copy of the running totals.
func (o *Orchestrator) Summary() Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.summary
}

// Snapshot combines frontier counts with the running summary for the
// reporting API.
func (o *Orchestrator) Snapshot(ctx context.Context) (Status, error) {
	counts, err := o.frontier.Counts(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("frontier counts: %w", err)
	}
	return Status{Counts: counts, Summary: o.Summary()}, nil
}

func (o *Orchestrator) logExit(ctx context.Context) {
	counts, err := o.frontier.Counts(context.WithoutCancel(ctx))
	if err != nil {
		o.logger.Warn("final counts unavailable", zap.Error(err))
		return
	}
	s := o.Summary()
	o.logger.Info("run finished",
		zap.Int("done", s.Done),
		zap.Int("errored", s.Errored),
		zap.Int("retries", s.Retries),
		zap.Int("chunks", s.ChunksEmitted),
		zap.Int("oversized_chunks", s.OversizedChunks),
		zap.Int("pending_remaining", counts.Pending+counts.InProgress),
	)
}
