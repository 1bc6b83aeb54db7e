package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sort"
	"syscall"
	"time"

	gcpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/webcorpus/harvester/internal/api"
	"github.com/webcorpus/harvester/internal/chunk"
	"github.com/webcorpus/harvester/internal/clock/system"
	"github.com/webcorpus/harvester/internal/config"
	"github.com/webcorpus/harvester/internal/crawler"
	"github.com/webcorpus/harvester/internal/fetch"
	"github.com/webcorpus/harvester/internal/frontier"
	"github.com/webcorpus/harvester/internal/hash/sha256"
	"github.com/webcorpus/harvester/internal/id/uuid"
	"github.com/webcorpus/harvester/internal/logging"
	"github.com/webcorpus/harvester/internal/pipeline"
	pspublish "github.com/webcorpus/harvester/internal/publish/pubsub"
	"github.com/webcorpus/harvester/internal/sink"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Runs the crawl until the frontier is drained",
		Long: `Seeds the frontier, fetches pending URLs in parallel, and chunks every
page for the downstream embedding pipeline. The run resumes from the durable
frontier state, so rerunning after an interruption picks up the remaining
pending URLs without refetching finished ones.`,
		RunE: runCrawl,
	}
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	front, err := buildFrontier(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := front.Close(); cerr != nil {
			logger.Warn("close frontier", zap.Error(cerr))
		}
	}()

	counter, err := chunk.NewTiktokenCounter(cfg.Chunking.Encoding)
	if err != nil {
		return fmt.Errorf("init token counter: %w", err)
	}
	chunker, err := chunk.NewPipeline(counter, cfg.Chunking.TargetTokens)
	if err != nil {
		return fmt.Errorf("init chunker: %w", err)
	}

	fetcher, closeFetcher, err := buildFetcher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFetcher()

	docSink, closeSink, err := buildSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	publisher, closePublisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	orch, err := pipeline.New(
		front,
		fetcher,
		chunker,
		docSink,
		publisher,
		sha256.New(),
		system.New(),
		uuid.NewGenerator(),
		pipelineConfig(cfg),
		logger,
	)
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}

	stopAPI := startAPI(cfg, orch, logger)
	defer stopAPI()

	summary, err := orch.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl: %w", err)
	}

	logger.Info("crawl finished",
		zap.Int("done", summary.Done),
		zap.Int("errored", summary.Errored),
		zap.Int("chunks", summary.ChunksEmitted),
	)
	return nil
}

func pipelineConfig(cfg config.Config) pipeline.Config {
	substrings := make([]string, 0, len(cfg.Crawler.LangRules))
	for sub := range cfg.Crawler.LangRules {
		substrings = append(substrings, sub)
	}
	sort.Strings(substrings)
	rules := make([]pipeline.LangRule, 0, len(substrings))
	for _, sub := range substrings {
		rules = append(rules, pipeline.LangRule{Substring: sub, Lang: cfg.Crawler.LangRules[sub]})
	}
	return pipeline.Config{
		Seeds:          cfg.Crawler.Seeds,
		AllowedDomains: cfg.Crawler.AllowedDomains,
		Workers:        cfg.Crawler.Workers,
		BatchSize:      cfg.Crawler.BatchSize,
		DefaultLang:    cfg.Crawler.DefaultLang,
		LangRules:      rules,
		Topic:          cfg.PubSub.TopicName,
	}
}

func buildFrontier(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.Frontier, error) {
	switch cfg.Frontier.Backend {
	case "sqlite":
		store, err := frontier.NewSQLiteStore(ctx, cfg.Frontier.DBPath, cfg.Crawler.MaxDepth, logger)
		if err != nil {
			return nil, fmt.Errorf("init sqlite frontier: %w", err)
		}
		return store, nil
	default:
		store, err := frontier.NewFileStore(cfg.Frontier.Dir, cfg.Crawler.MaxDepth, logger)
		if err != nil {
			return nil, fmt.Errorf("init file frontier: %w", err)
		}
		return store, nil
	}
}

func buildFetcher(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.Fetcher, func(), error) {
	noop := func() {}
	fetchCfg := fetch.Config{
		UserAgent:            cfg.Fetch.UserAgent,
		Timeout:              cfg.FetchTimeout(),
		RenderWait:           cfg.RenderWait(),
		MaxConcurrentRenders: cfg.Fetch.MaxConcurrentRenders,
		DomainQPS:            cfg.Fetch.DomainQPS,
	}

	switch cfg.Fetch.Mode {
	case "live":
		f, err := fetch.NewChromedpFetcher(fetchCfg, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("init renderer: %w", err)
		}
		return f, func() { _ = f.Close() }, nil
	case "static+promote":
		static, err := fetch.NewCollyFetcher(fetchCfg, cfg.Crawler.Workers, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("init static fetcher: %w", err)
		}
		rendered, err := fetch.NewChromedpFetcher(fetchCfg, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("init renderer: %w", err)
		}
		detector := fetch.NewHeuristicDetector(
			cfg.Fetch.DetectorMinBytes,
			cfg.Fetch.DetectorSelectors,
			cfg.Fetch.DetectorKeywords,
		)
		return fetch.NewPromotingFetcher(static, rendered, detector, logger), func() { _ = rendered.Close() }, nil
	case "cached":
		f, err := fetch.NewCachedFetcher(cfg.Fetch.CacheDir, sha256.New())
		if err != nil {
			return nil, noop, fmt.Errorf("init cached fetcher: %w", err)
		}
		return f, noop, nil
	case "database":
		f, err := fetch.NewPostgresFetcher(ctx, fetch.PostgresConfig{
			DSN:   cfg.Fetch.PostgresDSN,
			Table: cfg.Fetch.PostgresTable,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("init database fetcher: %w", err)
		}
		return f, func() { _ = f.Close() }, nil
	default:
		f, err := fetch.NewCollyFetcher(fetchCfg, cfg.Crawler.Workers, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("init static fetcher: %w", err)
		}
		return f, noop, nil
	}
}

func buildSink(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.Sink, func(), error) {
	noop := func() {}
	switch cfg.Sink.Mode {
	case "postgres":
		s, err := sink.NewPostgresSink(ctx, sink.PostgresConfig{
			DSN:   cfg.Sink.PostgresDSN,
			Table: cfg.Sink.PostgresTable,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("init postgres sink: %w", err)
		}
		return s, s.Close, nil
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("init gcs client: %w", err)
		}
		blobs, err := sink.NewBlobStore(client, cfg.Sink.GCSBucket)
		if err != nil {
			return nil, noop, fmt.Errorf("init blob store: %w", err)
		}
		s, err := sink.NewGCSSink(blobs, cfg.Sink.GCSPrefix, sha256.New())
		if err != nil {
			return nil, noop, fmt.Errorf("init gcs sink: %w", err)
		}
		return s, func() { _ = client.Close() }, nil
	default:
		s, err := sink.NewFSSink(cfg.Sink.Dir, sha256.New(), logger)
		if err != nil {
			return nil, noop, fmt.Errorf("init fs sink: %w", err)
		}
		return s, noop, nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (crawler.Publisher, func(), error) {
	noop := func() {}
	if !cfg.PubSub.Enabled {
		return nil, noop, nil
	}
	client, err := gcpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, noop, fmt.Errorf("init pubsub client: %w", err)
	}
	return pspublish.New(client), func() { _ = client.Close() }, nil
}

func startAPI(cfg config.Config, orch *pipeline.Orchestrator, logger *zap.Logger) func() {
	if !cfg.API.Enabled {
		return func() {}
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           api.NewServer(orch.Snapshot, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api shutdown", zap.Error(err))
		}
	}
}
