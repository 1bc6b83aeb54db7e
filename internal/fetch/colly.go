package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/webcorpus/harvester/internal/crawler"
)

// CollyFetcher retrieves pages over plain HTTP without a JS runtime. It is
// the cheap path for static markup and the probe for render promotion.
type CollyFetcher struct {
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// NewCollyFetcher constructs a configured Colly-based Fetcher.
func NewCollyFetcher(cfg Config, concurrency int, logger *zap.Logger) (*CollyFetcher, error) {
	opts := []colly.CollectorOption{
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	}
	base := colly.NewCollector(opts...)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		MaxConnsPerHost:       concurrency * 2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)

	if cfg.DomainQPS > 0 {
		delay := time.Duration(float64(time.Second) / cfg.DomainQPS)
		if err := base.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Parallelism: concurrency,
			Delay:       delay,
		}); err != nil {
			return nil, fmt.Errorf("configure limit rule: %w", err)
		}
	}

	return &CollyFetcher{
		baseCollector: base,
		logger:        logger,
	}, nil
}

// Fetch retrieves a page via a clone of the configured collector. Revisits
// are expected here since the orchestrator owns deduplication.
func (f *CollyFetcher) Fetch(ctx context.Context, req crawler.FetchRequest) (crawler.Page, error) {
	collector := f.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	start := time.Now()
	collector.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			for k, v := range *r.Headers {
				cp := make([]string, len(v))
				copy(cp, v)
				headers[k] = cp
			}
		}
		page := crawler.Page{
			URL:        req.URL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte{}, r.Body...),
			Duration:   time.Since(start),
		}
		send(fetchResult{page: page})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		send(fetchResult{err: err, status: status})
	})

	if err := collector.Visit(req.URL); err != nil {
		return crawler.Page{}, crawler.ClassifyFetchError(req.URL, err)
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return crawler.Page{}, crawler.ClassifyFetchError(req.URL, err)
		}
		if res.err != nil {
			if res.status >= 400 {
				return crawler.Page{}, crawler.CheckStatus(crawler.Page{URL: req.URL, StatusCode: res.status})
			}
			return crawler.Page{}, crawler.ClassifyFetchError(req.URL, res.err)
		}
		if err := crawler.CheckStatus(res.page); err != nil {
			return crawler.Page{}, err
		}
		return res.page, nil
	default:
		return crawler.Page{}, crawler.NewRetryableFetchError(req.URL, errors.New("fetch produced no result"))
	}
}

type fetchResult struct {
	page   crawler.Page
	err    error
	status int
}
