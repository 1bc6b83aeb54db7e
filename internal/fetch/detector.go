package fetch

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/webcorpus/harvester/internal/crawler"
)

// Detector decides whether a statically fetched page needs a JS render.
type Detector interface {
	NeedsJS(ctx context.Context, page crawler.Page) bool
}

// HeuristicDetector inspects simple HTML signals: undersized bodies,
// loader keywords, and missing content selectors.
type HeuristicDetector struct {
	minHTMLBytes int
	selectors    []string
	keywords     [][]byte
}

// NewHeuristicDetector constructs a Detector with the configured thresholds.
func NewHeuristicDetector(minBytes int, selectors, keywords []string) *HeuristicDetector {
	lowerKeywords := make([][]byte, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lowerKeywords = append(lowerKeywords, bytes.ToLower([]byte(kw)))
	}
	return &HeuristicDetector{
		minHTMLBytes: minBytes,
		selectors:    selectors,
		keywords:     lowerKeywords,
	}
}

// NeedsJS inspects the page for signals that indicate JS rendering is required.
func (d *HeuristicDetector) NeedsJS(_ context.Context, page crawler.Page) bool {
	if d == nil {
		return false
	}
	switch {
	case d.bodyBelowThreshold(page.Body):
		return true
	case d.containsKeywords(page.Body):
		return true
	default:
		return d.missingSelectors(page.Body)
	}
}

func (d *HeuristicDetector) bodyBelowThreshold(body []byte) bool {
	return d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes
}

func (d *HeuristicDetector) containsKeywords(body []byte) bool {
	if len(body) == 0 || len(d.keywords) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if len(kw) == 0 {
			continue
		}
		if bytes.Contains(lowerBody, kw) {
			return true
		}
	}
	return false
}

func (d *HeuristicDetector) missingSelectors(body []byte) bool {
	if len(d.selectors) == 0 || len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	for _, sel := range d.selectors {
		if sel == "" {
			continue
		}
		if doc.Find(sel).Length() == 0 {
			return true
		}
	}
	return false
}

// PromotingFetcher probes with the static fetcher and promotes the request
// to a JS render when the detector flags the result. A probe failure goes
// straight to the renderer since a broken static response tells us nothing.
type PromotingFetcher struct {
	static   crawler.Fetcher
	rendered crawler.Fetcher
	detector Detector
	logger   *zap.Logger
}

// NewPromotingFetcher composes the static probe with the render fallback.
func NewPromotingFetcher(static, rendered crawler.Fetcher, detector Detector, logger *zap.Logger) *PromotingFetcher {
	return &PromotingFetcher{
		static:   static,
		rendered: rendered,
		detector: detector,
		logger:   logger,
	}
}

// Fetch runs the static probe first and renders only when needed.
func (f *PromotingFetcher) Fetch(ctx context.Context, req crawler.FetchRequest) (crawler.Page, error) {
	page, err := f.static.Fetch(ctx, req)
	if err != nil {
		if !crawler.IsRetryable(err) {
			return crawler.Page{}, err
		}
		f.logger.Debug("static probe failed, promoting to render",
			zap.String("url", req.URL),
			zap.Error(err))
		return f.rendered.Fetch(ctx, req)
	}
	if f.detector != nil && f.detector.NeedsJS(ctx, page) {
		f.logger.Debug("promoting to render",
			zap.String("url", req.URL),
			zap.Int("static_bytes", len(page.Body)))
		return f.rendered.Fetch(ctx, req)
	}
	return page, nil
}
