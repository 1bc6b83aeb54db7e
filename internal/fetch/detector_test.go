package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/webcorpus/harvester/internal/crawler"
)

func TestHeuristicDetectorFlagsSmallBodies(t *testing.T) {
	t.Parallel()

	d := NewHeuristicDetector(100, nil, nil)
	require.True(t, d.NeedsJS(context.Background(), crawler.Page{Body: []byte("<html></html>")}))
}

func TestHeuristicDetectorFlagsLoaderKeywords(t *testing.T) {
	t.Parallel()

	d := NewHeuristicDetector(0, nil, []string{"enable javascript"})
	body := []byte("<html><body><noscript>Please Enable JavaScript to view this page.</noscript></body></html>")
	require.True(t, d.NeedsJS(context.Background(), crawler.Page{Body: body}))
}

func TestHeuristicDetectorFlagsMissingSelectors(t *testing.T) {
	t.Parallel()

	d := NewHeuristicDetector(0, []string{"main"}, nil)
	withMain := []byte("<html><body><main>content</main></body></html>")
	withoutMain := []byte("<html><body><div id=\"root\"></div></body></html>")

	require.False(t, d.NeedsJS(context.Background(), crawler.Page{Body: withMain}))
	require.True(t, d.NeedsJS(context.Background(), crawler.Page{Body: withoutMain}))
}

type stubFetcher struct {
	page  crawler.Page
	err   error
	calls int
}

func (s *stubFetcher) Fetch(_ context.Context, _ crawler.FetchRequest) (crawler.Page, error) {
	s.calls++
	return s.page, s.err
}

type stubDetector struct{ needs bool }

func (s stubDetector) NeedsJS(context.Context, crawler.Page) bool { return s.needs }

func TestPromotingFetcherKeepsStaticResult(t *testing.T) {
	t.Parallel()

	static := &stubFetcher{page: crawler.Page{URL: "https://example.com", StatusCode: 200, Body: []byte("static")}}
	rendered := &stubFetcher{page: crawler.Page{URL: "https://example.com", StatusCode: 200, Body: []byte("rendered"), UsedJS: true}}
	f := NewPromotingFetcher(static, rendered, stubDetector{needs: false}, zaptest.NewLogger(t))

	page, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)
	require.Equal(t, []byte("static"), page.Body)
	require.Zero(t, rendered.calls)
}

func TestPromotingFetcherPromotesOnDetectorSignal(t *testing.T) {
	t.Parallel()

	static := &stubFetcher{page: crawler.Page{URL: "https://example.com", StatusCode: 200, Body: []byte("<div id=\"root\"></div>")}}
	rendered := &stubFetcher{page: crawler.Page{URL: "https://example.com", StatusCode: 200, Body: []byte("rendered"), UsedJS: true}}
	f := NewPromotingFetcher(static, rendered, stubDetector{needs: true}, zaptest.NewLogger(t))

	page, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)
	require.True(t, page.UsedJS)
	require.Equal(t, 1, static.calls)
	require.Equal(t, 1, rendered.calls)
}

func TestPromotingFetcherSkipsRenderOnPermanentError(t *testing.T) {
	t.Parallel()

	static := &stubFetcher{err: crawler.NewPermanentFetchError("https://example.com", errors.New("gone"))}
	rendered := &stubFetcher{}
	f := NewPromotingFetcher(static, rendered, stubDetector{needs: true}, zaptest.NewLogger(t))

	_, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: "https://example.com"})
	require.Error(t, err)
	require.False(t, crawler.IsRetryable(err))
	require.Zero(t, rendered.calls)
}

func TestPromotingFetcherPromotesOnRetryableError(t *testing.T) {
	t.Parallel()

	static := &stubFetcher{err: crawler.NewRetryableFetchError("https://example.com", errors.New("timeout"))}
	rendered := &stubFetcher{page: crawler.Page{URL: "https://example.com", StatusCode: 200, Body: []byte("rendered"), UsedJS: true}}
	f := NewPromotingFetcher(static, rendered, stubDetector{needs: false}, zaptest.NewLogger(t))

	page, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)
	require.True(t, page.UsedJS)
}
