package fetch

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webcorpus/harvester/internal/crawler"
	"github.com/webcorpus/harvester/internal/hash/sha256"
	"github.com/webcorpus/harvester/internal/sink"
)

func TestCachedFetcherServesSnapshot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	hasher := sha256.New()
	rawURL := "https://example.com/guide"

	key, err := hasher.Hash([]byte(rawURL))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(sink.HTMLPath(root, key)), 0o750))
	require.NoError(t, os.WriteFile(sink.HTMLPath(root, key), []byte("<html>cached</html>"), 0o600))

	f, err := NewCachedFetcher(root, hasher)
	require.NoError(t, err)

	page, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: rawURL})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Equal(t, []byte("<html>cached</html>"), page.Body)
	require.False(t, page.UsedJS)
}

func TestCachedFetcherMissingSnapshotIsPermanent(t *testing.T) {
	t.Parallel()

	f, err := NewCachedFetcher(t.TempDir(), sha256.New())
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), crawler.FetchRequest{URL: "https://example.com/absent"})
	require.Error(t, err)
	require.False(t, crawler.IsRetryable(err))
}
