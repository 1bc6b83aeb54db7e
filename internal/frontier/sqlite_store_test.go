package frontier

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/webcorpus/harvester/internal/crawler"
)

func newTestSQLiteStore(t *testing.T, path string, maxDepth int) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), path, maxDepth, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestSQLiteStore_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "frontier.db"), 1)
	defer s.Close()

	require.NoError(t, s.Seed(ctx, []string{"https://a.test"}))
	added, err := s.EnqueueDiscovered(ctx, "https://b.test", 1)
	require.NoError(t, err)
	require.True(t, added)
	added, err = s.EnqueueDiscovered(ctx, "https://too-deep.test", 2)
	require.NoError(t, err)
	require.False(t, added)

	batch, err := s.NextBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	// Shallow first.
	require.Equal(t, "https://a.test", batch[0].URL)

	require.NoError(t, s.Complete(ctx, batch[0].URL))
	require.NoError(t, s.Fail(ctx, batch[1].URL))
	require.Error(t, s.Complete(ctx, batch[1].URL), "transition is monotonic")

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, crawler.Counts{Done: 1, Errored: 1}, counts)
}

func TestSQLiteStore_RequeuesInterruptedOnOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "frontier.db")

	s := newTestSQLiteStore(t, path, 0)
	require.NoError(t, s.Seed(ctx, []string{"https://a.test"}))
	batch, err := s.NextBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.NoError(t, s.Close())

	reopened := newTestSQLiteStore(t, path, 0)
	defer reopened.Close()
	counts, err := reopened.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, crawler.Counts{Pending: 1}, counts)
}

func TestSQLiteStore_AtMostOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "frontier.db"), 0)
	defer s.Close()

	require.NoError(t, s.Seed(ctx, []string{"https://a.test"}))
	batch, err := s.NextBatch(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, batch[0].URL))

	added, err := s.EnqueueDiscovered(ctx, "https://a.test", 0)
	require.NoError(t, err)
	require.False(t, added)

	batch, err = s.NextBatch(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, batch)
}
