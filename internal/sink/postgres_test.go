package sink

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/webcorpus/harvester/internal/crawler"
)

func TestPostgresSinkStoresOneRowPerChunk(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPostgresSinkWithPool(mock, "chunks")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	doc := crawler.ChunkedDocument{
		URL:         "https://example.com/guide",
		Title:       "Guide",
		Lang:        "en",
		Depth:       2,
		TaskID:      "task-7",
		ContentHash: "deadbeef",
		FetchedAt:   now,
		Chunks: []crawler.Chunk{
			{Heading: "Intro", Lang: "en", Index: 0, Text: "alpha beta", TokenCount: 2},
			{Heading: "Usage", Lang: "en", Index: 1, Text: "gamma", TokenCount: 1, Oversized: true},
		},
	}

	for _, c := range doc.Chunks {
		mock.ExpectExec("INSERT INTO chunks").
			WithArgs(
				doc.URL,
				doc.Title,
				c.Lang,
				doc.Depth,
				doc.TaskID,
				doc.ContentHash,
				doc.FetchedAt,
				c.Index,
				c.Heading,
				c.Text,
				c.TokenCount,
				c.Oversized,
				c.Continuation,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	require.NoError(t, s.Store(context.Background(), doc))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkRejectsInvalidTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgresSinkWithPool(mock, "chunks; drop table")
	require.Error(t, err)
}
