package sink

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webcorpus/harvester/internal/crawler"
	"github.com/webcorpus/harvester/internal/hash/sha256"
)

type fakeBlobWriter struct {
	paths    []string
	payloads [][]byte
}

func (f *fakeBlobWriter) PutObject(_ context.Context, path, _ string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.paths = append(f.paths, path)
	f.payloads = append(f.payloads, data)
	return "gs://test/" + path, nil
}

func TestGCSSinkUploadsDocumentJSON(t *testing.T) {
	t.Parallel()

	blobs := &fakeBlobWriter{}
	hasher := sha256.New()
	s, err := NewGCSSink(blobs, "harvest/", hasher)
	require.NoError(t, err)

	doc := testDocument()
	require.NoError(t, s.Store(context.Background(), doc))

	require.Len(t, blobs.paths, 1)
	key, err := hasher.Hash([]byte(doc.URL))
	require.NoError(t, err)
	require.Equal(t, "harvest/"+key+".json", blobs.paths[0])

	var stored crawler.ChunkedDocument
	require.NoError(t, json.Unmarshal(blobs.payloads[0], &stored))
	require.Equal(t, doc.URL, stored.URL)
	require.Len(t, stored.Chunks, 2)
}
