package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPipeline_ChunkHTML(t *testing.T) {
	t.Parallel()

	p, err := NewPipeline(wordCounter{}, 512)
	require.NoError(t, err)

	chunks := p.ChunkHTML("https://example.com/doc", "en",
		`<main><h1>Title</h1><p>alpha beta gamma</p><h2>Sub</h2><p>delta</p></main>`)
	require.Len(t, chunks, 1)
	require.Equal(t, "https://example.com/doc", chunks[0].SourceURL)
	require.Equal(t, "en", chunks[0].Lang)
	require.Equal(t, "Title; Sub", chunks[0].Heading)
	require.Equal(t, "Title alpha beta gamma\nSub delta", chunks[0].Text)
}

func TestPipeline_EmptyMarkup(t *testing.T) {
	t.Parallel()

	p, err := NewPipeline(wordCounter{}, 512)
	require.NoError(t, err)
	require.Empty(t, p.ChunkHTML("https://example.com", "en", ""))
	require.Empty(t, p.ChunkHTML("https://example.com", "en", "<main></main>"))
}
