package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webcorpus/harvester/internal/crawler"
)

func wordsBlock(heading string, n int) crawler.ContentBlock {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	block := crawler.ContentBlock{Text: strings.Join(words, " "), TokenCount: n}
	if heading != "" {
		block.HeadingPath = []string{heading}
	}
	return block
}

func newTestSegmenter(t *testing.T, budget int) *Segmenter {
	t.Helper()
	seg, err := NewSegmenter(wordCounter{}, budget)
	require.NoError(t, err)
	return seg
}

func TestSegment_GreedyPacking(t *testing.T) {
	t.Parallel()

	// Blocks of 100, 450, and 80 tokens against a 512 budget: 100+450
	// overflows, so each lands in its own chunk.
	seg := newTestSegmenter(t, 512)
	blocks := []crawler.ContentBlock{
		wordsBlock("A", 100),
		wordsBlock("B", 450),
		wordsBlock("C", 80),
	}

	chunks := seg.Segment("https://example.com", "en", blocks)
	require.Len(t, chunks, 3)
	require.Equal(t, 100, chunks[0].TokenCount)
	require.Equal(t, 450, chunks[1].TokenCount)
	require.Equal(t, 80, chunks[2].TokenCount)
	for i, c := range chunks {
		require.Equal(t, i, c.Index)
		require.False(t, c.Oversized)
		require.LessOrEqual(t, c.TokenCount, 512)
	}
}

func TestSegment_MergesSmallBlocks(t *testing.T) {
	t.Parallel()

	seg := newTestSegmenter(t, 512)
	blocks := []crawler.ContentBlock{
		wordsBlock("Intro", 100),
		wordsBlock("Usage", 100),
		wordsBlock("", 50),
	}

	chunks := seg.Segment("https://example.com", "en", blocks)
	require.Len(t, chunks, 1)
	require.Equal(t, "Intro; Usage", chunks[0].Heading)
	require.Equal(t, 250, chunks[0].TokenCount)
	require.Len(t, chunks[0].TokenIDs, 250)
}

func TestSegment_SplitsOversizedBlock(t *testing.T) {
	t.Parallel()

	// One 1000-token block against a 512 budget splits into sub-chunks
	// that concatenate back to the original text.
	seg := newTestSegmenter(t, 512)
	sentences := make([]string, 10)
	for i := range sentences {
		words := make([]string, 100)
		for j := range words {
			words[j] = fmt.Sprintf("s%dw%d", i, j)
		}
		sentences[i] = strings.Join(words, " ") + "."
	}
	text := strings.Join(sentences, " ")
	block := crawler.ContentBlock{Text: text, TokenCount: 1000, HeadingPath: []string{"Long"}}

	chunks := seg.Segment("https://example.com", "en", []crawler.ContentBlock{block})
	require.GreaterOrEqual(t, len(chunks), 2)
	for _, c := range chunks {
		require.LessOrEqual(t, c.TokenCount, 512)
		require.False(t, c.Oversized)
		require.Equal(t, "Long", c.Heading)
	}
	require.False(t, chunks[0].Continuation)
	for _, c := range chunks[1:] {
		require.True(t, c.Continuation)
	}
	require.Equal(t, text, Reconstruct(chunks))
}

func TestSegment_UnsplittableSpanIsFlagged(t *testing.T) {
	t.Parallel()

	// A single "word" cannot be split below budget with a word-based
	// counter; it must be emitted flagged, never dropped.
	counter := charCounter{}
	seg, err := NewSegmenter(counter, 4)
	require.NoError(t, err)

	block := crawler.ContentBlock{Text: "abcdefghij", TokenCount: 10}
	chunks := seg.Segment("https://example.com", "en", []crawler.ContentBlock{block})
	require.Len(t, chunks, 1)
	require.True(t, chunks[0].Oversized)
	require.Equal(t, "abcdefghij", chunks[0].Text)
}

func TestSegment_Completeness(t *testing.T) {
	t.Parallel()

	seg := newTestSegmenter(t, 64)
	blocks := []crawler.ContentBlock{
		wordsBlock("A", 40),
		wordsBlock("B", 40),
		wordsBlock("C", 200),
		wordsBlock("D", 10),
	}

	chunks := seg.Segment("https://example.com", "en", blocks)
	require.Equal(t, BlocksText(blocks), Reconstruct(chunks))
	for _, c := range chunks {
		if !c.Oversized {
			require.LessOrEqual(t, c.TokenCount, 64)
		}
	}
}

func TestSegment_EmptyInput(t *testing.T) {
	t.Parallel()

	seg := newTestSegmenter(t, 512)
	require.Empty(t, seg.Segment("https://example.com", "en", nil))
}

// charCounter counts one token per byte, for forcing unsplittable spans.
type charCounter struct{}

func (charCounter) Count(text string) int { return len(text) }

func (charCounter) Encode(text string) []int {
	ids := make([]int, len(text))
	for i := range ids {
		ids[i] = i
	}
	return ids
}
