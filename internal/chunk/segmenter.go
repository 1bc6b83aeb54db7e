package chunk

import (
	"fmt"
	"strings"

	"github.com/webcorpus/harvester/internal/crawler"
)

// DefaultTargetBudget is the token ceiling for a well-formed chunk.
const DefaultTargetBudget = 512

// blockSeparator joins blocks inside a chunk and chunks across block
// boundaries; Reconstruct relies on it being stable.
const blockSeparator = "\n"

// Segmenter packs ordered content blocks into chunks within a target token
// budget. The budget is a hard ceiling: the segmenter always prefers closing
// the current chunk over exceeding it. Only a single indivisible span larger
// than the budget is emitted above it, flagged Oversized.
type Segmenter struct {
	counter crawler.TokenCounter
	budget  int
}

// NewSegmenter builds a Segmenter for the given budget.
func NewSegmenter(counter crawler.TokenCounter, budget int) (*Segmenter, error) {
	if counter == nil {
		return nil, fmt.Errorf("token counter is required")
	}
	if budget <= 0 {
		return nil, fmt.Errorf("target budget must be > 0, got %d", budget)
	}
	return &Segmenter{counter: counter, budget: budget}, nil
}

// Segment greedily accumulates consecutive blocks while the running token
// count stays within budget, splitting oversized blocks at sentence (then
// word) boundaries. Concatenating the resulting chunk texts via Reconstruct
// reproduces the blocks' text exactly; chunking never drops content.
func (s *Segmenter) Segment(sourceURL, lang string, blocks []crawler.ContentBlock) []crawler.Chunk {
	var chunks []crawler.Chunk
	var curTexts []string
	var curHeadings []string
	curTokens := 0

	flush := func() {
		if len(curTexts) == 0 {
			return
		}
		text := strings.Join(curTexts, blockSeparator)
		chunks = append(chunks, s.newChunk(sourceURL, lang, joinHeadings(curHeadings), text, false, false))
		curTexts = curTexts[:0]
		curHeadings = curHeadings[:0]
		curTokens = 0
	}

	for _, block := range blocks {
		heading := nearestHeading(block)

		if block.TokenCount > s.budget {
			flush()
			chunks = append(chunks, s.splitOversized(sourceURL, lang, heading, block.Text)...)
			continue
		}

		// One token of slack per separator keeps the final count of the
		// joined text under budget.
		sep := 0
		if len(curTexts) > 0 {
			sep = 1
		}
		if curTokens+sep+block.TokenCount > s.budget {
			flush()
			sep = 0
		}
		curTexts = append(curTexts, block.Text)
		curHeadings = appendHeading(curHeadings, heading)
		curTokens += sep + block.TokenCount
	}
	flush()

	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks
}

// splitOversized breaks a block larger than the budget at sentence
// boundaries, falling back to word boundaries for a single over-budget
// sentence. The pieces partition the block text exactly; every sub-chunk
// after the first is marked Continuation so reconstruction joins them
// without a separator.
func (s *Segmenter) splitOversized(sourceURL, lang, heading, text string) []crawler.Chunk {
	type part struct {
		text      string
		oversized bool
	}
	var parts []part
	cur := ""

	flushCur := func() {
		if cur != "" {
			parts = append(parts, part{text: cur})
			cur = ""
		}
	}

	for _, sentence := range splitSentences(text) {
		if s.counter.Count(sentence) > s.budget {
			flushCur()
			for _, word := range splitAfterSpaces(sentence) {
				candidate := cur + word
				if cur != "" && s.counter.Count(candidate) > s.budget {
					flushCur()
					candidate = word
				}
				if s.counter.Count(candidate) > s.budget {
					// A single unsplittable span over budget: emit
					// flagged rather than drop it.
					parts = append(parts, part{text: candidate, oversized: true})
					cur = ""
					continue
				}
				cur = candidate
			}
			flushCur()
			continue
		}
		candidate := cur + sentence
		if cur != "" && s.counter.Count(candidate) > s.budget {
			flushCur()
			candidate = sentence
		}
		cur = candidate
	}
	flushCur()

	chunks := make([]crawler.Chunk, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, s.newChunk(sourceURL, lang, heading, p.text, p.oversized, i > 0))
	}
	return chunks
}

func (s *Segmenter) newChunk(sourceURL, lang, heading, text string, oversized, continuation bool) crawler.Chunk {
	return crawler.Chunk{
		SourceURL:    sourceURL,
		Heading:      heading,
		Lang:         lang,
		Text:         text,
		TokenCount:   s.counter.Count(text),
		TokenIDs:     s.counter.Encode(text),
		Oversized:    oversized,
		Continuation: continuation,
	}
}

// Reconstruct reassembles the cleaned text a sequence of chunks was cut
// from: chunks join on the block separator, continuation chunks join
// directly.
func Reconstruct(chunks []crawler.Chunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 && !c.Continuation {
			b.WriteString(blockSeparator)
		}
		b.WriteString(c.Text)
	}
	return b.String()
}

// BlocksText is the cleaned document text the chunks of those blocks must
// reconstruct.
func BlocksText(blocks []crawler.ContentBlock) string {
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}
	return strings.Join(texts, blockSeparator)
}

func nearestHeading(block crawler.ContentBlock) string {
	if len(block.HeadingPath) == 0 {
		return ""
	}
	return block.HeadingPath[len(block.HeadingPath)-1]
}

func appendHeading(headings []string, heading string) []string {
	if heading == "" {
		return headings
	}
	for _, h := range headings {
		if h == heading {
			return headings
		}
	}
	return append(headings, heading)
}

func joinHeadings(headings []string) string {
	return strings.Join(headings, "; ")
}

// splitSentences partitions text after sentence terminators followed by
// whitespace. The pieces concatenate back to the input exactly.
func splitSentences(text string) []string {
	var pieces []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			j := i + 1
			for j < len(text) && (text[j] == ' ' || text[j] == '\n' || text[j] == '\t') {
				j++
			}
			if j > i+1 && j < len(text) {
				pieces = append(pieces, text[start:j])
				start = j
				i = j - 1
			}
		}
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	return pieces
}

// splitAfterSpaces partitions text after each space run, preserving exact
// concatenation.
func splitAfterSpaces(text string) []string {
	var pieces []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == ' ' {
			j := i
			for j < len(text) && text[j] == ' ' {
				j++
			}
			if j < len(text) {
				pieces = append(pieces, text[start:j])
				start = j
				i = j - 1
			}
		}
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	return pieces
}
