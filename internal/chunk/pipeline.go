package chunk

import (
	"github.com/webcorpus/harvester/internal/crawler"
)

// Pipeline composes grouping and segmentation behind one call.
type Pipeline struct {
	counter   crawler.TokenCounter
	segmenter *Segmenter
}

// NewPipeline builds the chunking pipeline for the given encoding counter
// and target budget.
func NewPipeline(counter crawler.TokenCounter, budget int) (*Pipeline, error) {
	seg, err := NewSegmenter(counter, budget)
	if err != nil {
		return nil, err
	}
	return &Pipeline{counter: counter, segmenter: seg}, nil
}

// ChunkHTML turns cleaned markup into ordered token-bounded chunks. Markup
// the parser cannot structure is treated as one unstructured block rather
// than aborting the page.
func (p *Pipeline) ChunkHTML(sourceURL, lang, markup string) []crawler.Chunk {
	blocks, err := Group(markup, p.counter)
	if err != nil {
		text := normalizeText(markup)
		if text == "" {
			return nil
		}
		blocks = []crawler.ContentBlock{{Text: text, TokenCount: p.counter.Count(text)}}
	}
	return p.segmenter.Segment(sourceURL, lang, blocks)
}
