package chunk

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/webcorpus/harvester/internal/crawler"
)

// Group parses cleaned markup into ordered content blocks, each anchored to
// the stack of headings open at its position. A new block starts at every
// heading; the heading text belongs to the block it opens, so concatenating
// block texts in order reproduces the document text. Content before the
// first heading gets an empty heading path.
func Group(markup string, counter crawler.TokenCounter) ([]crawler.ContentBlock, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	g := &grouper{counter: counter}
	g.walk(root)
	g.flush()
	return g.blocks, nil
}

type headingEntry struct {
	level int
	text  string
}

type grouper struct {
	counter crawler.TokenCounter
	stack   []headingEntry
	parts   []string
	blocks  []crawler.ContentBlock
}

func (g *grouper) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		if level := headingLevel(n.Data); level > 0 {
			text := normalizeText(collectText(n))
			g.flush()
			for len(g.stack) > 0 && g.stack[len(g.stack)-1].level >= level {
				g.stack = g.stack[:len(g.stack)-1]
			}
			g.stack = append(g.stack, headingEntry{level: level, text: text})
			if text != "" {
				g.parts = append(g.parts, text)
			}
			return
		}
	}
	if n.Type == html.TextNode {
		if text := normalizeText(n.Data); text != "" {
			g.parts = append(g.parts, text)
		}
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		g.walk(child)
	}
}

func (g *grouper) flush() {
	text := strings.TrimSpace(strings.Join(g.parts, " "))
	g.parts = g.parts[:0]
	if text == "" {
		return
	}
	path := make([]string, len(g.stack))
	for i, h := range g.stack {
		path[i] = h.text
	}
	g.blocks = append(g.blocks, crawler.ContentBlock{
		HeadingPath: path,
		Text:        text,
		TokenCount:  g.counter.Count(text),
	})
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func collectText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		b.WriteString(collectText(child))
	}
	return b.String()
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
