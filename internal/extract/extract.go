// Package extract cleans fetched markup and pulls same-scope outbound links.
// Cleaning is a precondition of the chunking pipeline: navigation, script,
// and alert furniture must be gone before blocks are grouped.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/webcorpus/harvester/internal/crawler"
)

// Selectors removed from the content area before chunking. The class-based
// entries cover the boilerplate the crawled sites wrap around page bodies.
const strippedSelectors = "nav, aside, header, footer, script, style, noscript, .alert, .pagedetails, .nojs-hide"

var whitespaceRE = regexp.MustCompile(`\s+`)

// Document is the cleaned result of a fetched page.
type Document struct {
	Title string
	// HTML is the cleaned markup of the main content area with collapsed
	// whitespace. Empty when the page had no usable content.
	HTML string
}

// Clean extracts the main content area of a page, drops non-content
// elements and comments, and collapses whitespace runs.
func Clean(body []byte) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Document{}, fmt.Errorf("parse document: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	content := doc.Find("main").First()
	if content.Length() == 0 {
		content = doc.Find("body").First()
	}
	if content.Length() == 0 {
		return Document{Title: title}, nil
	}

	content.Find(strippedSelectors).Remove()
	for _, node := range content.Nodes {
		removeComments(node)
	}

	markup, err := goquery.OuterHtml(content)
	if err != nil {
		return Document{}, fmt.Errorf("serialize content: %w", err)
	}
	markup = strings.TrimSpace(whitespaceRE.ReplaceAllString(markup, " "))

	return Document{Title: title, HTML: markup}, nil
}

func removeComments(n *html.Node) {
	for child := n.FirstChild; child != nil; {
		next := child.NextSibling
		if child.Type == html.CommentNode {
			n.RemoveChild(child)
		} else {
			removeComments(child)
		}
		child = next
	}
}

// Links returns the normalized, deduplicated outbound links of a page that
// fall within the allowed domains. PDF, mailto, javascript, and fragment-only
// targets are skipped, matching what the downstream pipeline can chunk.
func Links(body []byte, baseURL string, allowedDomains []string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if skipHref(href) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		normalized, err := crawler.NormalizeURL(abs.String())
		if err != nil {
			return
		}
		if !inScope(abs.Hostname(), allowedDomains) {
			return
		}
		if _, ok := seen[normalized]; ok {
			return
		}
		seen[normalized] = struct{}{}
		links = append(links, normalized)
	})
	return links, nil
}

func skipHref(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "tel:") {
		return true
	}
	trimmed := lower
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.HasSuffix(trimmed, ".pdf")
}

func inScope(host string, allowedDomains []string) bool {
	if len(allowedDomains) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, domain := range allowedDomains {
		domain = strings.ToLower(domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
