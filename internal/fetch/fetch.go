// Package fetch provides the Fetcher variants the orchestrator can run
// against: live JS rendering (chromedp), static HTTP (colly), a filesystem
// cache of earlier snapshots, and a database of previously crawled pages.
// The orchestrator depends only on the crawler.Fetcher interface.
package fetch

import "time"

// Config holds the knobs shared by the fetch variants.
type Config struct {
	// UserAgent identifies the crawler to origin servers.
	UserAgent string
	// Timeout bounds one fetch attempt end to end.
	Timeout time.Duration
	// RenderWait is the extra settle time after page readiness, giving
	// late JavaScript a chance to finish before the DOM snapshot.
	RenderWait time.Duration
	// MaxConcurrentRenders bounds simultaneous browser tabs.
	MaxConcurrentRenders int
	// DomainQPS rate-limits rendering per host; zero disables the limit.
	DomainQPS float64
}
