// Package frontier provides durable implementations of the crawl frontier:
// the record of which URLs are pending, in progress, done, or errored.
//
// Two stores are available. The file store keeps append-only journals in a
// state directory and is the default for single-host runs. The sqlite store
// keeps the same contract in a relational table for runs that want SQL
// inspection of crawl state. Both persist every transition before returning,
// so an interrupted run resumes without dropping or double-counting a URL.
package frontier
