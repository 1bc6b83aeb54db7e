package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalFetches tracks the number of pages fetched successfully.
	TotalFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_fetches_total",
		Help: "The total number of pages fetched successfully.",
	})
	// TotalFetchErrors tracks fetches that ended in a permanent failure.
	TotalFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_fetch_errors_total",
		Help: "The total number of permanently failed fetches.",
	})
	// TotalFetchRetries tracks transient failures that were retried.
	TotalFetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_fetch_retries_total",
		Help: "The total number of retried fetch attempts.",
	})
	// TotalChunks tracks emitted chunks.
	TotalChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_chunks_total",
		Help: "The total number of chunks emitted by the segmenter.",
	})
	// TotalOversizedChunks tracks chunks emitted above the token budget.
	TotalOversizedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_oversized_chunks_total",
		Help: "The total number of chunks flagged as oversized.",
	})
	// TotalSinkErrors tracks sink deliveries that failed.
	TotalSinkErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_sink_errors_total",
		Help: "The total number of failed sink writes.",
	})
)
