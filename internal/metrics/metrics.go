// Package metrics defines the prometheus collectors for mangashelf.
// Collectors are registered at package load via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Catalog store metrics
var (
	StoreQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mangashelf_store_queries_total",
			Help: "Total number of catalog store queries",
		},
		[]string{"operation", "status"},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mangashelf_store_query_duration_seconds",
			Help:    "Catalog store query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	StoreTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mangashelf_store_transaction_duration_seconds",
			Help:    "Batch transaction duration in seconds, labeled by outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"}, // "commit", "rollback"
	)

	StoreRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mangashelf_store_rows_affected",
			Help:    "Rows affected per write statement",
			Buckets: []float64{1, 10, 100, 500, 1000, 5000},
		},
		[]string{"operation"},
	)

	StoreSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mangashelf_store_size_bytes",
			Help: "Size of the catalog database file in bytes",
		},
	)
)

// Scanner metrics
var (
	ScanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mangashelf_scan_runs_total",
			Help: "Total number of scan runs",
		},
		[]string{"mode"}, // "full", "incremental"
	)

	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mangashelf_scan_duration_seconds",
			Help:    "Scan duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"mode"},
	)

	ScanFilesSeen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mangashelf_scan_files_seen_total",
			Help: "Total files examined across all scans",
		},
	)

	ScanDiffTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mangashelf_scan_diff_total",
			Help: "Entries added, updated and removed by incremental scans",
		},
		[]string{"change"}, // "added", "updated", "removed"
	)

	ScanErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mangashelf_scan_errors_total",
			Help: "Per-file errors skipped during scans",
		},
	)
)

// Thumbnail pipeline metrics
var (
	ThumbsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mangashelf_thumbs_generated_total",
			Help: "Thumbnails generated, labeled by source",
		},
		[]string{"source"}, // "archive", "placeholder"
	)

	ThumbsGenerateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mangashelf_thumbs_generate_duration_seconds",
			Help:    "Per-file thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	ThumbsQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mangashelf_thumbs_queue_depth",
			Help: "Entries waiting in the thumbnail persistence queue",
		},
	)

	ThumbsFlushTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mangashelf_thumbs_flush_total",
			Help: "Persistence queue flushes, labeled by status",
		},
		[]string{"status"}, // "success", "error"
	)

	ThumbsWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mangashelf_thumbs_workers",
			Help: "Configured thumbnail worker ceiling",
		},
	)
)

// Display cache metrics
var (
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mangashelf_cache_hits_total",
			Help: "Display cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mangashelf_cache_misses_total",
			Help: "Display cache misses",
		},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mangashelf_cache_evictions_total",
			Help: "Display cache evictions (capacity and shrink)",
		},
	)

	CacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mangashelf_cache_estimated_bytes",
			Help: "Estimated memory held by the display cache",
		},
	)
)

// Relocation metrics
var (
	MoveFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mangashelf_move_files_total",
			Help: "Relocated files, labeled by outcome",
		},
		[]string{"outcome"}, // "moved", "skipped", "error", "compensated"
	)

	MoveBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mangashelf_move_batch_duration_seconds",
			Help:    "Relocation batch duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60},
		},
	)

	MoveSyncFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mangashelf_move_catalog_sync_failures_total",
			Help: "Catalog sync failures that triggered compensation",
		},
	)
)

// Filesystem retry metrics
var (
	FSRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mangashelf_fs_retry_attempts_total",
			Help: "Retry attempts for filesystem operations",
		},
		[]string{"operation"},
	)

	FSRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mangashelf_fs_retry_failures_total",
			Help: "Filesystem operations that exhausted their retries",
		},
		[]string{"operation"},
	)
)

// Memory monitor metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mangashelf_memory_usage_ratio",
			Help: "Current memory usage as a fraction of the configured limit",
		},
	)

	MemoryShrinks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mangashelf_memory_cache_shrinks_total",
			Help: "Cache shrink operations triggered by the memory monitor",
		},
	)
)
