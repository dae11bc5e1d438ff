// Package scanner reconciles the filesystem with the catalog. A full scan
// rebuilds one root from scratch; an incremental scan diffs every
// configured root against the stored path set.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mangashelf/internal/catalog"
	"mangashelf/internal/logging"
	"mangashelf/internal/metrics"
	"mangashelf/internal/progress"
	"mangashelf/internal/workers"
)

const (
	// Files parsed per parallel chunk before the batch is committed.
	parseBatchSize = 200

	// Ceiling on parse workers regardless of CPU count.
	maxParseWorkers = 8
)

// archiveExts is the allow-list of scannable archive extensions.
var archiveExts = map[string]bool{
	".zip": true,
	".cbz": true,
	".rar": true,
	".cbr": true,
}

// IsArchive reports whether name has a scannable archive extension.
func IsArchive(name string) bool {
	return archiveExts[strings.ToLower(filepath.Ext(name))]
}

// RootsFunc supplies the ordered scan-root list. Roots are configuration
// owned by the caller; each is scanned non-recursively.
type RootsFunc func() []string

// DiffResult reports one incremental scan.
type DiffResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

// Scanner walks scan roots and keeps the catalog in sync.
type Scanner struct {
	store     *catalog.Store
	roots     RootsFunc
	batchSize int
}

// New creates a Scanner over store with roots supplied by rootsFn.
func New(store *catalog.Store, rootsFn RootsFunc) *Scanner {
	return &Scanner{
		store:     store,
		roots:     rootsFn,
		batchSize: parseBatchSize,
	}
}

// FullScan rebuilds one root: lists its archives non-recursively, parses
// filenames in parallel chunks and inserts each chunk in one transaction.
// The caller is responsible for having cleared the root's prior rows
// (DeleteByFolder). Returns the number of entries inserted.
//
// A per-file stat or parse failure is logged and skipped; a batch-insert
// failure aborts the scan.
func (s *Scanner) FullScan(ctx context.Context, root string, onProgress progress.Func) (int, error) {
	start := time.Now()
	metrics.ScanRunsTotal.WithLabelValues("full").Inc()
	defer func() {
		metrics.ScanDuration.WithLabelValues("full").Observe(time.Since(start).Seconds())
	}()

	names, err := listArchives(root)
	if err != nil {
		// A missing root is a configuration wrinkle, not a scan failure.
		logging.Warn("Scan root unavailable, skipping: %s (%v)", root, err)
		return 0, nil
	}

	logging.Info("Full scan of %s: %d candidate files", root, len(names))
	reporter := progress.NewReporter(onProgress)
	defer reporter.Flush()

	inserted := 0
	for i := 0; i < len(names); i += s.batchSize {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}

		end := i + s.batchSize
		if end > len(names) {
			end = len(names)
		}

		entries := s.parseChunk(root, names[i:end])
		if err := s.store.InsertBatch(ctx, entries); err != nil {
			return inserted, fmt.Errorf("scan of %s failed: %w", root, err)
		}
		inserted += len(entries)

		reporter.Send(progress.Report{
			Current: end,
			Total:   len(names),
			Name:    names[end-1],
			Status:  "scanning",
		})
	}

	metrics.ScanFilesSeen.Add(float64(len(names)))
	logging.Info("Full scan of %s complete: %d entries in %v", root, inserted, time.Since(start))
	return inserted, nil
}

// parseChunk parses and stats one chunk of filenames in parallel. The
// database write happens after the parallel portion, in the caller.
func (s *Scanner) parseChunk(root string, names []string) []*catalog.Entry {
	jobs := make(chan string)
	results := make(chan *catalog.Entry, len(names))
	var wg sync.WaitGroup

	for i := 0; i < workers.ForCPU(maxParseWorkers); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range jobs {
				entry, err := buildEntry(root, name)
				if err != nil {
					logging.Warn("Skipping %s: %v", name, err)
					metrics.ScanErrors.Inc()
					continue
				}
				results <- entry
			}
		}()
	}

	for _, name := range names {
		jobs <- name
	}
	close(jobs)
	wg.Wait()
	close(results)

	entries := make([]*catalog.Entry, 0, len(names))
	for e := range results {
		entries = append(entries, e)
	}
	return entries
}

// IncrementalScan diffs every configured root against the catalog: paths
// only on disk are inserted, paths in both with a changed modification
// time are updated, and paths only in the store are removed. Additions and
// updates are applied before removals are computed from the pre-scan
// existing set, so a second run with no filesystem change reports 0/0/0.
func (s *Scanner) IncrementalScan(ctx context.Context, onProgress progress.Func) (*DiffResult, error) {
	start := time.Now()
	metrics.ScanRunsTotal.WithLabelValues("incremental").Inc()
	defer func() {
		metrics.ScanDuration.WithLabelValues("incremental").Observe(time.Since(start).Seconds())
	}()

	existing, err := s.store.GetAllLight(ctx)
	if err != nil {
		return nil, err
	}
	existingByPath := make(map[string]*catalog.Entry, len(existing))
	for _, e := range existing {
		existingByPath[e.FilePath] = e
	}

	reporter := progress.NewReporter(onProgress)
	defer reporter.Flush()

	result := &DiffResult{}
	onDisk := make(map[string]bool)
	unavailable := make(map[string]bool)
	var toInsert, toUpdate []*catalog.Entry

	// List every root up front so progress totals span the whole run, not
	// just the root currently being walked.
	type rootListing struct {
		root  string
		names []string
	}
	var listings []rootListing
	total := 0
	for _, root := range s.roots() {
		names, listErr := listArchives(root)
		if listErr != nil {
			// An unlistable root (unmounted share, permissions) must not
			// purge its entries as stale.
			logging.Warn("Scan root unavailable, skipping: %s (%v)", root, listErr)
			unavailable[filepath.Clean(root)] = true
			continue
		}
		listings = append(listings, rootListing{root: root, names: names})
		total += len(names)
	}

	seen := 0
	for _, listing := range listings {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		for _, name := range listing.names {
			path := filepath.Join(listing.root, name)
			onDisk[path] = true

			prev, known := existingByPath[path]
			if !known {
				entry, buildErr := buildEntry(listing.root, name)
				if buildErr != nil {
					logging.Warn("Skipping %s: %v", path, buildErr)
					metrics.ScanErrors.Inc()
					continue
				}
				toInsert = append(toInsert, entry)
				result.Added++
			} else if changed, info := modifiedSince(path, prev); changed {
				prev.FileSize = info.Size()
				prev.ModifiedAt = info.ModTime()
				toUpdate = append(toUpdate, prev)
				result.Updated++
			}

			seen++
			reporter.Send(progress.Report{
				Current: seen,
				Total:   total,
				Name:    name,
				Status: fmt.Sprintf("added %d, updated %d, removed %d",
					result.Added, result.Updated, result.Removed),
			})
		}
	}

	// Additions and updates land before removals are derived.
	if err := s.store.InsertBatch(ctx, toInsert); err != nil {
		return result, err
	}
	if err := s.store.UpdateBatch(ctx, toUpdate); err != nil {
		return result, err
	}

	var stale []int64
	for path, e := range existingByPath {
		if !onDisk[path] && !unavailable[filepath.Dir(path)] {
			stale = append(stale, e.ID)
		}
	}
	if err := s.store.DeleteBatch(ctx, stale); err != nil {
		return result, err
	}
	result.Removed = len(stale)

	metrics.ScanDiffTotal.WithLabelValues("added").Add(float64(result.Added))
	metrics.ScanDiffTotal.WithLabelValues("updated").Add(float64(result.Updated))
	metrics.ScanDiffTotal.WithLabelValues("removed").Add(float64(result.Removed))

	reporter.Send(progress.Report{
		Current: total,
		Total:   total,
		Status: fmt.Sprintf("added %d, updated %d, removed %d",
			result.Added, result.Updated, result.Removed),
	})

	logging.Info("Incremental scan: +%d ~%d -%d in %v",
		result.Added, result.Updated, result.Removed, time.Since(start))
	return result, nil
}

// listArchives returns the archive filenames directly inside root.
// Subfolders are not descended: they must be registered as roots of their
// own.
func listArchives(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, d := range entries {
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		if IsArchive(d.Name()) {
			names = append(names, d.Name())
		}
	}
	return names, nil
}

// buildEntry stats one file and parses its name into a catalog entry.
func buildEntry(root, name string) (*catalog.Entry, error) {
	path := filepath.Join(root, name)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	parsed := ParseFilename(name)
	title := parsed.Title

	e := &catalog.Entry{
		FilePath: path,
		FileName: name,
		FileSize: info.Size(),
		FileType: strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."),
		// Birth time is not portably available; the modification time at
		// first sighting stands in for it.
		CreatedAt:  info.ModTime(),
		ModifiedAt: info.ModTime(),

		Title:          &title,
		OriginalAuthor: parsed.OriginalAuthor,
		Artist:         parsed.Artist,
		AuthorReading:  parsed.AuthorReading,
		VolumeNumber:   parsed.VolumeNumber,
		VolumeRange:    parsed.VolumeRange,
	}
	return e, nil
}

// modifiedSince reports whether the on-disk file differs from the stored
// entry, comparing modification times at second precision (the stored
// resolution).
func modifiedSince(path string, prev *catalog.Entry) (bool, fs.FileInfo) {
	info, err := os.Stat(path)
	if err != nil {
		return false, nil
	}
	return info.ModTime().Unix() != prev.ModifiedAt.Unix(), info
}
