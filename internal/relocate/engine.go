// Package relocate moves catalog-tracked files to a destination folder
// while keeping the catalog's path column consistent with the filesystem.
//
// A batch runs in two phases: phase 1 performs the physical moves, phase 2
// commits every new path to the catalog in a single batch. This is not a
// transaction; when phase 2 fails the engine compensates by moving every
// file back, and surfaces the window as ErrCatalogSync.
package relocate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mangashelf/internal/catalog"
	"mangashelf/internal/fsutil"
	"mangashelf/internal/logging"
	"mangashelf/internal/metrics"
	"mangashelf/internal/progress"
)

// ConflictType classifies a destination-path collision.
type ConflictType int

const (
	// ConflictNone means the destination is free.
	ConflictNone ConflictType = iota
	// ConflictSameFolder means source and destination resolve to the same
	// directory.
	ConflictSameFolder
	// ConflictFileExists means a different file already occupies the
	// destination path.
	ConflictFileExists
)

func (c ConflictType) String() string {
	switch c {
	case ConflictNone:
		return "none"
	case ConflictSameFolder:
		return "same-folder"
	case ConflictFileExists:
		return "file-exists"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// Resolution is the caller's answer to a conflict.
type Resolution int

const (
	// ResolutionSkip leaves this file (or every file of the conflict
	// type) where it is.
	ResolutionSkip Resolution = iota
	// ResolutionOverwrite replaces the destination file.
	ResolutionOverwrite
	// ResolutionCancel aborts the remaining unprocessed files.
	ResolutionCancel
)

// ConflictContext describes the conflict being resolved. Count is the
// number of files in the batch sharing the conflict type; when it is
// greater than one the answer applies to all of them.
type ConflictContext struct {
	SourcePath string
	DestPath   string
	Count      int
}

// Resolver is implemented by the presentation layer.
type Resolver func(ConflictType, ConflictContext) Resolution

// ErrCatalogSync marks the recoverable-but-visible window where files
// were physically moved but the catalog could not be updated. Compensation
// has already run (best-effort) by the time this error is returned.
var ErrCatalogSync = errors.New("catalog sync failed after physical moves")

// maxReportedErrors caps the error list carried in a Result.
const maxReportedErrors = 5

// Result accounts for one relocation batch.
type Result struct {
	SuccessCount int      `json:"successCount"`
	SkippedCount int      `json:"skippedCount"`
	ErrorCount   int      `json:"errorCount"`
	Cancelled    bool     `json:"cancelled"`
	Errors       []string `json:"errors,omitempty"`
}

func (r *Result) addError(err error) {
	r.ErrorCount++
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, err.Error())
	}
}

// Engine relocates files and syncs the catalog.
type Engine struct {
	store *catalog.Store
	retry fsutil.RetryConfig
}

// New creates an Engine over store.
func New(store *catalog.Store) *Engine {
	return &Engine{
		store: store,
		retry: fsutil.DefaultRetryConfig(),
	}
}

type movedFile struct {
	entry *catalog.Entry
	from  string
	to    string
}

// MoveBatch moves entries into destDir. Conflicts are pre-scanned before
// any move begins; a conflict type shared by more than one file is
// resolved once (with the count) and the answer memoized for the rest of
// the run. ResolutionCancel aborts remaining unprocessed files; files
// already moved stay moved unless the catalog sync fails, in which case
// every moved file is compensated back and the batch fails with
// ErrCatalogSync.
func (en *Engine) MoveBatch(ctx context.Context, entries []*catalog.Entry, destDir string, resolve Resolver, onProgress progress.Func) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.MoveBatchDuration.Observe(time.Since(start).Seconds())
	}()

	reporter := progress.NewReporter(onProgress)
	defer reporter.Flush()

	destDir = filepath.Clean(destDir)
	result := &Result{}

	// Pre-scan: classify every file and resolve shared conflict types up
	// front so the user is asked once per type, not once per file.
	conflicts := make([]ConflictType, len(entries))
	counts := make(map[ConflictType]int)
	for i, e := range entries {
		conflicts[i] = classify(e.FilePath, filepath.Join(destDir, e.FileName))
		if conflicts[i] != ConflictNone {
			counts[conflicts[i]]++
		}
	}

	memo := make(map[ConflictType]Resolution)
	for _, ct := range []ConflictType{ConflictSameFolder, ConflictFileExists} {
		if counts[ct] > 1 {
			first := firstOfType(entries, conflicts, ct)
			memo[ct] = resolve(ct, ConflictContext{
				SourcePath: first.FilePath,
				DestPath:   filepath.Join(destDir, first.FileName),
				Count:      counts[ct],
			})
			if memo[ct] == ResolutionCancel {
				result.Cancelled = true
				result.SkippedCount = len(entries)
				return result, nil
			}
		}
	}

	var moved []movedFile

	for i, e := range entries {
		destPath := filepath.Join(destDir, e.FileName)

		reporter.Send(progress.Report{
			Current: i + 1,
			Total:   len(entries),
			Name:    e.FileName,
			Status:  "validating",
		})

		// Validating: the source must still exist.
		if _, err := os.Stat(e.FilePath); err != nil {
			result.addError(fmt.Errorf("source missing: %s", e.FilePath))
			metrics.MoveFilesTotal.WithLabelValues("error").Inc()
			continue
		}

		// ConflictCheck / AwaitingResolution.
		ct := conflicts[i]
		res := ResolutionOverwrite
		if ct != ConflictNone {
			var asked bool
			if res, asked = memo[ct]; !asked {
				res = resolve(ct, ConflictContext{
					SourcePath: e.FilePath,
					DestPath:   destPath,
					Count:      1,
				})
			}
		}

		switch res {
		case ResolutionCancel:
			result.Cancelled = true
			result.SkippedCount += len(entries) - i
			metrics.MoveFilesTotal.WithLabelValues("skipped").Add(float64(len(entries) - i))
			goto sync
		case ResolutionSkip:
			result.SkippedCount++
			metrics.MoveFilesTotal.WithLabelValues("skipped").Inc()
			continue
		}

		// A same-folder "move" with overwrite is a no-op: the file is
		// already at its destination.
		if ct == ConflictSameFolder {
			result.SkippedCount++
			metrics.MoveFilesTotal.WithLabelValues("skipped").Inc()
			continue
		}

		// Moving: probe access, then move with bounded retry.
		reporter.Send(progress.Report{
			Current: i + 1,
			Total:   len(entries),
			Name:    e.FileName,
			Status:  "moving",
		})

		if err := fsutil.ProbeReadable(e.FilePath); err != nil {
			result.addError(fmt.Errorf("%s: %w", e.FileName, err))
			metrics.MoveFilesTotal.WithLabelValues("error").Inc()
			continue
		}
		if err := fsutil.ProbeWritable(destDir); err != nil {
			result.addError(fmt.Errorf("%s: %w", e.FileName, err))
			metrics.MoveFilesTotal.WithLabelValues("error").Inc()
			continue
		}

		if err := fsutil.MoveWithRetry(e.FilePath, destPath, en.retry); err != nil {
			result.addError(fmt.Errorf("move %s: %w", e.FileName, err))
			metrics.MoveFilesTotal.WithLabelValues("error").Inc()
			continue
		}

		moved = append(moved, movedFile{entry: e, from: e.FilePath, to: destPath})
	}

sync:
	if len(moved) == 0 {
		return result, nil
	}

	// SyncingCatalog: one batch for every physically moved file.
	reporter.Send(progress.Report{
		Current: len(entries),
		Total:   len(entries),
		Status:  "syncing catalog",
	})

	updates := make([]catalog.PathUpdate, len(moved))
	for i, m := range moved {
		updates[i] = catalog.PathUpdate{ID: m.entry.ID, NewPath: m.to}
	}

	if err := en.store.UpdatePathsBatch(ctx, updates); err != nil {
		metrics.MoveSyncFailures.Inc()
		en.compensate(moved)
		result.ErrorCount += len(moved)
		return result, fmt.Errorf("%w: %v", ErrCatalogSync, err)
	}

	for _, m := range moved {
		m.entry.FilePath = m.to
		m.entry.FileName = filepath.Base(m.to)
		m.entry.FileType = strings.TrimPrefix(strings.ToLower(filepath.Ext(m.to)), ".")
	}

	result.SuccessCount = len(moved)
	metrics.MoveFilesTotal.WithLabelValues("moved").Add(float64(len(moved)))

	logging.Info("Move batch: %d moved, %d skipped, %d errors in %v",
		result.SuccessCount, result.SkippedCount, result.ErrorCount, time.Since(start))
	return result, nil
}

// compensate moves every physically moved file back to its original path.
// Best-effort: a failure here leaves a filesystem/catalog mismatch that
// needs operator attention, so it is logged loudly and not retried.
func (en *Engine) compensate(moved []movedFile) {
	logging.Warn("Catalog sync failed, moving %d files back", len(moved))

	for _, m := range moved {
		if err := fsutil.MoveWithRetry(m.to, m.from, en.retry); err != nil {
			logging.Error("DATA CONSISTENCY: could not move %s back to %s: %v",
				m.to, m.from, err)
			continue
		}
		metrics.MoveFilesTotal.WithLabelValues("compensated").Inc()
	}
}

// classify determines the conflict type for one source/destination pair.
func classify(srcPath, destPath string) ConflictType {
	if filepath.Dir(srcPath) == filepath.Dir(destPath) {
		return ConflictSameFolder
	}
	if _, err := os.Stat(destPath); err == nil {
		return ConflictFileExists
	}
	return ConflictNone
}

func firstOfType(entries []*catalog.Entry, conflicts []ConflictType, ct ConflictType) *catalog.Entry {
	for i, c := range conflicts {
		if c == ct {
			return entries[i]
		}
	}
	return entries[0]
}
