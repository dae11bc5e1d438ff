package catalog

import (
	"context"
	"path/filepath"
	"sort"
	"time"
)

// Statistics aggregates the catalog: totals plus a per-folder breakdown.
// The folder grouping happens in Go over file_path prefixes rather than in
// SQL, because folder boundaries are filesystem semantics the database has
// no business knowing about.
func (s *Store) Statistics(ctx context.Context) (*Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("statistics", start, err) }()

	stats := &Stats{}

	s.mu.RLock()
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(file_size), 0),
		       COALESCE(SUM(ai_processed), 0),
		       COUNT(thumbnail_generated_at)
		FROM volumes
	`).Scan(&stats.TotalFiles, &stats.TotalBytes, &stats.ProcessedFiles, &stats.WithThumbnail)
	s.mu.RUnlock()
	if err != nil {
		return nil, storeErr(OpQuery, err)
	}

	s.mu.RLock()
	rows, err := s.db.QueryContext(ctx, `SELECT file_path, file_size FROM volumes`)
	s.mu.RUnlock()
	if err != nil {
		return nil, storeErr(OpQuery, err)
	}
	defer rows.Close()

	type agg struct {
		count int
		bytes int64
	}
	folders := make(map[string]*agg)

	for rows.Next() {
		var path string
		var size int64
		if scanErr := rows.Scan(&path, &size); scanErr != nil {
			err = scanErr
			return nil, storeErr(OpQuery, scanErr)
		}
		dir := filepath.Dir(path)
		a := folders[dir]
		if a == nil {
			a = &agg{}
			folders[dir] = a
		}
		a.count++
		a.bytes += size
	}
	if err = rows.Err(); err != nil {
		return nil, storeErr(OpQuery, err)
	}

	stats.Folders = make([]FolderStats, 0, len(folders))
	for dir, a := range folders {
		stats.Folders = append(stats.Folders, FolderStats{
			Folder:     dir,
			FileCount:  a.count,
			TotalBytes: a.bytes,
		})
	}
	sort.Slice(stats.Folders, func(i, j int) bool {
		return stats.Folders[i].Folder < stats.Folders[j].Folder
	})

	return stats, nil
}
