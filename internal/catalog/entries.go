package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"mangashelf/internal/metrics"
)

// ratingBatchChunk bounds the number of ids per UPDATE statement so the
// statement size stays fixed regardless of selection size.
const ratingBatchChunk = 1000

// entryColumns are the non-blob columns in scan order.
const entryColumns = `id, file_path, file_name, file_size, file_type, created_at, modified_at,
	title, original_author, artist, author_reading, volume_number, volume_range,
	genre, publisher, publish_date, tags, ai_processed, thumbnail_generated_at, rating`

// GetAll returns every entry including thumbnail blobs. On large catalogs
// this reads gigabytes; prefer GetAllLight plus GetThumbnail on demand.
func (s *Store) GetAll(ctx context.Context) ([]*Entry, error) {
	return s.getAll(ctx, true)
}

// GetAllLight returns every entry without thumbnail blobs, keeping the read
// proportional to metadata size.
func (s *Store) GetAllLight(ctx context.Context) ([]*Entry, error) {
	return s.getAll(ctx, false)
}

func (s *Store) getAll(ctx context.Context, withThumbnails bool) ([]*Entry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_all", start, err) }()

	query := `SELECT ` + entryColumns + ` FROM volumes ORDER BY file_path`
	if withThumbnails {
		query = `SELECT ` + entryColumns + `, thumbnail FROM volumes ORDER BY file_path`
	}

	s.mu.RLock()
	rows, err := s.db.QueryContext(ctx, query)
	s.mu.RUnlock()
	if err != nil {
		return nil, storeErr(OpQuery, err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, scanErr := scanEntry(rows, withThumbnails)
		if scanErr != nil {
			err = scanErr
			return nil, storeErr(OpQuery, scanErr)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, storeErr(OpQuery, err)
	}

	return entries, nil
}

// GetThumbnail fetches one entry's thumbnail blob, or nil when none has
// been generated yet.
func (s *Store) GetThumbnail(ctx context.Context, id int64) ([]byte, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_thumbnail", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var blob []byte
	s.mu.RLock()
	err = s.db.QueryRowContext(ctx, `SELECT thumbnail FROM volumes WHERE id = ?`, id).Scan(&blob)
	s.mu.RUnlock()
	if err != nil {
		return nil, storeErr(OpQuery, fmt.Errorf("thumbnail for id %d: %w", id, err))
	}
	return blob, nil
}

// Insert persists a new entry and assigns its ID.
func (s *Store) Insert(ctx context.Context, e *Entry) error {
	return s.InsertBatch(ctx, []*Entry{e})
}

// InsertBatch persists entries atomically in one transaction, assigning
// IDs. Any member failure rolls back the whole batch.
func (s *Store) InsertBatch(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("insert_batch", start, err) }()

	tx, err := s.BeginBatch()
	if err != nil {
		return storeErr(OpInsert, err)
	}

	query := `
	INSERT INTO volumes (
		file_path, file_name, file_size, file_type, created_at, modified_at,
		title, original_author, artist, author_reading, volume_number, volume_range,
		genre, publisher, publish_date, tags, ai_processed,
		thumbnail, thumbnail_generated_at, rating
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, e := range entries {
		res, execErr := tx.ExecContext(context.Background(), query,
			e.FilePath, e.FileName, e.FileSize, e.FileType,
			e.CreatedAt.Unix(), e.ModifiedAt.Unix(),
			nullStr(e.Title), nullStr(e.OriginalAuthor), nullStr(e.Artist), nullStr(e.AuthorReading),
			nullInt(e.VolumeNumber), nullStr(e.VolumeRange),
			nullStr(e.Genre), nullStr(e.Publisher), nullStr(e.PublishDate), nullStr(e.Tags),
			boolInt(e.AIProcessed),
			nullBlob(e.Thumbnail), nullTime(e.ThumbnailGeneratedAt), nullInt(e.Rating),
		)
		if execErr != nil {
			err = fmt.Errorf("insert %s: %w", e.FilePath, execErr)
			if endErr := s.EndBatch(tx, err); endErr != nil {
				err = endErr
			}
			return storeErr(OpInsert, err)
		}
		if id, idErr := res.LastInsertId(); idErr == nil {
			e.ID = id
		}
	}

	if err = s.EndBatch(tx, nil); err != nil {
		return storeErr(OpInsert, err)
	}

	metrics.StoreRowsAffected.WithLabelValues("insert_batch").Observe(float64(len(entries)))
	return nil
}

// Update overwrites one entry's row keyed by ID.
func (s *Store) Update(ctx context.Context, e *Entry) error {
	return s.UpdateBatch(ctx, []*Entry{e})
}

// UpdateBatch overwrites rows keyed by ID in one transaction. Metadata
// columns are always rewritten; the thumbnail columns are rewritten only
// when the entry carries thumbnail bytes, so entries loaded via
// GetAllLight never clobber stored blobs.
func (s *Store) UpdateBatch(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("update_batch", start, err) }()

	tx, err := s.BeginBatch()
	if err != nil {
		return storeErr(OpUpdate, err)
	}

	metaQuery := `
	UPDATE volumes SET
		file_path = ?, file_name = ?, file_size = ?, file_type = ?,
		created_at = ?, modified_at = ?,
		title = ?, original_author = ?, artist = ?, author_reading = ?,
		volume_number = ?, volume_range = ?,
		genre = ?, publisher = ?, publish_date = ?, tags = ?, ai_processed = ?,
		rating = ?
	WHERE id = ?`

	thumbQuery := `UPDATE volumes SET thumbnail = ?, thumbnail_generated_at = ? WHERE id = ?`

	for _, e := range entries {
		_, execErr := tx.ExecContext(context.Background(), metaQuery,
			e.FilePath, e.FileName, e.FileSize, e.FileType,
			e.CreatedAt.Unix(), e.ModifiedAt.Unix(),
			nullStr(e.Title), nullStr(e.OriginalAuthor), nullStr(e.Artist), nullStr(e.AuthorReading),
			nullInt(e.VolumeNumber), nullStr(e.VolumeRange),
			nullStr(e.Genre), nullStr(e.Publisher), nullStr(e.PublishDate), nullStr(e.Tags),
			boolInt(e.AIProcessed), nullInt(e.Rating),
			e.ID,
		)
		if execErr == nil && len(e.Thumbnail) > 0 {
			_, execErr = tx.ExecContext(context.Background(), thumbQuery,
				e.Thumbnail, nullTime(e.ThumbnailGeneratedAt), e.ID)
		}
		if execErr != nil {
			err = fmt.Errorf("update id %d: %w", e.ID, execErr)
			if endErr := s.EndBatch(tx, err); endErr != nil {
				err = endErr
			}
			return storeErr(OpUpdate, err)
		}
	}

	if err = s.EndBatch(tx, nil); err != nil {
		return storeErr(OpUpdate, err)
	}

	metrics.StoreRowsAffected.WithLabelValues("update_batch").Observe(float64(len(entries)))
	return nil
}

// UpdatePathsBatch rewrites location columns after physical moves. For
// each update, any other row already occupying the destination path is
// deleted first: that row's file was just overwritten on disk, so the
// moved entry supersedes it. Used exclusively by the relocation engine.
func (s *Store) UpdatePathsBatch(ctx context.Context, updates []PathUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("update_paths", start, err) }()

	tx, err := s.BeginBatch()
	if err != nil {
		return storeErr(OpUpdate, err)
	}

	for _, u := range updates {
		_, execErr := tx.ExecContext(context.Background(),
			`DELETE FROM volumes WHERE file_path = ? AND id != ?`, u.NewPath, u.ID)
		if execErr == nil {
			name := filepath.Base(u.NewPath)
			ftype := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
			_, execErr = tx.ExecContext(context.Background(),
				`UPDATE volumes SET file_path = ?, file_name = ?, file_type = ? WHERE id = ?`,
				u.NewPath, name, ftype, u.ID)
		}
		if execErr != nil {
			err = fmt.Errorf("repath id %d -> %s: %w", u.ID, u.NewPath, execErr)
			if endErr := s.EndBatch(tx, err); endErr != nil {
				err = endErr
			}
			return storeErr(OpUpdate, err)
		}
	}

	if err = s.EndBatch(tx, nil); err != nil {
		return storeErr(OpUpdate, err)
	}

	metrics.StoreRowsAffected.WithLabelValues("update_paths").Observe(float64(len(updates)))
	return nil
}

// UpdateRatingBatch sets (or clears, when rating is nil) the rating for a
// set of entries. Ratings outside 1..5 are rejected before any write. The
// id list is chunked to bound statement size.
func (s *Store) UpdateRatingBatch(ctx context.Context, ids []int64, rating *int) error {
	if rating != nil && (*rating < 1 || *rating > 5) {
		return storeErr(OpUpdate, fmt.Errorf("rating %d out of range 1-5", *rating))
	}
	if len(ids) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("update_rating", start, err) }()

	tx, err := s.BeginBatch()
	if err != nil {
		return storeErr(OpUpdate, err)
	}

	for i := 0; i < len(ids); i += ratingBatchChunk {
		end := i + ratingBatchChunk
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[i:end]

		placeholders := strings.Repeat("?,", len(chunk))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]interface{}, 0, len(chunk)+1)
		args = append(args, nullInt(rating))
		for _, id := range chunk {
			args = append(args, id)
		}

		_, execErr := tx.ExecContext(context.Background(),
			`UPDATE volumes SET rating = ? WHERE id IN (`+placeholders+`)`, args...)
		if execErr != nil {
			err = execErr
			if endErr := s.EndBatch(tx, err); endErr != nil {
				err = endErr
			}
			return storeErr(OpUpdate, err)
		}
	}

	if err = s.EndBatch(tx, nil); err != nil {
		return storeErr(OpUpdate, err)
	}

	metrics.StoreRowsAffected.WithLabelValues("update_rating").Observe(float64(len(ids)))
	return nil
}

// Delete removes one entry.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.DeleteBatch(ctx, []int64{id})
}

// DeleteBatch removes entries atomically in one transaction.
func (s *Store) DeleteBatch(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("delete_batch", start, err) }()

	tx, err := s.BeginBatch()
	if err != nil {
		return storeErr(OpDelete, err)
	}

	for _, id := range ids {
		if _, execErr := tx.ExecContext(context.Background(),
			`DELETE FROM volumes WHERE id = ?`, id); execErr != nil {
			err = fmt.Errorf("delete id %d: %w", id, execErr)
			if endErr := s.EndBatch(tx, err); endErr != nil {
				err = endErr
			}
			return storeErr(OpDelete, err)
		}
	}

	if err = s.EndBatch(tx, nil); err != nil {
		return storeErr(OpDelete, err)
	}

	metrics.StoreRowsAffected.WithLabelValues("delete_batch").Observe(float64(len(ids)))
	return nil
}

// DeleteByFolder removes entries that are direct children of folder.
// Entries under nested subfolders are untouched: subfolders are registered
// as their own scan roots and must be deleted through their own prefix.
func (s *Store) DeleteByFolder(ctx context.Context, folder string) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_by_folder", start, err) }()

	prefix := strings.TrimRight(folder, string(filepath.Separator)) + string(filepath.Separator)

	// % and _ are LIKE wildcards; a folder name containing them must
	// still match as a literal prefix.
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)

	s.mu.RLock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_path FROM volumes WHERE file_path LIKE ? ESCAPE '\'`, escaped+"%")
	s.mu.RUnlock()
	if err != nil {
		return 0, storeErr(OpDelete, err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		var path string
		if scanErr := rows.Scan(&id, &path); scanErr != nil {
			rows.Close()
			err = scanErr
			return 0, storeErr(OpDelete, scanErr)
		}
		rest := strings.TrimPrefix(path, prefix)
		if !strings.ContainsRune(rest, filepath.Separator) {
			ids = append(ids, id)
		}
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return 0, storeErr(OpDelete, err)
	}
	rows.Close()

	if err = s.DeleteBatch(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanEntry.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(r rowScanner, withThumbnail bool) (*Entry, error) {
	var (
		e                                        Entry
		createdAt, modifiedAt                    int64
		title, origAuthor, artist, reading       sql.NullString
		volRange, genre, publisher, pubDate, tag sql.NullString
		volNum, rating, thumbAt                  sql.NullInt64
		processed                                int
	)

	dest := []interface{}{
		&e.ID, &e.FilePath, &e.FileName, &e.FileSize, &e.FileType, &createdAt, &modifiedAt,
		&title, &origAuthor, &artist, &reading, &volNum, &volRange,
		&genre, &publisher, &pubDate, &tag, &processed, &thumbAt, &rating,
	}
	if withThumbnail {
		dest = append(dest, &e.Thumbnail)
	}

	if err := r.Scan(dest...); err != nil {
		return nil, err
	}

	e.CreatedAt = time.Unix(createdAt, 0)
	e.ModifiedAt = time.Unix(modifiedAt, 0)
	e.Title = strPtr(title)
	e.OriginalAuthor = strPtr(origAuthor)
	e.Artist = strPtr(artist)
	e.AuthorReading = strPtr(reading)
	e.VolumeNumber = intPtr(volNum)
	e.VolumeRange = strPtr(volRange)
	e.Genre = strPtr(genre)
	e.Publisher = strPtr(publisher)
	e.PublishDate = strPtr(pubDate)
	e.Tags = strPtr(tag)
	e.AIProcessed = processed != 0
	e.Rating = intPtr(rating)
	if thumbAt.Valid {
		t := time.Unix(thumbAt.Int64, 0)
		e.ThumbnailGeneratedAt = &t
	}

	return &e, nil
}

// Null conversion helpers.

func nullStr(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(i *int) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func nullBlob(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func strPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func intPtr(i sql.NullInt64) *int {
	if !i.Valid {
		return nil
	}
	v := int(i.Int64)
	return &v
}
