package catalog

import (
	"context"
	"time"
)

// Search returns entries matching every set field of criteria (conjunctive
// filter). Thumbnail blobs are not loaded; fetch them via GetThumbnail.
func (s *Store) Search(ctx context.Context, criteria SearchCriteria) ([]*Entry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("search", start, err) }()

	query := `SELECT ` + entryColumns + ` FROM volumes WHERE 1=1`
	var args []interface{}

	if criteria.Text != "" {
		query += ` AND (title LIKE ? OR original_author LIKE ? OR artist LIKE ? OR file_name LIKE ?)`
		like := "%" + criteria.Text + "%"
		args = append(args, like, like, like, like)
	}

	if criteria.Processed != nil {
		query += ` AND ai_processed = ?`
		args = append(args, boolInt(*criteria.Processed))
	}

	if criteria.ModifiedAfter != nil {
		query += ` AND modified_at >= ?`
		args = append(args, criteria.ModifiedAfter.Unix())
	}

	if criteria.ModifiedBefore != nil {
		query += ` AND modified_at <= ?`
		args = append(args, criteria.ModifiedBefore.Unix())
	}

	if criteria.Genre != "" {
		query += ` AND genre LIKE ?`
		args = append(args, "%"+criteria.Genre+"%")
	}

	if criteria.Publisher != "" {
		query += ` AND publisher LIKE ?`
		args = append(args, "%"+criteria.Publisher+"%")
	}

	if criteria.Rating != nil {
		query += ` AND rating = ?`
		args = append(args, *criteria.Rating)
	}

	query += ` ORDER BY file_path`

	s.mu.RLock()
	rows, err := s.db.QueryContext(ctx, query, args...)
	s.mu.RUnlock()
	if err != nil {
		return nil, storeErr(OpQuery, err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, scanErr := scanEntry(rows, false)
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
