// Package catalog owns the persistent volume catalog: schema, migrations,
// batched CRUD, thumbnail blob storage and space reclamation. All other
// components read and write catalog rows through this package.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"mangashelf/internal/logging"
	"mangashelf/internal/metrics"
)

// Default timeout for single-statement operations.
const defaultTimeout = 5 * time.Second

// Store manages the catalog database file.
//
// Writes within one component are serialized by its caller; the store only
// guarantees that batched writes are atomic within their own transaction.
// WAL mode keeps readers unblocked by a writer.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex

	// txStarts records when each open batch transaction began, keyed by
	// the transaction itself. Batches can overlap (a ticker flush racing
	// an end-of-run flush), so the start time cannot live in one field.
	txMu     sync.Mutex
	txStarts map[*sql.Tx]time.Time
}

// Open opens (creating if necessary) the catalog at dbPath and applies the
// schema and any pending column migrations. Idempotent and safe to call on
// every startup.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("Catalog path: %s", dbPath)

	// busy_timeout prevents "database is locked" under concurrent readers.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, storeErr(OpInit, fmt.Errorf("open database: %w", err))
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after ping failure: %v", closeErr)
		}
		return nil, storeErr(OpInit, fmt.Errorf("connect: %w", err))
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath, txStarts: make(map[*sql.Tx]time.Time)}

	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after init failure: %v", closeErr)
		}
		return nil, storeErr(OpInit, err)
	}

	logging.Info("Catalog initialized at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS volumes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_path TEXT NOT NULL UNIQUE,
		file_name TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		file_type TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		modified_at INTEGER NOT NULL,
		title TEXT,
		original_author TEXT,
		artist TEXT,
		author_reading TEXT,
		volume_number INTEGER,
		volume_range TEXT,
		genre TEXT,
		publisher TEXT,
		publish_date TEXT,
		tags TEXT,
		ai_processed INTEGER NOT NULL DEFAULT 0,
		thumbnail BLOB,
		thumbnail_generated_at INTEGER,
		rating INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_volumes_title ON volumes(title COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_volumes_modified ON volumes(modified_at);
	CREATE INDEX IF NOT EXISTS idx_volumes_processed ON volumes(ai_processed);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return s.runMigrations(ctx)
}

// runMigrations applies additive column migrations. Catalog files written
// by older releases may predate the enrichment and rating columns; each is
// detected via pragma_table_info and added in place.
func (s *Store) runMigrations(ctx context.Context) error {
	migrations := []struct {
		column string
		ddl    string
	}{
		{"genre", "ALTER TABLE volumes ADD COLUMN genre TEXT"},
		{"publisher", "ALTER TABLE volumes ADD COLUMN publisher TEXT"},
		{"publish_date", "ALTER TABLE volumes ADD COLUMN publish_date TEXT"},
		{"tags", "ALTER TABLE volumes ADD COLUMN tags TEXT"},
		{"ai_processed", "ALTER TABLE volumes ADD COLUMN ai_processed INTEGER NOT NULL DEFAULT 0"},
		{"thumbnail_generated_at", "ALTER TABLE volumes ADD COLUMN thumbnail_generated_at INTEGER"},
		{"rating", "ALTER TABLE volumes ADD COLUMN rating INTEGER"},
	}

	for _, m := range migrations {
		var exists bool
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) > 0
			FROM pragma_table_info('volumes')
			WHERE name = ?
		`, m.column).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check for %s column: %w", m.column, err)
		}

		if exists {
			continue
		}

		logging.Info("Migrating catalog: adding %s column", m.column)
		if _, err := s.db.ExecContext(ctx, m.ddl); err != nil {
			return fmt.Errorf("add %s column: %w", m.column, err)
		}
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the catalog file path.
func (s *Store) Path() string {
	return s.dbPath
}

// BeginBatch starts a transaction for batch operations. The caller must
// finish it with EndBatch.
func (s *Store) BeginBatch() (*sql.Tx, error) {
	s.mu.Lock()
	txStart := time.Now()

	// Background context: the transaction lifetime is managed by EndBatch,
	// a timeout context would cancel it when this function returns.
	tx, err := s.db.BeginTx(context.Background(), nil)
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	s.txMu.Lock()
	s.txStarts[tx] = txStart
	s.txMu.Unlock()
	return tx, nil
}

// EndBatch commits the transaction, or rolls it back fully when err is
// non-nil.
func (s *Store) EndBatch(tx *sql.Tx, err error) error {
	s.txMu.Lock()
	txStart, ok := s.txStarts[tx]
	delete(s.txStarts, tx)
	s.txMu.Unlock()
	if !ok {
		txStart = time.Now()
	}
	duration := time.Since(txStart).Seconds()

	if err != nil {
		metrics.StoreTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.StoreTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

// Optimize reclaims space held by deleted thumbnail blobs via VACUUM and
// reports the file size before and after. This can take minutes on large
// catalogs; the context bounds it and it must never run on a
// latency-sensitive path.
func (s *Store) Optimize(ctx context.Context) (*OptimizeResult, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	before := s.fileSize()

	s.mu.Lock()
	_, err = s.db.ExecContext(ctx, "VACUUM")
	s.mu.Unlock()

	if err != nil {
		return nil, storeErr(OpQuery, fmt.Errorf("vacuum: %w", err))
	}

	after := s.fileSize()
	metrics.StoreSizeBytes.Set(float64(after))

	res := &OptimizeResult{
		BytesBefore: before,
		BytesAfter:  after,
		Duration:    time.Since(start),
	}
	logging.Info("Catalog optimized: %d -> %d bytes in %v", before, after, res.Duration)
	return res, nil
}

func (s *Store) fileSize() int64 {
	info, err := os.Stat(s.dbPath)
	if err != nil {
		return 0
	}
	return info.Size()
}

func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.StoreQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
