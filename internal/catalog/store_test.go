package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testEntry(path string) *Entry {
	title := filepath.Base(path)
	now := time.Now()
	return &Entry{
		FilePath:   path,
		FileName:   filepath.Base(path),
		FileSize:   1024,
		FileType:   "zip",
		CreatedAt:  now,
		ModifiedAt: now,
		Title:      &title,
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	store, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := store.Insert(context.Background(), testEntry("/shelf/a.zip")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	store.Close()

	// Schema creation and column migrations must tolerate an already
	// current database.
	store, err = Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer store.Close()

	entries, err := store.GetAllLight(context.Background())
	if err != nil {
		t.Fatalf("GetAllLight: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("entries after reopen = %d, want 1", len(entries))
	}
}

func TestInsertBatchDuplicatePathRollsBack(t *testing.T) {
	store := newTestStore(t)

	if err := store.Insert(context.Background(), testEntry("/shelf/a.zip")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	batch := []*Entry{testEntry("/shelf/b.zip"), testEntry("/shelf/a.zip")}
	err := store.InsertBatch(context.Background(), batch)
	if err == nil {
		t.Fatal("InsertBatch with duplicate path succeeded, want unique violation")
	}
	var serr *StoreError
	if !errors.As(err, &serr) || serr.Op != OpInsert {
		t.Errorf("error = %v, want *StoreError with OpInsert", err)
	}

	// b.zip must have been rolled back with the failing member.
	entries, err := store.GetAllLight(context.Background())
	if err != nil {
		t.Fatalf("GetAllLight: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("entries after failed batch = %d, want 1", len(entries))
	}
}

func TestOverlappingBatchesKeepSeparateStartTimes(t *testing.T) {
	store := newTestStore(t)

	// A ticker-driven flush can overlap the end-of-run flush, so each
	// batch must carry its own start time from begin to end.
	tx1, err := store.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch tx1: %v", err)
	}
	tx2, err := store.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch tx2: %v", err)
	}

	store.txMu.Lock()
	open := len(store.txStarts)
	_, has1 := store.txStarts[tx1]
	_, has2 := store.txStarts[tx2]
	store.txMu.Unlock()
	if open != 2 || !has1 || !has2 {
		t.Fatalf("open batch starts = %d (tx1 %v, tx2 %v), want both tracked", open, has1, has2)
	}

	if err := store.EndBatch(tx1, nil); err != nil {
		t.Errorf("EndBatch tx1: %v", err)
	}
	if err := store.EndBatch(tx2, errors.New("flush failed")); err == nil {
		t.Error("EndBatch tx2 with error returned nil, want rollback error")
	}

	store.txMu.Lock()
	open = len(store.txStarts)
	store.txMu.Unlock()
	if open != 0 {
		t.Errorf("open batch starts after EndBatch = %d, want 0", open)
	}
}

func TestOptimize(t *testing.T) {
	store := newTestStore(t)

	for _, p := range []string{"/shelf/a.zip", "/shelf/b.zip"} {
		if err := store.Insert(context.Background(), testEntry(p)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	res, err := store.Optimize(context.Background())
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if res.BytesBefore <= 0 || res.BytesAfter <= 0 {
		t.Errorf("Optimize sizes = %d -> %d, want positive", res.BytesBefore, res.BytesAfter)
	}
}
