package relocate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mangashelf/internal/catalog"
)

func testStore(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// seedFile creates a physical file and its catalog row.
func seedFile(t *testing.T, store *catalog.Store, path string) *catalog.Entry {
	t.Helper()
	if err := os.WriteFile(path, []byte("archive "+path), 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", path, err)
	}
	now := time.Now()
	e := &catalog.Entry{
		FilePath:   path,
		FileName:   filepath.Base(path),
		FileSize:   1,
		FileType:   "zip",
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := store.Insert(context.Background(), e); err != nil {
		t.Fatalf("Insert %s: %v", path, err)
	}
	return e
}

// countingResolver records every call and returns a fixed resolution.
type countingResolver struct {
	calls []ConflictContext
	types []ConflictType
	res   Resolution
}

func (r *countingResolver) resolve(ct ConflictType, cc ConflictContext) Resolution {
	r.calls = append(r.calls, cc)
	r.types = append(r.types, ct)
	return r.res
}

func neverResolve(t *testing.T) Resolver {
	return func(ct ConflictType, cc ConflictContext) Resolution {
		t.Errorf("resolver called for %v (%s) on a conflict-free batch", ct, cc.SourcePath)
		return ResolutionSkip
	}
}

func TestMoveBatchNoConflicts(t *testing.T) {
	store := testStore(t)
	src := t.TempDir()
	dest := t.TempDir()

	a := seedFile(t, store, filepath.Join(src, "a.zip"))
	b := seedFile(t, store, filepath.Join(src, "b.zip"))

	result, err := New(store).MoveBatch(context.Background(),
		[]*catalog.Entry{a, b}, dest, neverResolve(t), nil)
	if err != nil {
		t.Fatalf("MoveBatch: %v", err)
	}
	if result.SuccessCount != 2 || result.SkippedCount != 0 || result.ErrorCount != 0 {
		t.Errorf("result = %+v, want 2 moved", result)
	}

	for _, name := range []string{"a.zip", "b.zip"} {
		if _, err := os.Stat(filepath.Join(dest, name)); err != nil {
			t.Errorf("%s not at destination: %v", name, err)
		}
		if _, err := os.Stat(filepath.Join(src, name)); !os.IsNotExist(err) {
			t.Errorf("%s still at source", name)
		}
	}

	// Catalog rows and in-memory entries track the new location.
	if a.FilePath != filepath.Join(dest, "a.zip") {
		t.Errorf("in-memory path not updated: %s", a.FilePath)
	}
	entries, err := store.GetAllLight(context.Background())
	if err != nil {
		t.Fatalf("GetAllLight: %v", err)
	}
	for _, e := range entries {
		if filepath.Dir(e.FilePath) != dest {
			t.Errorf("catalog row still points at %s", e.FilePath)
		}
	}
}

func TestMoveBatchSharedConflictResolvedOnce(t *testing.T) {
	store := testStore(t)
	src := t.TempDir()
	dest := t.TempDir()

	var entries []*catalog.Entry
	for _, name := range []string{"a.zip", "b.zip", "c.zip"} {
		entries = append(entries, seedFile(t, store, filepath.Join(src, name)))
		// Occupy every destination path.
		if err := os.WriteFile(filepath.Join(dest, name), []byte("occupant"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	r := &countingResolver{res: ResolutionSkip}
	result, err := New(store).MoveBatch(context.Background(), entries, dest, r.resolve, nil)
	if err != nil {
		t.Fatalf("MoveBatch: %v", err)
	}

	if len(r.calls) != 1 {
		t.Fatalf("resolver called %d times for one shared conflict type, want 1", len(r.calls))
	}
	if r.types[0] != ConflictFileExists {
		t.Errorf("conflict type = %v, want ConflictFileExists", r.types[0])
	}
	if r.calls[0].Count != 3 {
		t.Errorf("conflict count = %d, want 3", r.calls[0].Count)
	}
	if result.SkippedCount != 3 || result.SuccessCount != 0 {
		t.Errorf("result = %+v, want all skipped", result)
	}

	// Nothing moved.
	for _, e := range entries {
		if _, err := os.Stat(e.FilePath); err != nil {
			t.Errorf("skipped file missing from source: %v", err)
		}
	}
}

func TestMoveBatchOverwriteSupersedesOccupants(t *testing.T) {
	store := testStore(t)
	src := t.TempDir()
	dest := t.TempDir()

	var entries []*catalog.Entry
	for _, name := range []string{"a.zip", "b.zip"} {
		entries = append(entries, seedFile(t, store, filepath.Join(src, name)))
		// The occupants are cataloged too: their rows must be superseded.
		seedFile(t, store, filepath.Join(dest, name))
	}

	r := &countingResolver{res: ResolutionOverwrite}
	result, err := New(store).MoveBatch(context.Background(), entries, dest, r.resolve, nil)
	if err != nil {
		t.Fatalf("MoveBatch: %v", err)
	}
	if result.SuccessCount != 2 || result.ErrorCount != 0 {
		t.Errorf("result = %+v, want 2 moved", result)
	}
	if len(r.calls) != 1 {
		t.Errorf("resolver called %d times, want 1 (memoized)", len(r.calls))
	}

	all, err := store.GetAllLight(context.Background())
	if err != nil {
		t.Fatalf("GetAllLight: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("catalog has %d rows after overwrite, want 2 (occupants superseded)", len(all))
	}
}

func TestMoveBatchCancelDuringPreScan(t *testing.T) {
	store := testStore(t)
	src := t.TempDir()
	dest := t.TempDir()

	var entries []*catalog.Entry
	for _, name := range []string{"a.zip", "b.zip"} {
		entries = append(entries, seedFile(t, store, filepath.Join(src, name)))
		if err := os.WriteFile(filepath.Join(dest, name), []byte("occupant"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	r := &countingResolver{res: ResolutionCancel}
	result, err := New(store).MoveBatch(context.Background(), entries, dest, r.resolve, nil)
	if err != nil {
		t.Fatalf("MoveBatch: %v", err)
	}
	if !result.Cancelled {
		t.Error("Cancelled = false")
	}
	if result.SkippedCount != 2 || result.SuccessCount != 0 {
		t.Errorf("result = %+v, want everything skipped", result)
	}
	for _, e := range entries {
		if _, statErr := os.Stat(e.FilePath); statErr != nil {
			t.Errorf("file moved despite cancel: %v", statErr)
		}
	}
}

func TestMoveBatchSameFolderIsNoOp(t *testing.T) {
	store := testStore(t)
	dir := t.TempDir()
	e := seedFile(t, store, filepath.Join(dir, "a.zip"))

	r := &countingResolver{res: ResolutionOverwrite}
	result, err := New(store).MoveBatch(context.Background(),
		[]*catalog.Entry{e}, dir, r.resolve, nil)
	if err != nil {
		t.Fatalf("MoveBatch: %v", err)
	}

	if len(r.calls) != 1 || r.types[0] != ConflictSameFolder {
		t.Errorf("resolver calls = %d (%v), want one same-folder ask", len(r.calls), r.types)
	}
	// Overwriting a file with itself is pointless; it counts as skipped.
	if result.SkippedCount != 1 || result.SuccessCount != 0 {
		t.Errorf("result = %+v, want 1 skipped", result)
	}
	if _, err := os.Stat(e.FilePath); err != nil {
		t.Errorf("file vanished on same-folder no-op: %v", err)
	}
}

func TestMoveBatchMissingSourceIsAnError(t *testing.T) {
	store := testStore(t)
	src := t.TempDir()
	dest := t.TempDir()

	present := seedFile(t, store, filepath.Join(src, "a.zip"))
	missing := seedFile(t, store, filepath.Join(src, "b.zip"))
	if err := os.Remove(missing.FilePath); err != nil {
		t.Fatal(err)
	}

	result, err := New(store).MoveBatch(context.Background(),
		[]*catalog.Entry{present, missing}, dest, neverResolve(t), nil)
	if err != nil {
		t.Fatalf("MoveBatch: %v", err)
	}
	if result.SuccessCount != 1 || result.ErrorCount != 1 {
		t.Errorf("result = %+v, want 1 moved 1 error", result)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v, want one message", result.Errors)
	}
}

func TestMoveBatchCompensatesOnCatalogSyncFailure(t *testing.T) {
	store := testStore(t)
	src := t.TempDir()
	dest := t.TempDir()

	e := seedFile(t, store, filepath.Join(src, "a.zip"))
	engine := New(store)

	// The store dies between the physical move and the catalog sync.
	store.Close()

	result, err := engine.MoveBatch(context.Background(),
		[]*catalog.Entry{e}, dest, neverResolve(t), nil)
	if !errors.Is(err, ErrCatalogSync) {
		t.Fatalf("err = %v, want ErrCatalogSync", err)
	}
	if result.SuccessCount != 0 || result.ErrorCount != 1 {
		t.Errorf("result = %+v, want 0 moved 1 error", result)
	}

	// Compensation put the file back.
	if _, statErr := os.Stat(filepath.Join(src, "a.zip")); statErr != nil {
		t.Errorf("file not moved back after sync failure: %v", statErr)
	}
	if _, statErr := os.Stat(filepath.Join(dest, "a.zip")); !os.IsNotExist(statErr) {
		t.Error("file still at destination after compensation")
	}
	// The in-memory entry still points at the original location.
	if e.FilePath != filepath.Join(src, "a.zip") {
		t.Errorf("entry path mutated despite failed sync: %s", e.FilePath)
	}
}
