package thumbs

import (
	"context"
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

func seedArchiveEntry(t *testing.T, store *catalog.Store, dir, name string) *catalog.Entry {
	t.Helper()
	path := filepath.Join(dir, name)
	writeArchive(t, path, map[string][]byte{
		"cover.png": noisyPNG(t, 200, 400),
	}, []string{"cover.png"})

	now := time.Now()
	e := &catalog.Entry{
		FilePath:   path,
		FileName:   name,
		FileSize:   1,
		FileType:   "zip",
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := store.Insert(context.Background(), e); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return e
}

func TestPipelineRunPersistsAndSkips(t *testing.T) {
	store := testStore(t)
	dir := t.TempDir()
	a := seedArchiveEntry(t, store, dir, "a.zip")
	b := seedArchiveEntry(t, store, dir, "b.zip")

	p := NewPipeline(store, NewDisplayCache(10))

	entries, err := store.GetAllLight(context.Background())
	if err != nil {
		t.Fatalf("GetAllLight: %v", err)
	}
	res, err := p.Run(context.Background(), entries, OnlyMissing, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Generated != 2 || res.Placeholders != 0 || res.Skipped != 0 {
		t.Errorf("result = %+v, want 2 generated", res)
	}
	if p.QueueDepth() != 0 {
		t.Errorf("queue depth after run = %d, want 0", p.QueueDepth())
	}

	for _, e := range []*catalog.Entry{a, b} {
		blob, err := store.GetThumbnail(context.Background(), e.ID)
		if err != nil {
			t.Fatalf("GetThumbnail(%d): %v", e.ID, err)
		}
		if len(blob) == 0 {
			t.Errorf("no thumbnail persisted for id %d", e.ID)
		}
		decodeThumb(t, blob)
	}

	// A second only-missing run finds nothing to do.
	entries, err = store.GetAllLight(context.Background())
	if err != nil {
		t.Fatalf("GetAllLight: %v", err)
	}
	res, err = p.Run(context.Background(), entries, OnlyMissing, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Generated != 0 || res.Skipped != 2 {
		t.Errorf("repeat result = %+v, want all skipped", res)
	}

	// Regenerate mode reprocesses regardless.
	res, err = p.Run(context.Background(), entries, RegenerateAll, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Generated != 2 || res.Skipped != 0 {
		t.Errorf("regenerate result = %+v, want 2 generated", res)
	}
}

func TestPipelineRunCountsPlaceholders(t *testing.T) {
	store := testStore(t)

	now := time.Now()
	e := &catalog.Entry{
		FilePath:   filepath.Join(t.TempDir(), "gone.zip"),
		FileName:   "gone.zip",
		FileSize:   1,
		FileType:   "zip",
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := store.Insert(context.Background(), e); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	p := NewPipeline(store, NewDisplayCache(10))
	res, err := p.Run(context.Background(), []*catalog.Entry{e}, OnlyMissing, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Placeholders != 1 || res.Generated != 0 {
		t.Errorf("result = %+v, want 1 placeholder", res)
	}

	// The placeholder is persisted so the entry is not retried forever.
	blob, err := store.GetThumbnail(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("GetThumbnail: %v", err)
	}
	if len(blob) == 0 {
		t.Error("placeholder was not persisted")
	}
}

func TestFlushRequeuesOnFailureWithBoundedRetries(t *testing.T) {
	store := testStore(t)

	now := time.Now()
	e := &catalog.Entry{ID: 1, FilePath: "/x/a.zip", FileName: "a.zip",
		CreatedAt: now, ModifiedAt: now, Thumbnail: []byte("data"), ThumbnailGeneratedAt: &now}

	p := NewPipeline(store, NewDisplayCache(10))
	p.enqueue(pending{entry: e})

	// A closed store makes every flush fail.
	store.Close()

	for attempt := 1; attempt <= maxRequeue-1; attempt++ {
		if err := p.Flush(context.Background()); err == nil {
			t.Fatalf("Flush %d succeeded against a closed store", attempt)
		}
		if p.QueueDepth() != 1 {
			t.Fatalf("queue depth after failed flush %d = %d, want 1", attempt, p.QueueDepth())
		}
	}

	// The final retry exhausts the budget and the entry is dropped.
	if err := p.Flush(context.Background()); err == nil {
		t.Fatal("final Flush succeeded against a closed store")
	}
	if p.QueueDepth() != 0 {
		t.Errorf("queue depth after retry exhaustion = %d, want 0", p.QueueDepth())
	}
}

func TestDisplayCachesDecodedImage(t *testing.T) {
	store := testStore(t)
	dir := t.TempDir()
	e := seedArchiveEntry(t, store, dir, "a.zip")

	cache := NewDisplayCache(10)
	p := NewPipeline(store, cache)

	entries, err := store.GetAllLight(context.Background())
	if err != nil {
		t.Fatalf("GetAllLight: %v", err)
	}
	if _, err := p.Run(context.Background(), entries, OnlyMissing, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	img, err := p.Display(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	if img.Bounds().Dx() != CanvasWidth || img.Bounds().Dy() != CanvasHeight {
		t.Errorf("display image is %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}

	// Second lookup is served from the cache.
	if _, err := p.Display(context.Background(), e.ID); err != nil {
		t.Fatalf("Display (cached): %v", err)
	}
	hits, _ := cache.Counters()
	if hits == 0 {
		t.Error("cache recorded no hits after repeat display")
	}
}
