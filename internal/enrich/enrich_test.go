package enrich

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mangashelf/internal/catalog"
)

func TestApply(t *testing.T) {
	store, err := catalog.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	now := time.Now()
	existing := "already set"
	e := &catalog.Entry{
		FilePath:   "/shelf/a.zip",
		FileName:   "a.zip",
		FileType:   "zip",
		CreatedAt:  now,
		ModifiedAt: now,
		Publisher:  &existing,
	}
	if err := store.Insert(context.Background(), e); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Empty fields leave existing values alone; non-empty ones land.
	err = Apply(context.Background(), store, e, Enrichment{
		Genre: "fantasy",
		Tags:  "isekai,adventure",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	entries, err := store.GetAllLight(context.Background())
	if err != nil {
		t.Fatalf("GetAllLight: %v", err)
	}
	got := entries[0]

	if got.Genre == nil || *got.Genre != "fantasy" {
		t.Errorf("Genre = %v, want fantasy", got.Genre)
	}
	if got.Tags == nil || *got.Tags != "isekai,adventure" {
		t.Errorf("Tags = %v", got.Tags)
	}
	if got.Publisher == nil || *got.Publisher != "already set" {
		t.Error("empty enrichment field clobbered existing publisher")
	}
	if !got.AIProcessed {
		t.Error("AIProcessed not set by Apply")
	}
}
