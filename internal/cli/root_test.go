package cli

import (
	"sync"
	"testing"
)

func TestSettingsReloadConcurrentWithReaders(t *testing.T) {
	// Watch mode reloads settings from a signal-handler goroutine while
	// the sync loop and the scanner's roots closure read them. Reload and
	// read concurrently; the race detector flags any unguarded access.
	// Watch mode always performs an initial synchronous load (via
	// PersistentPreRunE) before the reload goroutine exists.
	if err := loadSettings(); err != nil {
		t.Fatalf("loadSettings (initial): %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if err := loadSettings(); err != nil {
				t.Errorf("loadSettings: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		s := currentSettings()
		if s.DatabasePath == "" {
			t.Fatal("snapshot has empty DatabasePath")
		}
		for _, root := range s.ScanRoots {
			_ = root
		}
	}
	wg.Wait()
}

func TestDBFlagOverridesConfig(t *testing.T) {
	orig := dbPath
	defer func() {
		dbPath = orig
		if err := loadSettings(); err != nil {
			t.Errorf("loadSettings (restore): %v", err)
		}
	}()

	dbPath = "/tmp/override.db"
	if err := loadSettings(); err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if got := currentSettings().DatabasePath; got != "/tmp/override.db" {
		t.Errorf("DatabasePath = %q, want the --db override", got)
	}
}
