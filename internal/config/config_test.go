package config

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	s, errs := Load(viper.New())
	if len(errs) != 0 {
		t.Fatalf("Load of empty config produced errors: %v", errs)
	}

	want := Defaults()
	if s.DatabasePath != want.DatabasePath {
		t.Errorf("DatabasePath = %q, want %q", s.DatabasePath, want.DatabasePath)
	}
	if s.CacheCapacity != want.CacheCapacity {
		t.Errorf("CacheCapacity = %d, want %d", s.CacheCapacity, want.CacheCapacity)
	}
	if s.SyncInterval != want.SyncInterval {
		t.Errorf("SyncInterval = %v, want %v", s.SyncInterval, want.SyncInterval)
	}
	if s.MetricsPort != want.MetricsPort {
		t.Errorf("MetricsPort = %d, want %d", s.MetricsPort, want.MetricsPort)
	}
}

func TestLoadValidValues(t *testing.T) {
	v := viper.New()
	v.Set("scan_roots", []string{"/shelf", "/other"})
	v.Set("database_path", "/var/lib/mangashelf.db")
	v.Set("cache_capacity", 100)
	v.Set("cache_ceiling_mb", 256)
	v.Set("sync_interval", "15m")
	v.Set("metrics_port", 9090)

	s, errs := Load(v)
	if len(errs) != 0 {
		t.Fatalf("Load: %v", errs)
	}

	if len(s.ScanRoots) != 2 || s.ScanRoots[0] != "/shelf" {
		t.Errorf("ScanRoots = %v", s.ScanRoots)
	}
	if s.DatabasePath != "/var/lib/mangashelf.db" {
		t.Errorf("DatabasePath = %q", s.DatabasePath)
	}
	if s.CacheCapacity != 100 || s.CacheCeilingMB != 256 {
		t.Errorf("cache settings = %d/%d", s.CacheCapacity, s.CacheCeilingMB)
	}
	if s.SyncInterval != 15*time.Minute {
		t.Errorf("SyncInterval = %v", s.SyncInterval)
	}
	if s.MetricsPort != 9090 {
		t.Errorf("MetricsPort = %d", s.MetricsPort)
	}
}

func TestLoadSubstitutesDefaultsOnBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   Key
		value interface{}
	}{
		{"empty database path", KeyDatabasePath, ""},
		{"zero cache capacity", KeyCacheCapacity, 0},
		{"negative ceiling", KeyCacheCeilingMB, -5},
		{"garbage interval", KeySyncInterval, "soon"},
		{"negative interval", KeySyncInterval, "-5m"},
		{"port out of range", KeyMetricsPort, 70000},
	}

	defaults := Defaults()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(string(tt.key), tt.value)

			s, errs := Load(v)
			if len(errs) != 1 {
				t.Fatalf("errors = %v, want exactly one", errs)
			}

			var cerr *ConfigError
			if !errors.As(errs[0], &cerr) {
				t.Fatalf("error type = %T, want *ConfigError", errs[0])
			}
			if cerr.Key != tt.key {
				t.Errorf("ConfigError.Key = %q, want %q", cerr.Key, tt.key)
			}

			// The rest of the settings stay at their defaults, including
			// the failed key.
			if s.DatabasePath != defaults.DatabasePath ||
				s.CacheCapacity != defaults.CacheCapacity ||
				s.CacheCeilingMB != defaults.CacheCeilingMB ||
				s.SyncInterval != defaults.SyncInterval ||
				s.MetricsPort != defaults.MetricsPort {
				t.Errorf("settings diverged from defaults: %+v", s)
			}
		})
	}
}

func TestNotifier(t *testing.T) {
	n := NewNotifier()

	var got []string
	tokenA := n.Subscribe(func(s Settings) { got = append(got, "a:"+s.DatabasePath) })
	n.Subscribe(func(s Settings) { got = append(got, "b:"+s.DatabasePath) })

	n.Publish(Settings{DatabasePath: "one.db"})
	if len(got) != 2 {
		t.Fatalf("callbacks fired = %d, want 2", len(got))
	}

	n.Unsubscribe(tokenA)
	got = nil
	n.Publish(Settings{DatabasePath: "two.db"})
	if len(got) != 1 || got[0] != "b:two.db" {
		t.Errorf("after unsubscribe got %v", got)
	}

	if n.Count() != 1 {
		t.Errorf("Count = %d, want 1", n.Count())
	}
}
