// Package config loads mangashelf settings from a viper-backed config
// file into a typed Settings struct. The recognized keys are an explicit
// enum; a value that fails coercion produces a typed *ConfigError and the
// key's documented default is substituted explicitly.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"mangashelf/internal/logging"
)

// Key names one recognized setting.
type Key string

const (
	// KeyScanRoots is the ordered list of absolute scan-root directories,
	// each scanned non-recursively.
	KeyScanRoots Key = "scan_roots"
	// KeyDatabasePath locates the catalog file.
	KeyDatabasePath Key = "database_path"
	// KeyCacheCapacity bounds the display cache entry count.
	KeyCacheCapacity Key = "cache_capacity"
	// KeyCacheCeilingMB is the memory ceiling above which the display
	// cache is shrunk.
	KeyCacheCeilingMB Key = "cache_ceiling_mb"
	// KeySyncInterval is the watch-mode incremental scan interval.
	KeySyncInterval Key = "sync_interval"
	// KeyMetricsPort is the watch-mode metrics listener port (0 = off).
	KeyMetricsPort Key = "metrics_port"
)

// Keys returns every recognized key.
func Keys() []Key {
	return []Key{
		KeyScanRoots, KeyDatabasePath, KeyCacheCapacity,
		KeyCacheCeilingMB, KeySyncInterval, KeyMetricsPort,
	}
}

// Settings is the typed view of the configuration.
type Settings struct {
	ScanRoots      []string
	DatabasePath   string
	CacheCapacity  int
	CacheCeilingMB int
	SyncInterval   time.Duration
	MetricsPort    int
}

// Defaults returns the documented default for every setting.
func Defaults() Settings {
	return Settings{
		ScanRoots:      nil,
		DatabasePath:   "mangashelf.db",
		CacheCapacity:  300,
		CacheCeilingMB: 512,
		SyncInterval:   30 * time.Minute,
		MetricsPort:    0,
	}
}

// ConfigError reports a value that could not be coerced to its key's
// type. The key's default was substituted; the error exists so the caller
// can surface the substitution instead of hiding it.
type ConfigError struct {
	Key   Key
	Value interface{}
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config key %q: invalid value %v: %v", e.Key, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load reads Settings from v. Every coercion failure is collected as a
// *ConfigError while the default is substituted, so a damaged config file
// degrades per-key instead of failing the whole load.
func Load(v *viper.Viper) (Settings, []error) {
	s := Defaults()
	var errs []error

	recognized := make(map[string]bool, len(Keys()))
	for _, k := range Keys() {
		recognized[string(k)] = true
	}
	for _, k := range v.AllKeys() {
		if !recognized[k] {
			logging.Warn("Unrecognized config key ignored: %s", k)
		}
	}

	if v.IsSet(string(KeyScanRoots)) {
		s.ScanRoots = v.GetStringSlice(string(KeyScanRoots))
	}

	if v.IsSet(string(KeyDatabasePath)) {
		if p := v.GetString(string(KeyDatabasePath)); p != "" {
			s.DatabasePath = p
		} else {
			errs = append(errs, &ConfigError{Key: KeyDatabasePath, Value: "", Err: fmt.Errorf("empty path")})
		}
	}

	if v.IsSet(string(KeyCacheCapacity)) {
		if n := v.GetInt(string(KeyCacheCapacity)); n > 0 {
			s.CacheCapacity = n
		} else {
			errs = append(errs, &ConfigError{Key: KeyCacheCapacity, Value: v.Get(string(KeyCacheCapacity)), Err: fmt.Errorf("must be a positive integer")})
		}
	}

	if v.IsSet(string(KeyCacheCeilingMB)) {
		if n := v.GetInt(string(KeyCacheCeilingMB)); n > 0 {
			s.CacheCeilingMB = n
		} else {
			errs = append(errs, &ConfigError{Key: KeyCacheCeilingMB, Value: v.Get(string(KeyCacheCeilingMB)), Err: fmt.Errorf("must be a positive integer")})
		}
	}

	if v.IsSet(string(KeySyncInterval)) {
		raw := v.GetString(string(KeySyncInterval))
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			s.SyncInterval = d
		} else {
			errs = append(errs, &ConfigError{Key: KeySyncInterval, Value: raw, Err: fmt.Errorf("not a positive duration")})
		}
	}

	if v.IsSet(string(KeyMetricsPort)) {
		if n := v.GetInt(string(KeyMetricsPort)); n >= 0 && n <= 65535 {
			s.MetricsPort = n
		} else {
			errs = append(errs, &ConfigError{Key: KeyMetricsPort, Value: v.Get(string(KeyMetricsPort)), Err: fmt.Errorf("not a valid port")})
		}
	}

	return s, errs
}
