// Package fsutil provides filesystem operations with bounded retry for
// transient errors (locked files, momentary access denial, stale NFS
// handles). Permission errors are never retried.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"mangashelf/internal/logging"
	"mangashelf/internal/metrics"
)

// RetryConfig configures the retry loop.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig matches the relocation engine contract: up to 3
// attempts with exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// isTransient reports whether err is worth retrying. Text-level permission
// denials are deliberately excluded: EACCES surfaces immediately.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EBUSY, syscall.EAGAIN, syscall.ESTALE, syscall.EINTR:
			return true
		}
	}
	return false
}

// MoveWithRetry moves src to dst, retrying transient failures with
// exponential backoff. Rename is attempted first; a cross-device rename
// falls back to copy-then-remove.
func MoveWithRetry(src, dst string, config RetryConfig) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := move(src, dst)
		if err == nil {
			if attempt > 0 {
				logging.Info("Move succeeded on retry %d: %s", attempt, src)
			}
			return nil
		}

		lastErr = err
		if !isTransient(err) {
			return err
		}

		if attempt < config.MaxRetries {
			metrics.FSRetryAttempts.WithLabelValues("move").Inc()
			logging.Debug("Transient move failure for %s, retrying in %v (attempt %d/%d): %v",
				src, backoff, attempt+1, config.MaxRetries, err)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	metrics.FSRetryFailures.WithLabelValues("move").Inc()
	logging.Warn("Move failed after %d retries: %s -> %s: %v", config.MaxRetries, src, dst, lastErr)
	return lastErr
}

func move(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
		return copyAndRemove(src, dst)
	}
	return err
}

func copyAndRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}

	return os.Remove(src)
}

// ProbeWritable verifies dir accepts writes via a throwaway probe file.
func ProbeWritable(dir string) error {
	probe := filepath.Join(dir, ".mangashelf-probe")
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		return fmt.Errorf("destination not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		logging.Warn("failed to remove probe file %s: %v", probe, err)
	}
	return nil
}

// ProbeReadable verifies path can be opened for reading.
func ProbeReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("source not readable: %w", err)
	}
	return f.Close()
}
