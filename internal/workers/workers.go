// Package workers sizes worker pools relative to the CPUs actually
// available to the process (GOMAXPROCS respects container limits).
package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count returns a worker count for a task type.
//
// The multiplier adjusts for task characteristics: 1.0 for CPU-bound work,
// 2.0 for I/O-bound work. The limit caps the result regardless of CPU
// count; use 0 for no cap. MANGASHELF_WORKERS overrides everything except
// the cap.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv("MANGASHELF_WORKERS"); override != "" {
		if n, err := strconv.Atoi(override); err == nil && n > 0 {
			if limit > 0 && n > limit {
				return limit
			}
			return n
		}
	}

	n := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

// ForCPU returns a worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns a worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}
