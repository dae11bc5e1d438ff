// Package progress carries operation progress to whatever front end is
// driving the core. Reports are coalesced so a fast producer cannot drown
// a slow sink.
package progress

import (
	"sync"
	"time"
)

// Report is one progress observation.
type Report struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Name    string `json:"name"`
	Status  string `json:"status"`
}

// Func receives progress reports. A nil Func is valid and discards them.
type Func func(Report)

// minInterval is the floor between forwarded reports.
const minInterval = 100 * time.Millisecond

// Reporter coalesces high-frequency reports down to at most one per
// minInterval, always delivering the final report on Flush.
type Reporter struct {
	sink Func

	mu       sync.Mutex
	last     time.Time
	pending  *Report
	interval time.Duration
}

// NewReporter wraps sink in a coalescing reporter. sink may be nil.
func NewReporter(sink Func) *Reporter {
	return &Reporter{sink: sink, interval: minInterval}
}

// Send forwards r if enough time has passed since the previous forward,
// otherwise remembers it as pending.
func (r *Reporter) Send(rep Report) {
	if r == nil || r.sink == nil {
		return
	}

	r.mu.Lock()
	now := time.Now()
	if now.Sub(r.last) < r.interval {
		r.pending = &rep
		r.mu.Unlock()
		return
	}
	r.last = now
	r.pending = nil
	r.mu.Unlock()

	r.sink(rep)
}

// Flush delivers the most recent pending report, if any. Call once at the
// end of an operation so the sink always sees the final state.
func (r *Reporter) Flush() {
	if r == nil || r.sink == nil {
		return
	}

	r.mu.Lock()
	rep := r.pending
	r.pending = nil
	r.last = time.Now()
	r.mu.Unlock()

	if rep != nil {
		r.sink(*rep)
	}
}
