package ui

import (
	"sync"
	"time"

	"github.com/folder-mcp/folder-mcp/internal/pipeline"
)

// rateSmoothingFactor weights new rate samples against the running
// average so per-batch variance does not make the display jump.
const rateSmoothingFactor = 0.3

// Tracker accumulates run statistics from pipeline events. Safe for
// concurrent use.
type Tracker struct {
	mu      sync.Mutex
	start   time.Time
	indexed int
	failed  int
	deleted int

	lastCount int
	lastCalc  time.Time
	rate      float64
}

// RunStats is a snapshot of one indexing run.
type RunStats struct {
	Indexed int
	Failed  int
	Deleted int
	Elapsed time.Duration
	Rate    float64 // files per second, smoothed
}

// NewTracker creates a tracker starting now.
func NewTracker() *Tracker {
	now := time.Now()
	return &Tracker{start: now, lastCalc: now}
}

// Observe records one pipeline event.
func (t *Tracker) Observe(ev pipeline.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Type {
	case pipeline.EventFileIndexed:
		t.indexed++
	case pipeline.EventFileFailed:
		t.failed++
	case pipeline.EventFileDeleted:
		t.deleted++
	case pipeline.EventRunCompleted:
		// Counters in the completion event are authoritative; events may
		// have been dropped under load.
		t.indexed = ev.Indexed
		t.failed = ev.Failed
		t.deleted = ev.Deleted
	default:
		return
	}

	t.updateRate()
}

// updateRate recomputes the smoothed files/sec, sampled at most every
// 500ms to avoid noise. Must be called with the lock held.
func (t *Tracker) updateRate() {
	now := time.Now()
	elapsed := now.Sub(t.lastCalc)
	if elapsed < 500*time.Millisecond {
		return
	}

	processed := t.indexed + t.failed
	delta := processed - t.lastCount
	if delta > 0 {
		sample := float64(delta) / elapsed.Seconds()
		if t.rate == 0 {
			t.rate = sample
		} else {
			t.rate = rateSmoothingFactor*sample + (1-rateSmoothingFactor)*t.rate
		}
	}
	t.lastCount = processed
	t.lastCalc = now
}

// Stats returns the current snapshot. The rate falls back to the whole
// run average when too few samples accumulated for smoothing.
func (t *Tracker) Stats() RunStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.start).Round(10 * time.Millisecond)
	rate := t.rate
	if rate == 0 && elapsed > 0 {
		rate = float64(t.indexed+t.failed) / elapsed.Seconds()
	}

	return RunStats{
		Indexed: t.indexed,
		Failed:  t.failed,
		Deleted: t.deleted,
		Elapsed: elapsed,
		Rate:    rate,
	}
}
