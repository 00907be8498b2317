// Package pipeline turns folder contents into a searchable index. Each
// folder gets an engine that scans, parses, chunks, extracts semantics,
// embeds, aggregates, and commits documents atomically; a manager
// composes engines across folders and serves the retrieval layer.
package pipeline

import (
	"sync"
	"time"
)

// Event types emitted during an indexing run.
const (
	EventScanStarted  = "scan_started"
	EventFileIndexed  = "file_indexed"
	EventFileFailed   = "file_failed"
	EventFileDeleted  = "file_deleted"
	EventRunCompleted = "run_completed"
)

// Event is one progress notification.
type Event struct {
	Type      string    `json:"type"`
	Folder    string    `json:"folder"`
	Path      string    `json:"path,omitempty"`
	Error     string    `json:"error,omitempty"`
	Indexed   int       `json:"indexed,omitempty"`
	Failed    int       `json:"failed,omitempty"`
	Deleted   int       `json:"deleted,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster fans events out to subscribers. Sends never block: a
// subscriber that stops draining loses events rather than stalling the
// pipeline.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener. The returned cancel function must be
// called to release the channel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, 64)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber.
func (b *Broadcaster) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
