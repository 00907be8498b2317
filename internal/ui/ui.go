// Package ui renders indexing progress for CLI commands. Output is
// line-oriented so it behaves the same in terminals, pipes, and CI.
package ui

import (
	"os"
	"sync"

	"github.com/folder-mcp/folder-mcp/internal/output"
	"github.com/folder-mcp/folder-mcp/internal/pipeline"
)

// View prints one line per indexing event and a summary at the end.
type View struct {
	mu      sync.Mutex
	out     *output.Writer
	tracker *Tracker
	verbose bool
}

// NewView creates a view writing through out. With verbose set, every
// indexed file is printed; otherwise only failures and the summary.
func NewView(out *output.Writer, verbose bool) *View {
	return &View{out: out, tracker: NewTracker(), verbose: verbose}
}

// Handle consumes one pipeline event.
func (v *View) Handle(ev pipeline.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tracker.Observe(ev)

	switch ev.Type {
	case pipeline.EventScanStarted:
		v.out.Println("scanning " + ev.Folder)
	case pipeline.EventFileIndexed:
		if v.verbose {
			v.out.Println("  indexed " + ev.Path)
		}
	case pipeline.EventFileFailed:
		v.out.Warningf("failed %s: %s", ev.Path, ev.Error)
	case pipeline.EventFileDeleted:
		if v.verbose {
			v.out.Println("  removed " + ev.Path)
		}
	}
}

// Complete prints the run summary.
func (v *View) Complete() {
	v.mu.Lock()
	defer v.mu.Unlock()

	stats := v.tracker.Stats()
	if stats.Failed > 0 {
		v.out.Warningf("indexed %d, failed %d, removed %d in %s (%.1f files/sec)",
			stats.Indexed, stats.Failed, stats.Deleted, stats.Elapsed, stats.Rate)
		return
	}
	v.out.Successf("indexed %d, removed %d in %s (%.1f files/sec)",
		stats.Indexed, stats.Deleted, stats.Elapsed, stats.Rate)
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
