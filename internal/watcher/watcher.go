// Package watcher detects folder changes and triggers incremental
// indexing runs. Raw fsnotify events are filtered through the same
// include/ignore rules the scanner uses, then debounced so editor save
// storms collapse into one run.
package watcher

import (
	"time"
)

// Operation classifies a file system event.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one filtered, coalesced change.
type FileEvent struct {
	// Path is folder-relative with forward slashes.
	Path      string
	Operation Operation
	Timestamp time.Time
}
