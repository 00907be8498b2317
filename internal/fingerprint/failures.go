package fingerprint

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FailureRecord is one JSON line in the folder's failures.log. Files
// listed here were seen but could not be indexed; they are retried on
// the next run when their content changes.
type FailureRecord struct {
	Path      string    `json:"path"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Hash      string    `json:"hash,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FailureLog is an append-only JSON-lines log of indexing failures.
type FailureLog struct {
	path string

	mu sync.Mutex
}

// NewFailureLog creates a failure log at the given path.
func NewFailureLog(path string) *FailureLog {
	return &FailureLog{path: path}
}

// Append records a failure.
func (l *FailureLog) Append(rec FailureRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal failure record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open failure log: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append failure record: %w", err)
	}
	return nil
}

// Read returns all recorded failures. Malformed lines are skipped.
func (l *FailureLog) Read() ([]FailureRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open failure log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var records []FailureRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var rec FailureRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, sc.Err()
}

// Truncate clears the log. Called after a run that re-attempts the
// failed paths so stale entries do not accumulate.
func (l *FailureLog) Truncate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to truncate failure log: %w", err)
	}
	return nil
}
