// Package preflight validates the environment before a folder is
// served: free disk space for the index, write access to the folder,
// and reachability of a configured embedding endpoint. Results are
// cached with a marker file under the folder's index directory so the
// checks run once, not on every startup.
package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/folder-mcp/folder-mcp/internal/config"
	"github.com/folder-mcp/folder-mcp/internal/output"
)

// CheckStatus is the outcome of a single check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult holds the outcome of one preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical reports whether this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker runs preflight checks for a folder.
type Checker struct {
	cfg     *config.Config
	verbose bool
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose includes check details when printing results.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) { c.verbose = verbose }
}

// New creates a Checker for the given folder configuration.
func New(cfg *config.Config, opts ...Option) *Checker {
	if cfg == nil {
		cfg = config.New()
	}
	c := &Checker{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check against the folder and returns the results.
func (c *Checker) RunAll(ctx context.Context, folder string) []CheckResult {
	return []CheckResult{
		c.CheckDiskSpace(folder),
		c.CheckWritePermissions(folder),
		c.CheckEmbedder(ctx),
	}
}

// HasCriticalFailures reports whether any required check failed.
func HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus condenses results into "ready", "ready_with_warnings",
// or "failed".
func SummaryStatus(results []CheckResult) string {
	status := "ready"
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status == StatusWarn || r.Status == StatusFail {
			status = "ready_with_warnings"
		}
	}
	return status
}

// PrintResults writes check results to the given writer.
func (c *Checker) PrintResults(w *output.Writer, folder string, results []CheckResult) {
	w.Header(fmt.Sprintf("preflight %s", folder))
	for _, r := range results {
		line := fmt.Sprintf("%s: %s", r.Name, r.Message)
		switch {
		case r.IsCritical():
			w.Error(line)
		case r.Status == StatusWarn || r.Status == StatusFail:
			w.Warning(line)
		default:
			w.Success(line)
		}
		if c.verbose && r.Details != "" {
			w.Printf("    %s\n", r.Details)
		}
	}
	w.Field("status", SummaryStatus(results))
}

// CheckWritePermissions verifies the folder accepts new files. The
// index directory lives inside the folder, so a read-only folder
// cannot be served.
func (c *Checker) CheckWritePermissions(folder string) CheckResult {
	result := CheckResult{
		Name:     "write_permissions",
		Required: true,
	}

	probe := filepath.Join(folder, ".folder-mcp-write-probe")
	f, err := os.Create(probe)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("folder is not writable: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(probe)

	result.Status = StatusPass
	result.Message = "folder is writable"
	return result
}
