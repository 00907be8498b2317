package preflight

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// embedderProbeTimeout bounds the endpoint reachability probe.
const embedderProbeTimeout = 3 * time.Second

// CheckEmbedder verifies the configured embedding endpoint answers
// HTTP requests. With no endpoint configured the built-in embedder is
// used and there is nothing to probe. The check never blocks startup:
// an unreachable endpoint surfaces as per-document embedding failures
// later, with their own error codes.
func (c *Checker) CheckEmbedder(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "embedder",
		Required: false,
	}

	endpoint := c.cfg.Model.Endpoint
	if endpoint == "" {
		result.Status = StatusPass
		result.Message = "built-in embedder, no external service required"
		return result
	}

	probeCtx, cancel := context.WithTimeout(ctx, embedderProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("invalid endpoint %q: %v", endpoint, err)
		return result
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("endpoint unreachable: %v", err)
		result.Details = "documents will be recorded as embedding failures until the service is up"
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("endpoint returned %s", resp.Status)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("endpoint reachable (%s)", endpoint)
	return result
}
