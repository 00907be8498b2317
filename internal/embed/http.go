package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	ferrors "github.com/folder-mcp/folder-mcp/internal/errors"
)

// HTTPEmbedder talks to an external embedding service over a minimal
// JSON API: POST {model, texts} -> {vectors, dimension}. The model
// runtime itself is opaque.
type HTTPEmbedder struct {
	endpoint string
	modelID  string
	dim      int
	threads  int
	client   *http.Client
}

type embedRequest struct {
	Model   string   `json:"model"`
	Texts   []string `json:"texts"`
	Threads int      `json:"threads,omitempty"`
}

type embedResponse struct {
	Vectors   [][]float32 `json:"vectors"`
	Dimension int         `json:"dimension"`
	Error     string      `json:"error,omitempty"`
}

// NewHTTPEmbedder creates a client for the embedding service. When dim
// is 0 the dimension is taken from the first response. threads, when
// positive, asks the service to bound its CPU use per request.
func NewHTTPEmbedder(endpoint, modelID string, dim, threads int) *HTTPEmbedder {
	return &HTTPEmbedder{
		endpoint: endpoint,
		modelID:  modelID,
		dim:      dim,
		threads:  threads,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *HTTPEmbedder) ModelID() string { return e.modelID }
func (e *HTTPEmbedder) Dimensions() int { return e.dim }
func (e *HTTPEmbedder) Close() error    { return nil }

func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.modelID, Texts: texts, Threads: e.threads})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeEmbeddingFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeEmbeddingFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeEmbeddingUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 256<<20))
	if err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeEmbeddingFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		code := ferrors.ErrCodeEmbeddingFailed
		if resp.StatusCode >= 500 {
			code = ferrors.ErrCodeEmbeddingUnavailable
		}
		return nil, ferrors.Newf(code,
			"embedding service returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed embedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeEmbeddingFailed, err)
	}
	if parsed.Error != "" {
		return nil, ferrors.Newf(ferrors.ErrCodeEmbeddingFailed, "embedding service: %s", parsed.Error)
	}
	if len(parsed.Vectors) != len(texts) {
		return nil, ferrors.Newf(ferrors.ErrCodeEmbeddingFailed,
			"service returned %d vectors for %d texts", len(parsed.Vectors), len(texts))
	}

	if e.dim == 0 && parsed.Dimension > 0 {
		e.dim = parsed.Dimension
	}
	for i, v := range parsed.Vectors {
		if e.dim > 0 && len(v) != e.dim {
			return nil, ferrors.Newf(ferrors.ErrCodeDimensionMismatch,
				"vector %d has dimension %d, want %d", i, len(v), e.dim)
		}
	}
	return parsed.Vectors, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
