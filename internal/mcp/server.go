package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/folder-mcp/folder-mcp/internal/config"
	"github.com/folder-mcp/folder-mcp/internal/pipeline"
	"github.com/folder-mcp/folder-mcp/internal/retrieval"
	"github.com/folder-mcp/folder-mcp/internal/telemetry"
	"github.com/folder-mcp/folder-mcp/pkg/version"
)

// Server bridges MCP clients with the per-folder indexing engines and
// the retrieval service.
type Server struct {
	mcp     *mcp.Server
	manager *pipeline.Manager
	service *retrieval.Service
	metrics *telemetry.QueryMetrics
	logger  *slog.Logger
}

// NewServer creates an MCP server over the given folder manager.
func NewServer(manager *pipeline.Manager, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if manager == nil {
		return nil, errors.New("folder manager is required")
	}
	if cfg == nil {
		cfg = config.New()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		manager: manager,
		service: retrieval.NewService(manager, cfg, logger),
		metrics: telemetry.NewQueryMetrics(),
		logger:  logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "folder-mcp",
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools
	)
	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// Serve runs the server over stdio until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server",
		slog.String("version", version.Version),
		slog.Int("folders", len(s.manager.List())))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_folders",
		Description: "List every indexed folder with document counts, the embedding model in use, and the folder's dominant topics. Start here to see what knowledge is available.",
	}, s.listFoldersHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the documents directly inside a folder or subfolder, each with its type, purpose, and top topics. Use subpath to descend one level at a time.",
	}, s.listDocumentsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "explore",
		Description: "Explore one level of a folder: its documents plus a semantic preview of each direct subfolder, so you can decide where to descend without opening anything.",
	}, s.exploreHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_document_outline",
		Description: "Get a document's structure and semantics: sections with headings, pages, or sheets, key phrases per section, and the document-level topic summary. Use before reading a large document.",
	}, s.outlineHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Semantic search across a folder's documents. Ranks by meaning, boosts filename matches, and falls back to exact keyword hits for terms embedding models tokenize poorly (acronyms, hyphenated identifiers). Every result explains why it matched.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "reindex",
		Description: "Run an indexing pass over a folder. Incremental by default (only changed files); set full to rebuild everything, for example after changing the embedding model.",
	}, s.reindexHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "status",
		Description: "Report a folder's index health: indexed and failed document counts, the recorded embedding model, and per-file failure records with error codes.",
	}, s.statusHandler)

	s.logger.Debug("MCP tools registered", slog.Int("count", 7))
}

func (s *Server) listFoldersHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ListFoldersInput) (
	*mcp.CallToolResult,
	ListFoldersOutput,
	error,
) {
	folders, err := s.service.ListFolders(ctx)
	if err != nil {
		return nil, ListFoldersOutput{}, MapError(err)
	}
	return nil, ListFoldersOutput{Folders: folders}, nil
}

func (s *Server) listDocumentsHandler(ctx context.Context, _ *mcp.CallToolRequest, input ListDocumentsInput) (
	*mcp.CallToolResult,
	*retrieval.Listing,
	error,
) {
	if input.Folder == "" {
		return nil, nil, NewInvalidParamsError("folder parameter is required")
	}

	listing, err := s.service.ListDocuments(ctx, input.Folder, input.Subpath)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, listing, nil
}

func (s *Server) exploreHandler(ctx context.Context, _ *mcp.CallToolRequest, input ExploreInput) (
	*mcp.CallToolResult,
	*retrieval.Exploration,
	error,
) {
	if input.Folder == "" {
		return nil, nil, NewInvalidParamsError("folder parameter is required")
	}

	ex, err := s.service.Explore(ctx, input.Folder, input.Subpath)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, ex, nil
}

func (s *Server) outlineHandler(ctx context.Context, _ *mcp.CallToolRequest, input OutlineInput) (
	*mcp.CallToolResult,
	*retrieval.Outline,
	error,
) {
	if input.Folder == "" {
		return nil, nil, NewInvalidParamsError("folder parameter is required")
	}
	if input.Path == "" {
		return nil, nil, NewInvalidParamsError("path parameter is required")
	}

	outline, err := s.service.GetDocumentOutline(ctx, input.Folder, input.Path)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, outline, nil
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	*retrieval.SearchAnswer,
	error,
) {
	if input.Folder == "" {
		return nil, nil, NewInvalidParamsError("folder parameter is required")
	}
	if input.Query == "" {
		return nil, nil, NewInvalidParamsError("query parameter is required")
	}

	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info("search started",
		slog.String("request_id", requestID),
		slog.String("folder", input.Folder),
		slog.String("query", input.Query))

	answer, err := s.service.Search(ctx, input.Folder, input.Query, input.Limit)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, nil, MapError(err)
	}

	matchTypes := make([]string, 0, len(answer.Results))
	for _, r := range answer.Results {
		matchTypes = append(matchTypes, r.MatchType)
	}
	s.metrics.Record(input.Query, matchTypes, duration)

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(answer.Results)))
	return nil, answer, nil
}

func (s *Server) reindexHandler(ctx context.Context, _ *mcp.CallToolRequest, input ReindexInput) (
	*mcp.CallToolResult,
	*ReindexOutput,
	error,
) {
	if input.Folder == "" {
		return nil, nil, NewInvalidParamsError("folder parameter is required")
	}

	eng, err := s.manager.Engine(input.Folder)
	if err != nil {
		return nil, nil, MapError(err)
	}

	out := &ReindexOutput{Folder: eng.Folder()}
	events, cancel := eng.Subscribe()
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for ev := range events {
			if ev.Type == pipeline.EventRunCompleted {
				out.Indexed = ev.Indexed
				out.Failed = ev.Failed
				out.Deleted = ev.Deleted
			}
		}
	}()

	start := time.Now()
	runErr := eng.Index(ctx, input.Full)
	cancel()
	<-collected
	out.DurationMS = time.Since(start).Milliseconds()

	if runErr != nil {
		return nil, nil, MapError(runErr)
	}
	return nil, out, nil
}

func (s *Server) statusHandler(ctx context.Context, _ *mcp.CallToolRequest, input StatusInput) (
	*mcp.CallToolResult,
	*StatusOutput,
	error,
) {
	if input.Folder == "" {
		return nil, nil, NewInvalidParamsError("folder parameter is required")
	}

	eng, err := s.manager.Engine(input.Folder)
	if err != nil {
		return nil, nil, MapError(err)
	}

	counts, err := eng.Status(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}
	failures, err := eng.Store().SQL().ListFailures(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}

	out := &StatusOutput{
		Folder:       eng.Folder(),
		Indexed:      counts.Indexed,
		Failed:       counts.Failed,
		Pending:      counts.Pending,
		ModelID:      counts.ModelID,
		Dimensions:   counts.Dimensions,
		LastUpdated:  counts.LastUpdated,
		QueryMetrics: s.metrics.Snapshot(),
	}
	for _, f := range failures {
		out.Failures = append(out.Failures, statusFailure(f))
	}
	return nil, out, nil
}

// generateRequestID creates a short random ID for request correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
