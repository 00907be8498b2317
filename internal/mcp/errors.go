// Package mcp exposes folder indexing and retrieval over the Model
// Context Protocol. One server fronts every registered folder; each
// operation is a typed MCP tool.
package mcp

import (
	"context"
	"errors"
	"fmt"

	ferrors "github.com/folder-mcp/folder-mcp/internal/errors"
)

// Custom MCP error codes for folder-mcp.
const (
	// ErrCodeFolderNotIndexed indicates the folder is not registered or
	// has no index yet.
	ErrCodeFolderNotIndexed = -32001

	// ErrCodeEmbeddingFailed indicates query embedding failed.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was cancelled.
	ErrCodeTimeout = -32003

	// ErrCodeDocumentNotFound indicates the document is not in the index.
	ErrCodeDocumentNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors. Structured index
// errors map by code; everything else is an internal error.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var ie *ferrors.IndexError
	if errors.As(err, &ie) {
		return mapIndexError(ie)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a
// custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// mapIndexError converts a structured index error to an MCPError. The
// internal code travels in the message so clients can still tell
// ERR_401 from ERR_402.
func mapIndexError(ie *ferrors.IndexError) *MCPError {
	message := ie.Error()

	switch ie.Code {
	case ferrors.ErrCodeQueryTooShort, ferrors.ErrCodeQueryTooLong:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case ferrors.ErrCodeFolderNotIndexed:
		return &MCPError{Code: ErrCodeFolderNotIndexed, Message: message}
	case ferrors.ErrCodeDocumentNotFound:
		return &MCPError{Code: ErrCodeDocumentNotFound, Message: message}
	}

	switch ie.Category {
	case ferrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case ferrors.CategoryEmbedding:
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: message}
	default:
		// Missing semantics, storage, config: nothing the caller can fix
		// by changing parameters.
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
