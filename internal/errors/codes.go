// Package errors provides structured error handling for folder-mcp.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Parse and ingest errors
//   - 3XX: Embedding and model errors
//   - 4XX: Query validation errors
//   - 5XX: Storage and internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryParse indicates document parse and ingest errors.
	CategoryParse Category = "PARSE"
	// CategoryEmbedding indicates embedding service errors.
	CategoryEmbedding Category = "EMBEDDING"
	// CategoryValidation indicates query validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryStorage indicates storage and internal errors.
	CategoryStorage Category = "STORAGE"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Parse and ingest errors (200-299)
	ErrCodeUnsupportedFormat = "ERR_201_UNSUPPORTED_FORMAT"
	ErrCodeSkippedBinary     = "ERR_202_SKIPPED_BINARY"
	ErrCodeParseFailed       = "ERR_203_PARSE_FAILED"
	ErrCodeChunkSemantic     = "ERR_204_CHUNK_SEMANTIC_FAILED"
	ErrCodeQualityFloor      = "ERR_205_QUALITY_BELOW_FLOOR"
	ErrCodeFileUnreadable    = "ERR_206_FILE_UNREADABLE"

	// Embedding errors (300-399)
	ErrCodeEmbeddingFailed      = "ERR_301_EMBEDDING_FAILED"
	ErrCodeEmbeddingUnavailable = "ERR_302_EMBEDDING_UNAVAILABLE"
	ErrCodeDimensionMismatch    = "ERR_303_DIMENSION_MISMATCH"

	// Query validation errors (400-499)
	ErrCodeQueryTooShort    = "ERR_401_QUERY_TOO_SHORT"
	ErrCodeQueryTooLong     = "ERR_402_QUERY_TOO_LONG"
	ErrCodeFolderNotIndexed = "ERR_403_FOLDER_NOT_INDEXED"
	ErrCodeDocumentNotFound = "ERR_404_DOCUMENT_NOT_FOUND"
	ErrCodeMissingSemantics = "ERR_405_MISSING_SEMANTICS"

	// Storage and internal errors (500-599)
	ErrCodeStorageIO = "ERR_501_STORAGE_IO"
	ErrCodeInternal  = "ERR_502_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryStorage
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryParse
	case '3':
		return CategoryEmbedding
	case '4':
		return CategoryValidation
	default:
		return CategoryStorage
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeConfigInvalid, ErrCodeConfigNotFound:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Embedding and storage I/O failures retry; parse and semantic failures
// do not (their inputs are deterministic).
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbeddingFailed, ErrCodeEmbeddingUnavailable, ErrCodeStorageIO:
		return true
	}
	return false
}
