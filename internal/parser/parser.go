package parser

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	ferrors "github.com/folder-mcp/folder-mcp/internal/errors"
)

// Dispatcher routes files to format extractors and classifies failures
// into indexing error codes.
type Dispatcher struct {
	byExt map[string]Extractor
}

// NewDispatcher creates a dispatcher with all built-in extractors
// registered.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{byExt: make(map[string]Extractor)}
	d.Register(&TextExtractor{})
	d.Register(&MarkdownExtractor{})
	d.Register(&PDFExtractor{})
	d.Register(&DocxExtractor{})
	d.Register(&XlsxExtractor{})
	return d
}

// Register adds an extractor for its declared extensions. Later
// registrations win on conflict.
func (d *Dispatcher) Register(e Extractor) {
	for _, ext := range e.Extensions() {
		d.byExt[strings.ToLower(ext)] = e
	}
}

// Supported reports whether the dispatcher has an extractor for the
// path's extension.
func (d *Dispatcher) Supported(path string) bool {
	_, ok := d.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Parse extracts a document from absPath. The returned Document's Path
// is set to relPath. Failures come back as IndexErrors:
//
//	ERR_201 unsupported extension
//	ERR_202 binary content in a text format
//	ERR_203 extractor failure
//	ERR_206 file unreadable
func (d *Dispatcher) Parse(ctx context.Context, absPath, relPath string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(absPath))

	extractor, ok := d.byExt[ext]
	if !ok {
		return nil, ferrors.New(ferrors.ErrCodeUnsupportedFormat,
			"no extractor for extension", nil).WithDetail("path", relPath).WithDetail("ext", ext)
	}

	if _, err := os.Stat(absPath); err != nil {
		return nil, ferrors.Wrap(ferrors.ErrCodeFileUnreadable, err).WithDetail("path", relPath)
	}

	// Text-family formats must not contain NUL bytes; a renamed binary
	// is skipped, not failed.
	if _, isText := extractor.(interface{ textFamily() }); isText {
		binary, err := sniffBinary(absPath)
		if err != nil {
			return nil, ferrors.Wrap(ferrors.ErrCodeFileUnreadable, err).WithDetail("path", relPath)
		}
		if binary {
			return nil, ferrors.New(ferrors.ErrCodeSkippedBinary,
				"binary content in text extension", nil).WithDetail("path", relPath)
		}
	}

	doc, err := extractor.Extract(ctx, absPath)
	if err != nil {
		if ferrors.GetCode(err) != "" {
			return nil, err
		}
		return nil, ferrors.Wrap(ferrors.ErrCodeParseFailed, err).WithDetail("path", relPath)
	}

	doc.Path = filepath.ToSlash(relPath)
	doc.Format = strings.TrimPrefix(ext, ".")
	if doc.Title == "" {
		doc.Title = filepath.Base(relPath)
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]string)
	}
	if len(doc.Blocks) == 0 {
		return nil, ferrors.New(ferrors.ErrCodeParseFailed,
			"document contains no extractable text", nil).WithDetail("path", relPath)
	}
	return doc, nil
}

// sniffBinary checks the first kilobyte for NUL.
func sniffBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 1024)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false, err
	}
	return bytes.IndexByte(buf[:n], 0) >= 0, nil
}
