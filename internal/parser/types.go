// Package parser extracts text and structure from documents. Each
// supported format has a dedicated extractor; the Dispatcher routes by
// extension and classifies failures.
package parser

import "context"

// BlockKind labels a structural unit of an extracted document.
type BlockKind string

const (
	BlockParagraph BlockKind = "paragraph"
	BlockHeading   BlockKind = "heading"
	BlockListItem  BlockKind = "list_item"
	BlockCode      BlockKind = "code"
	BlockTable     BlockKind = "table"
	BlockPage      BlockKind = "page"
	BlockSheet     BlockKind = "sheet"
)

// Block is one structural unit of extracted text. The chunker uses
// block boundaries as preferred split points and carries the heading
// context into chunk metadata.
type Block struct {
	Kind BlockKind
	Text string

	// Level is the heading depth for BlockHeading (1-6).
	Level int
	// Heading is the nearest preceding heading text, when known.
	Heading string
	// Page is the 1-based source page for paginated formats.
	Page int
	// Sheet is the sheet name for spreadsheet formats.
	Sheet string
}

// Document is the parsed form of one file.
type Document struct {
	// Path is the folder-relative path using forward slashes.
	Path string
	// Format is the normalized extension without the dot ("pdf", "md").
	Format string
	// Title is the best-effort document title (first heading or filename).
	Title string
	// Blocks hold the extracted text in document order.
	Blocks []Block
	// Metadata carries format-specific details (page count, sheet names).
	Metadata map[string]string
}

// Text returns the full extracted text with blocks joined by blank
// lines.
func (d *Document) Text() string {
	total := 0
	for _, b := range d.Blocks {
		total += len(b.Text) + 2
	}
	buf := make([]byte, 0, total)
	for i, b := range d.Blocks {
		if i > 0 {
			buf = append(buf, '\n', '\n')
		}
		buf = append(buf, b.Text...)
	}
	return string(buf)
}

// Extractor parses one family of file formats.
type Extractor interface {
	// Extensions returns the extensions this extractor handles, with dot.
	Extensions() []string
	// Extract parses the file at absPath.
	Extract(ctx context.Context, absPath string) (*Document, error)
}
