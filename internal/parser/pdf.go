package parser

import (
	"context"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor extracts per-page text from PDF files.
type PDFExtractor struct{}

func (e *PDFExtractor) Extensions() []string {
	return []string{".pdf"}
}

func (e *PDFExtractor) Extract(ctx context.Context, absPath string) (*Document, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	doc := &Document{Metadata: make(map[string]string)}
	totalPages := reader.NumPage()
	doc.Metadata["pages"] = fmt.Sprintf("%d", totalPages)

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unextractable page degrades, not fails.
			continue
		}

		for _, para := range SplitParagraphs(text) {
			doc.Blocks = append(doc.Blocks, Block{Kind: BlockPage, Text: para, Page: pageNum})
		}
	}

	if len(doc.Blocks) == 0 {
		return nil, fmt.Errorf("no extractable text in %d pages", totalPages)
	}
	return doc, nil
}
