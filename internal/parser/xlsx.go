package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// maxCellsPerSheet bounds extraction so a million-row export does not
// dominate the index.
const maxCellsPerSheet = 5000

// XlsxExtractor extracts per-sheet row text from Excel workbooks.
type XlsxExtractor struct{}

func (e *XlsxExtractor) Extensions() []string {
	return []string{".xlsx"}
}

func (e *XlsxExtractor) Extract(ctx context.Context, absPath string) (*Document, error) {
	f, err := excelize.OpenFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	doc := &Document{Metadata: make(map[string]string)}
	sheets := f.GetSheetList()
	doc.Metadata["sheets"] = strings.Join(sheets, ", ")

	for _, sheet := range sheets {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		var (
			lines []string
			cells int
		)
		flush := func() {
			if len(lines) == 0 {
				return
			}
			doc.Blocks = append(doc.Blocks, Block{
				Kind:  BlockSheet,
				Text:  strings.Join(lines, "\n"),
				Sheet: sheet,
			})
			lines = lines[:0]
		}

		for _, row := range rows {
			var fields []string
			for _, cell := range row {
				if c := strings.TrimSpace(cell); c != "" {
					fields = append(fields, c)
					cells++
				}
			}
			if len(fields) > 0 {
				lines = append(lines, strings.Join(fields, " | "))
			}
			// Keep blocks around paragraph scale so chunking stays even.
			if len(lines) >= 40 {
				flush()
			}
			if cells >= maxCellsPerSheet {
				break
			}
		}
		flush()
	}

	if len(doc.Blocks) == 0 {
		return nil, fmt.Errorf("no extractable text")
	}
	return doc, nil
}
