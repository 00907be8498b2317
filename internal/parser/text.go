package parser

import (
	"context"
	"os"
	"strings"
)

// TextExtractor handles plain-text family formats. Paragraphs are
// split on blank lines.
type TextExtractor struct{}

func (e *TextExtractor) textFamily() {}

func (e *TextExtractor) Extensions() []string {
	return []string{".txt", ".rst", ".csv", ".json", ".yaml", ".yml"}
}

func (e *TextExtractor) Extract(_ context.Context, absPath string) (*Document, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	doc := &Document{Metadata: make(map[string]string)}
	for _, para := range SplitParagraphs(string(data)) {
		doc.Blocks = append(doc.Blocks, Block{Kind: BlockParagraph, Text: para})
	}
	return doc, nil
}

// SplitParagraphs splits text on blank lines, trimming whitespace and
// dropping empty runs. Line endings are normalized to \n.
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var paras []string
	for _, raw := range strings.Split(text, "\n\n") {
		p := strings.TrimSpace(raw)
		if p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}
