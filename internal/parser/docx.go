package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// DocxExtractor extracts paragraph text from Word documents.
type DocxExtractor struct{}

func (e *DocxExtractor) Extensions() []string {
	return []string{".docx"}
}

func (e *DocxExtractor) Extract(_ context.Context, absPath string) (*Document, error) {
	r, err := docx.ReadDocxFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx: %w", err)
	}
	defer func() { _ = r.Close() }()

	// GetContent returns the raw document.xml; paragraph boundaries are
	// the w:p elements.
	content := r.Editable().GetContent()

	doc := &Document{Metadata: make(map[string]string)}
	for _, para := range splitDocxParagraphs(content) {
		doc.Blocks = append(doc.Blocks, Block{Kind: BlockParagraph, Text: para})
	}
	if len(doc.Blocks) == 0 {
		return nil, fmt.Errorf("no extractable text")
	}
	return doc, nil
}

// splitDocxParagraphs pulls plain text out of WordprocessingML, one
// string per w:p element.
func splitDocxParagraphs(xml string) []string {
	var paras []string
	rest := xml
	for {
		start := strings.Index(rest, "<w:p")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], "</w:p>")
		if end < 0 {
			break
		}
		para := rest[start : start+end]
		rest = rest[start+end+len("</w:p>"):]

		text := strings.TrimSpace(stripTags(para))
		if text != "" {
			paras = append(paras, text)
		}
	}
	if len(paras) == 0 {
		if text := strings.TrimSpace(stripTags(xml)); text != "" {
			paras = append(paras, text)
		}
	}
	return paras
}

// stripTags removes XML elements, concatenating the text runs. Word
// splits runs mid-word, so no separator is inserted at tag boundaries.
func stripTags(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return unescapeEntities(b.String())
}

func unescapeEntities(s string) string {
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
	)
	return replacer.Replace(s)
}
