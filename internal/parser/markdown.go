package parser

import (
	"context"
	"os"
	"strings"
)

// MarkdownExtractor parses markdown into heading-aware blocks. Fenced
// code blocks are kept whole so the chunker never splits mid-fence.
type MarkdownExtractor struct{}

func (e *MarkdownExtractor) textFamily() {}

func (e *MarkdownExtractor) Extensions() []string {
	return []string{".md", ".markdown"}
}

func (e *MarkdownExtractor) Extract(_ context.Context, absPath string) (*Document, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	doc := &Document{Metadata: make(map[string]string)}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	var (
		heading   string
		paragraph []string
		codeFence []string
		inFence   bool
	)

	flushParagraph := func() {
		if len(paragraph) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(paragraph, "\n"))
		paragraph = paragraph[:0]
		if text == "" {
			return
		}
		kind := BlockParagraph
		if strings.HasPrefix(text, "- ") || strings.HasPrefix(text, "* ") || strings.HasPrefix(text, "1. ") {
			kind = BlockListItem
		}
		doc.Blocks = append(doc.Blocks, Block{Kind: kind, Text: text, Heading: heading})
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			if inFence {
				codeFence = append(codeFence, line)
				doc.Blocks = append(doc.Blocks, Block{
					Kind:    BlockCode,
					Text:    strings.Join(codeFence, "\n"),
					Heading: heading,
				})
				codeFence = codeFence[:0]
				inFence = false
			} else {
				flushParagraph()
				inFence = true
				codeFence = append(codeFence, line)
			}
			continue
		}
		if inFence {
			codeFence = append(codeFence, line)
			continue
		}

		if level := headingLevel(trimmed); level > 0 {
			flushParagraph()
			text := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			heading = text
			if doc.Title == "" && level == 1 {
				doc.Title = text
			}
			doc.Blocks = append(doc.Blocks, Block{Kind: BlockHeading, Text: text, Level: level, Heading: text})
			continue
		}

		if trimmed == "" {
			flushParagraph()
			continue
		}
		paragraph = append(paragraph, line)
	}

	// Unterminated fence: keep what we collected.
	if inFence && len(codeFence) > 0 {
		doc.Blocks = append(doc.Blocks, Block{Kind: BlockCode, Text: strings.Join(codeFence, "\n"), Heading: heading})
	}
	flushParagraph()

	return doc, nil
}

func headingLevel(line string) int {
	if !strings.HasPrefix(line, "#") {
		return 0
	}
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level > 6 || level >= len(line) || line[level] != ' ' {
		return 0
	}
	return level
}
