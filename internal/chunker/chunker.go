// Package chunker splits parsed documents into retrieval-sized chunks.
// Chunks target 200-500 whitespace tokens, split on sentence
// boundaries, with roughly 10% token overlap between neighbors. The
// synthetic filename chunk carries index -1 and no text span.
package chunker

import (
	"strings"

	"github.com/folder-mcp/folder-mcp/internal/parser"
)

// FilenameChunkIndex is the reserved index of the synthetic filename
// chunk.
const FilenameChunkIndex = -1

// Chunk is one unit of indexed text.
type Chunk struct {
	// Index is the 0-based position in the document; -1 marks the
	// synthetic filename chunk.
	Index int
	// Text is the chunk content. For the filename chunk this is the
	// tokenized filename, not document text.
	Text string
	// Tokens is the whitespace token count of Text.
	Tokens int
	// Heading is the nearest preceding heading, when the format has one.
	Heading string
	// Page is the source page of the chunk's first sentence (PDF).
	Page int
	// Sheet is the source sheet name (XLSX).
	Sheet string
}

// Config bounds chunk sizes.
type Config struct {
	MinTokens int
	MaxTokens int
	// Overlap is the fraction of a chunk's tokens repeated at the start
	// of the next chunk.
	Overlap float64
}

// DefaultConfig returns the tuned chunking parameters.
func DefaultConfig() Config {
	return Config{MinTokens: 200, MaxTokens: 500, Overlap: 0.10}
}

// Chunker splits documents.
type Chunker struct {
	cfg Config
}

// New creates a Chunker. Zero-valued config fields fall back to
// defaults.
func New(cfg Config) *Chunker {
	def := DefaultConfig()
	if cfg.MinTokens <= 0 {
		cfg.MinTokens = def.MinTokens
	}
	if cfg.MaxTokens <= cfg.MinTokens {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Overlap <= 0 || cfg.Overlap >= 1 {
		cfg.Overlap = def.Overlap
	}
	return &Chunker{cfg: cfg}
}

// unit is one indivisible span: a sentence, or a whole code/sheet
// block.
type unit struct {
	text    string
	tokens  int
	heading string
	page    int
	sheet   string
}

// Chunk splits a parsed document. The filename chunk is not included;
// callers add it via FilenameChunk.
func (c *Chunker) Chunk(doc *parser.Document) []Chunk {
	units := c.units(doc)
	if len(units) == 0 {
		return nil
	}

	var chunks []Chunk
	var cur []unit
	curTokens := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, c.assemble(len(chunks), cur))
		// Seed the next chunk with the trailing overlap window.
		overlapBudget := int(float64(curTokens) * c.cfg.Overlap)
		var carry []unit
		carried := 0
		for i := len(cur) - 1; i >= 0 && carried+cur[i].tokens <= overlapBudget; i-- {
			carry = append([]unit{cur[i]}, carry...)
			carried += cur[i].tokens
		}
		cur = carry
		curTokens = carried
	}

	for _, u := range units {
		// An oversized unit is hard-split on token boundaries.
		if u.tokens > c.cfg.MaxTokens {
			for _, piece := range splitOversized(u, c.cfg.MaxTokens) {
				if curTokens+piece.tokens > c.cfg.MaxTokens {
					flush()
					if curTokens+piece.tokens > c.cfg.MaxTokens {
						cur, curTokens = nil, 0 // overlap carry would overflow
					}
				}
				cur = append(cur, piece)
				curTokens += piece.tokens
			}
			continue
		}

		// Emit short rather than exceed the ceiling.
		if curTokens+u.tokens > c.cfg.MaxTokens {
			flush()
			if curTokens+u.tokens > c.cfg.MaxTokens {
				cur, curTokens = nil, 0 // overlap carry would overflow
			}
		}
		cur = append(cur, u)
		curTokens += u.tokens
	}

	// Final partial chunk, unless it is pure overlap carry.
	if curTokens > 0 && !isPureCarry(chunks, cur) {
		chunks = append(chunks, c.assemble(len(chunks), cur))
	}
	return chunks
}

// isPureCarry reports whether cur holds only the overlap tail of the
// previous chunk.
func isPureCarry(chunks []Chunk, cur []unit) bool {
	if len(chunks) == 0 {
		return false
	}
	var b strings.Builder
	for i, u := range cur {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(u.text)
	}
	return strings.HasSuffix(chunks[len(chunks)-1].Text, b.String())
}

func (c *Chunker) assemble(index int, units []unit) Chunk {
	var b strings.Builder
	tokens := 0
	for i, u := range units {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(u.text)
		tokens += u.tokens
	}
	first := units[0]
	return Chunk{
		Index:   index,
		Text:    b.String(),
		Tokens:  tokens,
		Heading: first.heading,
		Page:    first.page,
		Sheet:   first.sheet,
	}
}

// units flattens the document into indivisible spans.
func (c *Chunker) units(doc *parser.Document) []unit {
	var units []unit
	for _, block := range doc.Blocks {
		switch block.Kind {
		case parser.BlockCode, parser.BlockSheet, parser.BlockTable:
			// Structured blocks never split mid-unit below the ceiling.
			units = append(units, unit{
				text:    block.Text,
				tokens:  CountTokens(block.Text),
				heading: block.Heading,
				page:    block.Page,
				sheet:   block.Sheet,
			})
		default:
			for _, s := range SplitSentences(block.Text) {
				units = append(units, unit{
					text:    s,
					tokens:  CountTokens(s),
					heading: block.Heading,
					page:    block.Page,
					sheet:   block.Sheet,
				})
			}
		}
	}
	return units
}

// splitOversized hard-splits a unit into maxTokens-sized pieces.
func splitOversized(u unit, maxTokens int) []unit {
	fields := strings.Fields(u.text)
	var pieces []unit
	for start := 0; start < len(fields); start += maxTokens {
		end := start + maxTokens
		if end > len(fields) {
			end = len(fields)
		}
		pieces = append(pieces, unit{
			text:    strings.Join(fields[start:end], " "),
			tokens:  end - start,
			heading: u.heading,
			page:    u.page,
			sheet:   u.sheet,
		})
	}
	return pieces
}

// FilenameChunk builds the synthetic chunk that makes filenames
// first-class retrieval targets.
func FilenameChunk(relPath string) Chunk {
	text := FilenameText(relPath)
	return Chunk{
		Index:  FilenameChunkIndex,
		Text:   text,
		Tokens: CountTokens(text),
	}
}
