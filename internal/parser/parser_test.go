package parser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/folder-mcp/folder-mcp/internal/errors"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDispatcher_ParseText(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "plan.txt", "First paragraph here.\n\nSecond paragraph follows.")

	doc, err := NewDispatcher().Parse(context.Background(), path, "plan.txt")
	require.NoError(t, err)

	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, BlockParagraph, doc.Blocks[0].Kind)
	assert.Equal(t, "First paragraph here.", doc.Blocks[0].Text)
	assert.Equal(t, "txt", doc.Format)
	assert.Equal(t, "plan.txt", doc.Title)
}

func TestDispatcher_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "photo.jpg", "\xff\xd8\xff")

	_, err := NewDispatcher().Parse(context.Background(), path, "photo.jpg")
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeUnsupportedFormat, ferrors.GetCode(err))
}

func TestDispatcher_BinaryMasquerade(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "fake.txt", "text\x00binary")

	_, err := NewDispatcher().Parse(context.Background(), path, "fake.txt")
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeSkippedBinary, ferrors.GetCode(err))
}

func TestDispatcher_BinaryDeepInFirstKilobyte(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("plausible text ", 55) + "\x00trailing"
	require.Greater(t, len(content), 512)
	path := write(t, dir, "deep.txt", content)

	_, err := NewDispatcher().Parse(context.Background(), path, "deep.txt")
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeSkippedBinary, ferrors.GetCode(err))
}

func TestDispatcher_MissingFile(t *testing.T) {
	_, err := NewDispatcher().Parse(context.Background(), "/nonexistent/gone.txt", "gone.txt")
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeFileUnreadable, ferrors.GetCode(err))
}

func TestDispatcher_EmptyDocumentFails(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "empty.txt", "   \n\n   ")

	_, err := NewDispatcher().Parse(context.Background(), path, "empty.txt")
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeParseFailed, ferrors.GetCode(err))
}

func TestMarkdown_HeadingsAndFences(t *testing.T) {
	dir := t.TempDir()
	content := `# Quarterly Report

Revenue grew in all regions.

## Methodology

We sampled weekly.

` + "```go\nfunc main() {}\n```" + `

Closing remarks.`
	path := write(t, dir, "report.md", content)

	doc, err := NewDispatcher().Parse(context.Background(), path, "report.md")
	require.NoError(t, err)

	assert.Equal(t, "Quarterly Report", doc.Title)

	var kinds []BlockKind
	for _, b := range doc.Blocks {
		kinds = append(kinds, b.Kind)
	}
	assert.Equal(t, []BlockKind{
		BlockHeading, BlockParagraph, BlockHeading, BlockParagraph, BlockCode, BlockParagraph,
	}, kinds)

	// Heading context propagates to following blocks.
	assert.Equal(t, "Methodology", doc.Blocks[3].Heading)
	assert.Equal(t, "Methodology", doc.Blocks[4].Heading)
	assert.Equal(t, 2, doc.Blocks[2].Level)
}

func TestMarkdown_UnterminatedFenceKept(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "broken.md", "intro\n\n```\ncode without closing fence")

	doc, err := NewDispatcher().Parse(context.Background(), path, "broken.md")
	require.NoError(t, err)

	last := doc.Blocks[len(doc.Blocks)-1]
	assert.Equal(t, BlockCode, last.Kind)
	assert.Contains(t, last.Text, "code without closing fence")
}

func TestSplitDocxParagraphs(t *testing.T) {
	xml := `<w:document><w:body>` +
		`<w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>world</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Second &amp; final</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	paras := splitDocxParagraphs(xml)
	require.Len(t, paras, 2)
	assert.Equal(t, "Hello world", paras[0])
	assert.Equal(t, "Second & final", paras[1])
}

func TestSupported(t *testing.T) {
	d := NewDispatcher()
	assert.True(t, d.Supported("a/b/report.PDF"))
	assert.True(t, d.Supported("notes.md"))
	assert.False(t, d.Supported("binary.exe"))
}
