package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Success_PrintsMarkerAndMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Success("Index complete")

	out := buf.String()
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "Index complete")
	assert.NotContains(t, out, "\x1b[", "plain writer must not emit ANSI codes")
}

func TestWriter_WarningAndError(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Warningf("%d documents failed", 3)
	w.Error("storage unavailable")

	out := buf.String()
	assert.Contains(t, out, "warn 3 documents failed")
	assert.Contains(t, out, "error storage unavailable")
}

func TestWriter_FieldAligns(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Header("Index")
	w.Field("indexed", 42)
	w.Field("model", "e5-large-v2")

	out := buf.String()
	assert.Contains(t, out, "Index\n")
	assert.Contains(t, out, "indexed:")
	assert.Contains(t, out, "e5-large-v2")
}

func TestWriter_Progress_PrintsPercent(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Progress(50, 100, "indexing files")

	out := buf.String()
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "indexing files")
}

func TestWriter_Progress_ZeroTotalNoOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Progress(0, 0, "processing")
	assert.Empty(t, buf.String())
}

func TestIsTerminal_FalseForBuffer(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
	assert.False(t, IsTerminal(nil))
}

func TestHighlight_PlainWriterPassesThrough(t *testing.T) {
	w := New(&bytes.Buffer{})
	assert.Equal(t, "budget.md", w.Highlight("budget.md"))
}

func TestProgressBar_Render(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		total    int
		width    int
		wantFull int
	}{
		{"0 percent", 0, 100, 10, 0},
		{"50 percent", 50, 100, 10, 5},
		{"100 percent", 100, 100, 10, 10},
		{"25 percent", 25, 100, 20, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := renderProgressBar(tt.current, tt.total, tt.width)
			assert.Equal(t, tt.wantFull, strings.Count(bar, "█"))
			assert.Equal(t, tt.width, len([]rune(bar)))
		})
	}
}
