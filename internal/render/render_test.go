package render

import (
	"encoding/xml"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		assert.Equal(t, []string{"hello"}, Chunk("hello", 10))
	})

	t.Run("exact limit is one chunk", func(t *testing.T) {
		assert.Len(t, Chunk(strings.Repeat("a", 10), 10), 1)
	})

	t.Run("two limits plus ten gives three chunks", func(t *testing.T) {
		const max = 4096
		chunks := Chunk(strings.Repeat("x", 2*max+10), max)
		require.Len(t, chunks, 3)
		assert.Len(t, chunks[0], max)
		assert.Len(t, chunks[1], max)
		assert.Len(t, chunks[2], 10)
	})

	t.Run("counts runes not bytes", func(t *testing.T) {
		chunks := Chunk(strings.Repeat("ж", 25), 10)
		require.Len(t, chunks, 3)
		assert.Equal(t, 10, utf8.RuneCountInString(chunks[0]))
		assert.Equal(t, 5, utf8.RuneCountInString(chunks[2]))
		assert.Equal(t, strings.Repeat("ж", 25), strings.Join(chunks, ""))
	})

	t.Run("empty text", func(t *testing.T) {
		assert.Nil(t, Chunk("", 10))
	})

	t.Run("no limit", func(t *testing.T) {
		assert.Len(t, Chunk(strings.Repeat("a", 100), 0), 1)
	})
}

func TestXHTML(t *testing.T) {
	out, err := XHTML("**Bold** and _soft_\n\n- one\n- two\n\nline one  \nline two")
	require.NoError(t, err)

	assert.Contains(t, out, "<strong>Bold</strong>")
	assert.Contains(t, out, "<em>soft</em>")
	assert.Contains(t, out, "<li>one</li>")
	assert.Contains(t, out, "<br />")

	// must be well-formed once wrapped in a body element
	var v struct{}
	assert.NoError(t, xml.Unmarshal([]byte("<body>"+out+"</body>"), &v))
}

func TestXHTML_DropsRawHTML(t *testing.T) {
	out, err := XHTML("hi <script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
}
