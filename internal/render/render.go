// Package render prepares generated text for delivery: splitting it to a
// transport's message limit and converting its Markdown to XHTML.
package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

// Chunk splits text into pieces of at most max runes. Splitting is on rune
// boundaries only, so every piece except the last is exactly max runes.
// A non-positive max returns text unsplit.
func Chunk(text string, max int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return []string{text}
	}

	chunks := make([]string, 0, (len(runes)+max-1)/max)
	for start := 0; start < len(runes); start += max {
		end := min(start+max, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

var md = goldmark.New(goldmark.WithRendererOptions(html.WithXHTML()))

// XHTML converts Markdown to a well-formed XHTML fragment. Raw HTML in the
// input is dropped.
func XHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return string(bytes.TrimSpace(buf.Bytes())), nil
}
