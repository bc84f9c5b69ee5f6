package concept

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// EmbeddingText builds the text sent to the embedding provider for c.
// Markdown in the details is flattened to plain text.
func EmbeddingText(c Concept) string {
	parts := []string{strings.TrimSpace(c.Title)}
	if summary := strings.TrimSpace(c.Summary); summary != "" {
		parts = append(parts, summary)
	}
	for _, point := range c.KeyPoints {
		if point = strings.TrimSpace(point); point != "" {
			parts = append(parts, point)
		}
	}
	if details := PlainText(c.Details); details != "" {
		parts = append(parts, details)
	}
	return strings.Join(parts, "\n")
}

// PlainText strips markdown syntax from source, keeping the visible text
// with runs of whitespace collapsed.
func PlainText(source string) string {
	if strings.TrimSpace(source) == "" {
		return ""
	}
	src := []byte(source)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				buf.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				buf.Write(line.Value(src))
				buf.WriteByte(' ')
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(buf.String()), " ")
}
