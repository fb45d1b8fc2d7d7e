package sectionsource

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/example/diagram-agent/internal/models"
)

// SplitMarkdown splits a markdown document into sections at headings of level
// 1–3, carrying code/table flags for the planner.
func SplitMarkdown(src []byte) []models.Section {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	var sections []models.Section
	var cur models.Section
	var body strings.Builder

	flush := func() {
		cur.Text = strings.TrimSpace(body.String())
		if cur.Text != "" || cur.Heading != "" {
			sections = append(sections, cur)
		}
		cur = models.Section{}
		body.Reset()
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level <= 3 {
			flush()
			cur.Heading = strings.TrimSpace(nodeText(h, src))
			continue
		}
		switch n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			cur.Flags.HasCode = true
		case *east.Table:
			cur.Flags.HasTable = true
		}
		if containsImage(n) {
			cur.Flags.HasFigure = true
		}
		if t := nodeText(n, src); t != "" {
			body.WriteString(t)
			body.WriteString("\n")
		}
	}
	flush()
	return Normalize(sections)
}

// containsImage walks one block; images live inline under paragraphs.
func containsImage(n ast.Node) bool {
	found := false
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if _, ok := c.(*ast.Image); ok {
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}

func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := c.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
