package document

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownParser normalizes markdown into the heading-delimited plain
// text the chunker consumes: heading lines are re-emitted as #-prefixed
// lines, block content becomes blank-line separated paragraphs, and
// inline markup is stripped.
type MarkdownParser struct{}

// NewMarkdownParser creates a markdown parser.
func NewMarkdownParser() Parser {
	return &MarkdownParser{}
}

// Parse parses a markdown file.
func (p *MarkdownParser) Parse(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open markdown file: %w", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}

// ParseReader parses markdown content from r.
func (p *MarkdownParser) ParseReader(r io.Reader, filename string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read markdown content: %w", err)
	}

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)
	doc := mdParser.Parse(content)

	return renderStructuredText(doc), nil
}

// renderStructuredText walks the AST and rebuilds a plain-text document
// that keeps heading markers and paragraph boundaries.
func renderStructuredText(doc ast.Node) string {
	var out strings.Builder
	var block strings.Builder

	flushBlock := func() {
		text := strings.TrimSpace(block.String())
		block.Reset()
		if text == "" {
			return
		}
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(text)
	}

	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.Heading:
			if entering {
				flushBlock()
				if out.Len() > 0 {
					out.WriteString("\n\n")
				}
				out.WriteString(strings.Repeat("#", n.Level))
				out.WriteString(" ")
				out.WriteString(inlineText(n))
			}
			return ast.SkipChildren

		case *ast.Paragraph:
			if !entering {
				flushBlock()
			}

		case *ast.ListItem:
			if entering {
				block.WriteString("- ")
			}

		case *ast.CodeBlock:
			if entering {
				flushBlock()
				block.WriteString(strings.TrimSpace(string(n.Literal)))
				flushBlock()
			}

		case *ast.Text:
			if entering {
				block.Write(n.Literal)
			}

		case *ast.Code:
			if entering {
				block.Write(n.Literal)
			}

		case *ast.Softbreak, *ast.Hardbreak:
			if entering {
				block.WriteString(" ")
			}
		}

		return ast.GoToNext
	})

	flushBlock()
	return strings.TrimSpace(out.String())
}

// inlineText collects the literal text under a node, ignoring markup.
func inlineText(node ast.Node) string {
	var b strings.Builder
	ast.WalkFunc(node, func(n ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch leaf := n.(type) {
		case *ast.Text:
			b.Write(leaf.Literal)
		case *ast.Code:
			b.Write(leaf.Literal)
		}
		return ast.GoToNext
	})
	return strings.TrimSpace(b.String())
}
