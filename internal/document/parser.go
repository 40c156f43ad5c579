package document

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// Parser extracts heading-delimited text from a flat source document.
// The output keeps markdown-style heading markers so the chunker can
// recover the section structure.
type Parser interface {
	// Parse reads the file at filePath and returns its text
	Parse(filePath string) (string, error)

	// ParseReader parses from r; filename determines the format
	ParseReader(r io.Reader, filename string) (string, error)
}

// ContentType identifies a source document format.
type ContentType string

const (
	// Markdown documents keep their headings as written
	Markdown ContentType = "markdown"
	// PlainText documents have no recoverable heading structure
	PlainText ContentType = "plaintext"
	// Unknown formats are rejected by the factory
	Unknown ContentType = "unknown"
)

// ErrUnsupportedType is returned for file formats the flat path cannot read.
var ErrUnsupportedType = errors.New("unsupported document type")

// ParserFactory picks a parser from the file extension.
func ParserFactory(filePath string) (Parser, error) {
	switch detectContentType(filePath) {
	case Markdown:
		return NewMarkdownParser(), nil
	case PlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, ErrUnsupportedType
	}
}

// detectContentType maps an extension to a content type.
func detectContentType(filePath string) ContentType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}
