package parser

import (
	"io"
	"path/filepath"
	"strings"
)

// Parser converts raw document bytes into the text that will be posted.
// Formats with block structure join their blocks with a blank line, so
// block ends become paragraph breaks for segmentation.
type Parser interface {
	Parse(r io.Reader, filename string) (string, error)
}

// Options tune individual parsers.
type Options struct {
	PDFFallbackPdftotext bool
}

// ForFile returns the appropriate parser for a filename. Anything that is
// not a recognised binary or markup format is read as plain text.
func ForFile(filename string, opts Options) Parser {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".html", ".htm":
		return &HTMLParser{}
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}
	case ".docx":
		return &DOCXParser{}
	default:
		return &TextParser{}
	}
}

// joinBlocks trims each block, drops empty ones and separates the rest
// with a blank line.
func joinBlocks(blocks []string) string {
	var sb strings.Builder
	for _, b := range blocks {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(b)
	}
	return sb.String()
}
