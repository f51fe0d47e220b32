package parser

import (
	"fmt"
	"io"
)

// TextParser handles plain text and markdown. The text is returned as
// written; front matter and line endings are left for normalization.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (string, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filename, err)
	}
	return string(src), nil
}
