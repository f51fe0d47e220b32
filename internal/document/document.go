// Package document turns an input file into the canonical text that is
// segmented, along with the options found in its front matter.
package document

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dgallion1/threadpost/internal/frontmatter"
	"github.com/dgallion1/threadpost/internal/parser"
)

// ErrUnreadable marks input errors: the document could not be read or
// parsed.
var ErrUnreadable = errors.New("document unreadable")

// Document is a normalized input, ready for segmentation.
type Document struct {
	Path    string
	Options frontmatter.Options
	Text    string
}

// Load reads path with the parser for its extension and normalizes the
// result. A front matter block that fails to decode is not fatal; its
// *frontmatter.DecodeError is returned alongside the document.
func Load(path string, opts parser.Options) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	defer f.Close()

	raw, err := parser.ForFile(path, opts).Parse(f, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	options, text, err := Normalize(raw)
	return &Document{Path: path, Options: options, Text: text}, err
}

// Normalize removes carriage returns and the metadata block, and trims
// surrounding whitespace.
func Normalize(raw string) (frontmatter.Options, string, error) {
	raw = strings.ReplaceAll(raw, "\r", "")
	opts, body, err := frontmatter.Split(raw)
	return opts, strings.TrimSpace(body), err
}
