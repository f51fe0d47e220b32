// Package render turns segment text into the string sent to the platform.
package render

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/yuin/goldmark"
)

// Renderer converts post text before it is measured and published.
type Renderer interface {
	Render(text string) (string, error)
	// ContentType is sent with each status so the platform knows how to
	// interpret the rendered text.
	ContentType() string
}

// ForFormat returns the renderer for a RENDER_FORMAT value.
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "", "plain":
		return Plain{}, nil
	case "html":
		return NewHTML(), nil
	default:
		return nil, fmt.Errorf("unknown render format: %s", format)
	}
}

// Plain passes text through unchanged.
type Plain struct{}

func (Plain) Render(text string) (string, error) { return text, nil }

func (Plain) ContentType() string { return "text/plain" }

// HTML renders markdown to HTML with goldmark.
type HTML struct {
	md goldmark.Markdown
}

func NewHTML() *HTML {
	return &HTML{md: goldmark.New()}
}

func (h *HTML) Render(text string) (string, error) {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func (h *HTML) ContentType() string { return "text/html" }

// Measure returns a length function counting the runes of the rendered
// text. Text that fails to render is counted as written.
func Measure(r Renderer) func(string) int {
	return func(text string) int {
		out, err := r.Render(text)
		if err != nil {
			out = text
		}
		return utf8.RuneCountInString(out)
	}
}
