// Package frontmatter reads the per-run options block that may open a
// document. YAML blocks are fenced by "---" lines, TOML blocks by "+++".
package frontmatter

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Options are the per-document choices a writer can make in front matter.
type Options struct {
	ContentWarning string // Shown as the spoiler text on every post.
	Language       string // Overrides the configured post language.
	Visibility     string // Overrides the thread root's visibility.
}

// IsZero reports whether no option was set.
func (o Options) IsZero() bool {
	return o == Options{}
}

// fields is the decoding target; several spellings of the content
// warning are accepted.
type fields struct {
	ContentNotice      string `yaml:"content-notice" toml:"content-notice"`
	ContentWarning     string `yaml:"content-warning" toml:"content-warning"`
	ContentNoticeSnake string `yaml:"content_notice" toml:"content_notice"`
	ContentWarnSnake   string `yaml:"content_warning" toml:"content_warning"`
	CW                 string `yaml:"cw" toml:"cw"`
	Spoiler            string `yaml:"spoiler" toml:"spoiler"`
	Language           string `yaml:"language" toml:"language"`
	Visibility         string `yaml:"visibility" toml:"visibility"`
}

// DecodeError reports a metadata block that was found but could not be
// decoded. The block is still stripped from the body.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s front matter: %s", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var delimiters = map[string]string{
	"---": "yaml",
	"+++": "toml",
}

// Split separates the leading metadata block from the body. A document
// without a block is returned unchanged with zero Options. A block that
// fails to decode yields zero Options and a *DecodeError.
func Split(raw string) (Options, string, error) {
	block, format, body, ok := locate(raw)
	if !ok {
		return Options{}, raw, nil
	}

	var f fields
	var err error
	switch format {
	case "yaml":
		err = yaml.Unmarshal([]byte(block), &f)
	case "toml":
		_, err = toml.Decode(block, &f)
	}
	if err != nil {
		return Options{}, body, &DecodeError{Format: format, Err: err}
	}

	opts, err := f.options()
	if err != nil {
		return Options{}, body, &DecodeError{Format: format, Err: err}
	}
	return opts, body, nil
}

// Extract returns the options in raw's metadata block, or zero Options.
func Extract(raw string) Options {
	opts, _, _ := Split(raw)
	return opts
}

// Strip returns raw without its metadata block.
func Strip(raw string) string {
	_, body, _ := Split(raw)
	return body
}

func (f fields) options() (Options, error) {
	cw := firstNonEmpty(f.ContentNotice, f.ContentWarning,
		f.ContentNoticeSnake, f.ContentWarnSnake, f.CW, f.Spoiler)
	opts := Options{
		ContentWarning: cw,
		Language:       strings.TrimSpace(f.Language),
		Visibility:     strings.ToLower(strings.TrimSpace(f.Visibility)),
	}
	switch opts.Visibility {
	case "", "public", "unlisted", "private":
	default:
		return Options{}, fmt.Errorf("unknown visibility %q", f.Visibility)
	}
	return opts, nil
}

// locate finds a block that opens on the first line and closes on a
// later line holding the same delimiter.
func locate(raw string) (block, format, body string, ok bool) {
	first, rest, found := strings.Cut(raw, "\n")
	if !found {
		return "", "", raw, false
	}
	delim := strings.TrimRight(first, " \t\r")
	format, known := delimiters[delim]
	if !known {
		return "", "", raw, false
	}

	offset := 0
	for offset <= len(rest) {
		line, _, more := strings.Cut(rest[offset:], "\n")
		if strings.TrimRight(line, " \t\r") == delim {
			end := offset + len(line)
			if more {
				end++
			}
			return rest[:offset], format, rest[end:], true
		}
		if !more {
			break
		}
		offset += len(line) + 1
	}
	return "", "", raw, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
