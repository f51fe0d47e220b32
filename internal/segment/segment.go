// Package segment splits a document into numbered posts that each fit a
// character limit.
package segment

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Config controls segmentation.
type Config struct {
	// EstimateFactor scales the naive post count estimate that sizes the
	// numbering suffix while packing.
	EstimateFactor float64
	// Measure returns the length the platform will count for a post.
	Measure func(string) int
}

// DefaultConfig returns the factor used by earlier releases and a rune
// counting measure.
func DefaultConfig() Config {
	return Config{
		EstimateFactor: 1.5,
		Measure:        utf8.RuneCountInString,
	}
}

// Span is a minimal run of text between two adjacent split points.
type Span struct {
	Start, End int
}

// Segment is one post's worth of the document.
type Segment struct {
	Index int    // 1-based position in the thread.
	Count int    // Number of segments in the thread.
	Body  string // Source text, including trailing whitespace.
}

// Suffix is the numbering appended to the post, e.g. " (2/7)".
func (s Segment) Suffix() string {
	return " (" + strconv.Itoa(s.Index) + "/" + strconv.Itoa(s.Count) + ")"
}

// Text is the post as published: the body without surrounding
// whitespace, followed by the suffix.
func (s Segment) Text() string {
	return strings.TrimSpace(s.Body) + s.Suffix()
}

// Splitter packs documents into segments. Construct one per process and
// reuse it.
type Splitter struct {
	cfg    Config
	bounds boundaries
}

func NewSplitter(cfg Config) *Splitter {
	def := DefaultConfig()
	if cfg.EstimateFactor <= 0 {
		cfg.EstimateFactor = def.EstimateFactor
	}
	if cfg.Measure == nil {
		cfg.Measure = def.Measure
	}
	return &Splitter{cfg: cfg, bounds: newBoundaries()}
}

// SplitPoints returns the offsets of every sentence and paragraph boundary
// in doc, ending with len(doc).
func (s *Splitter) SplitPoints(doc string) []int {
	return s.bounds.points(doc)
}

// Spans partitions doc at its split points.
func (s *Splitter) Spans(doc string) []Span {
	points := s.SplitPoints(doc)
	spans := make([]Span, 0, len(points))
	start := 0
	for _, p := range points {
		spans = append(spans, Span{Start: start, End: p})
		start = p
	}
	return spans
}

// Estimate returns the expected number of posts for doc. It only sizes
// the suffix while packing.
func (s *Splitter) Estimate(doc string, limit int) int {
	n := int(math.Ceil(s.cfg.EstimateFactor * float64(s.cfg.Measure(doc)) / float64(limit)))
	if n < 1 {
		n = 1
	}
	return n
}

// Split greedily packs doc into the fewest segments whose text, suffix
// included, stays within limit. A span that alone exceeds limit becomes
// its own oversized segment; Validate reports it.
func (s *Splitter) Split(doc string, limit int) ([]Segment, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("character limit must be positive, got %d", limit)
	}
	spans := s.Spans(doc)
	if len(spans) == 0 {
		return nil, nil
	}

	estimate := s.Estimate(doc, limit)
	bodies := s.pack(doc, spans, limit, estimate)

	// A count with more digits than the estimate makes every suffix longer
	// than was budgeted for. Pack again with the real count.
	for i := 0; i < 3; i++ {
		if digits(len(bodies)) <= digits(estimate) {
			break
		}
		estimate = len(bodies)
		bodies = s.pack(doc, spans, limit, estimate)
	}

	segments := make([]Segment, len(bodies))
	for i, body := range bodies {
		segments[i] = Segment{Index: i + 1, Count: len(bodies), Body: body}
	}
	return segments, nil
}

func (s *Splitter) pack(doc string, spans []Span, limit, estimate int) []string {
	var bodies []string
	start, end := spans[0].Start, spans[0].Start

	for _, sp := range spans {
		if s.fits(doc[start:sp.End], len(bodies)+1, estimate, limit) {
			end = sp.End
			continue
		}
		// Leading whitespace alone is never a post; keep it with what follows.
		if strings.TrimSpace(doc[start:end]) == "" {
			end = sp.End
			continue
		}
		bodies = append(bodies, doc[start:end])
		start, end = sp.Start, sp.End
	}
	if end > start {
		bodies = append(bodies, doc[start:end])
	}
	return bodies
}

func (s *Splitter) fits(body string, index, count, limit int) bool {
	seg := Segment{Index: index, Count: count, Body: body}
	return s.cfg.Measure(seg.Text()) <= limit
}

// LimitError reports a segment that does not fit the character limit.
type LimitError struct {
	Index  int
	Count  int
	Length int
	Limit  int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("segment %d/%d is %d characters, over the %d character limit",
		e.Index, e.Count, e.Length, e.Limit)
}

// Validate checks every segment's text against limit and returns a
// *LimitError for the first one that exceeds it.
func Validate(segments []Segment, limit int, measure func(string) int) error {
	if measure == nil {
		measure = utf8.RuneCountInString
	}
	for _, seg := range segments {
		if n := measure(seg.Text()); n > limit {
			return &LimitError{Index: seg.Index, Count: seg.Count, Length: n, Limit: limit}
		}
	}
	return nil
}

// Texts returns the publishable text of each segment.
func Texts(segments []Segment) []string {
	out := make([]string, len(segments))
	for i, seg := range segments {
		out[i] = seg.Text()
	}
	return out
}

func digits(n int) int {
	return len(strconv.Itoa(n))
}
