package segment

import "regexp"

// boundaryPattern matches a period followed by blanks, or a paragraph
// break. A sentence candidate is only a boundary when the character after
// it is not a newline; regexp has no look-ahead, so boundaries.next checks
// that by hand.
const boundaryPattern = `\.[ \t]+|\n *\n`

// boundaries finds split points in a document. It holds only the compiled
// pattern and is safe to share.
type boundaries struct {
	re *regexp.Regexp
}

func newBoundaries() boundaries {
	return boundaries{re: regexp.MustCompile(boundaryPattern)}
}

// points returns the offsets just past every boundary in doc, scanning
// left to right without overlap, followed by len(doc) as the terminal
// boundary. The result is strictly increasing. An empty doc has none.
func (b boundaries) points(doc string) []int {
	if doc == "" {
		return nil
	}
	var points []int
	pos := 0
	for pos < len(doc) {
		end, next, ok := b.next(doc, pos)
		if !ok {
			break
		}
		points = append(points, end)
		pos = next
	}
	if len(points) == 0 || points[len(points)-1] != len(doc) {
		points = append(points, len(doc))
	}
	return points
}

// next finds the first accepted boundary at or after pos. It returns the
// boundary offset and where scanning resumes.
func (b boundaries) next(doc string, pos int) (end, resume int, ok bool) {
	for pos < len(doc) {
		loc := b.re.FindStringIndex(doc[pos:])
		if loc == nil {
			return 0, len(doc), false
		}
		start, stop := pos+loc[0], pos+loc[1]
		if doc[start] != '.' || stop == len(doc) || doc[stop] != '\n' {
			return stop, stop, true
		}
		// The blanks run into a newline. Giving back the last blank leaves
		// a blank as the next character, which is acceptable as long as
		// one blank remains after the period.
		if stop-start > 2 {
			return stop - 1, stop - 1, true
		}
		pos = start + 1
	}
	return 0, len(doc), false
}
