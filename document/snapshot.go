package document

import (
	"sort"
	"strings"
)

// Snapshot is an immutable view of a Buffer at one version. Anchors
// created against a snapshot remain valid as the buffer changes; Resolve
// maps anchors from older versions into this one.
type Snapshot struct {
	buf        *Buffer
	text       string
	version    int
	lineStarts []int
}

func newSnapshot(buf *Buffer, text string, version int) *Snapshot {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Snapshot{buf: buf, text: text, version: version, lineStarts: starts}
}

func (s *Snapshot) Text() string { return s.text }

func (s *Snapshot) Len() int { return len(s.text) }

func (s *Snapshot) Version() int { return s.version }

// LineCount returns the number of rows. Text ending in a newline has a
// trailing empty row.
func (s *Snapshot) LineCount() int { return len(s.lineStarts) }

// Line returns the text of a row without its trailing newline.
func (s *Snapshot) Line(row int) string {
	start := s.LineStartOffset(row)
	end := s.lineEnd(row)
	return s.text[start:end]
}

// LineLen returns the byte length of a row, excluding the newline.
func (s *Snapshot) LineLen(row int) int {
	return s.lineEnd(row) - s.LineStartOffset(row)
}

// LineStartOffset returns the offset of the first byte of a row, clamped
// to the snapshot.
func (s *Snapshot) LineStartOffset(row int) int {
	if row < 0 {
		return 0
	}
	if row >= len(s.lineStarts) {
		return len(s.text)
	}
	return s.lineStarts[row]
}

func (s *Snapshot) lineEnd(row int) int {
	if row+1 < len(s.lineStarts) {
		return s.lineStarts[row+1] - 1
	}
	return len(s.text)
}

// TextForRange returns the text between two offsets, clamped.
func (s *Snapshot) TextForRange(start, end int) string {
	start = max(0, min(start, len(s.text)))
	end = max(start, min(end, len(s.text)))
	return s.text[start:end]
}

// PointForOffset converts a byte offset to a row/column position.
func (s *Snapshot) PointForOffset(offset int) Point {
	offset = max(0, min(offset, len(s.text)))
	row := sort.Search(len(s.lineStarts), func(i int) bool {
		return s.lineStarts[i] > offset
	}) - 1
	return Point{Row: row, Column: offset - s.lineStarts[row]}
}

// OffsetForPoint converts a row/column position to a byte offset, clamped
// to the row's length.
func (s *Snapshot) OffsetForPoint(p Point) int {
	if p.Row >= len(s.lineStarts) {
		return len(s.text)
	}
	col := min(p.Column, s.LineLen(max(0, p.Row)))
	return s.LineStartOffset(p.Row) + col
}

// IndentForRow returns the leading indentation of a row. The kind follows
// the row's first character; a row with no leading whitespace reports a
// zero-length space indent.
func (s *Snapshot) IndentForRow(row int) Indent {
	line := s.Line(row)
	if strings.HasPrefix(line, "\t") {
		n := 0
		for n < len(line) && line[n] == '\t' {
			n++
		}
		return Indent{Len: n, Kind: IndentTab}
	}
	n := 0
	for n < len(line) && line[n] == ' ' {
		n++
	}
	return Indent{Len: n, Kind: IndentSpace}
}

// AnchorBefore returns a left-biased anchor at the given offset: it stays
// before text inserted at its position.
func (s *Snapshot) AnchorBefore(offset int) Anchor {
	return Anchor{version: s.version, offset: s.clamp(offset), bias: BiasLeft}
}

// AnchorAfter returns a right-biased anchor at the given offset: it moves
// past text inserted at its position.
func (s *Snapshot) AnchorAfter(offset int) Anchor {
	return Anchor{version: s.version, offset: s.clamp(offset), bias: BiasRight}
}

func (s *Snapshot) clamp(offset int) int {
	return max(0, min(offset, len(s.text)))
}

// Resolve maps an anchor created at this or an earlier version to its
// offset in this snapshot.
func (s *Snapshot) Resolve(a Anchor) int {
	if a.version >= s.version {
		return max(0, min(a.offset, len(s.text)))
	}
	s.buf.mu.Lock()
	defer s.buf.mu.Unlock()
	off := s.buf.resolveLocked(a, s.version)
	return max(0, min(off, len(s.text)))
}
