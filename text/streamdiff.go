package text

import "strings"

// matchWindow bounds how far ahead in the old text a line match is searched.
// Matches beyond the window are treated as rewrites.
const matchWindow = 65536

// StreamingDiff incrementally diffs new text, arriving in arbitrary chunks,
// against a fixed old text. It commits whole line units (text up to and
// including '\n') as they complete: a unit matching the old text at the
// cursor is kept, a unit matching at a later line start deletes the skipped
// bytes and keeps the match, anything else is an insertion. Emitted
// operations are final and consume the old text strictly left to right, so
// replaying them over the old text reconstructs the new text exactly.
type StreamingDiff struct {
	old     string
	pos     int
	pending string
}

func NewStreamingDiff(old string) *StreamingDiff {
	return &StreamingDiff{old: old}
}

// PushNew adds a chunk of new text and returns the operations for every
// line unit it completed.
func (d *StreamingDiff) PushNew(chunk string) []CharOperation {
	d.pending += chunk
	return d.commit(false)
}

// Finish flushes the trailing partial unit and deletes whatever old text
// was never matched.
func (d *StreamingDiff) Finish() []CharOperation {
	ops := d.commit(true)
	if d.pos < len(d.old) {
		ops = appendCharOp(ops, CharOperation{Kind: CharDelete, Bytes: len(d.old) - d.pos})
		d.pos = len(d.old)
	}
	return ops
}

func (d *StreamingDiff) commit(final bool) []CharOperation {
	var ops []CharOperation
	for {
		nl := strings.IndexByte(d.pending, '\n')
		var unit string
		switch {
		case nl >= 0:
			unit = d.pending[:nl+1]
		case final && d.pending != "":
			unit = d.pending
		default:
			return ops
		}
		d.pending = d.pending[len(unit):]
		ops = d.matchUnit(ops, unit)
	}
}

func (d *StreamingDiff) matchUnit(ops []CharOperation, unit string) []CharOperation {
	rest := d.old[d.pos:]
	if strings.HasPrefix(rest, unit) && d.boundaryAfter(d.pos+len(unit), unit) {
		ops = appendCharOp(ops, CharOperation{Kind: CharKeep, Bytes: len(unit)})
		d.pos += len(unit)
		return ops
	}

	if at := d.findLineAligned(unit); at >= 0 {
		ops = appendCharOp(ops, CharOperation{Kind: CharDelete, Bytes: at - d.pos})
		ops = appendCharOp(ops, CharOperation{Kind: CharKeep, Bytes: len(unit)})
		d.pos = at + len(unit)
		return ops
	}

	return appendCharOp(ops, CharOperation{Kind: CharInsert, Text: unit})
}

// findLineAligned returns the offset of an occurrence of unit that starts
// at a line boundary at or after the cursor, or -1.
func (d *StreamingDiff) findLineAligned(unit string) int {
	limit := min(len(d.old), d.pos+matchWindow)
	// The cursor itself only counts when it sits at a line start.
	from := d.pos
	if from > 0 && d.old[from-1] != '\n' {
		next := strings.IndexByte(d.old[from:limit], '\n')
		if next < 0 {
			return -1
		}
		from += next + 1
	}
	for from < limit {
		i := strings.Index(d.old[from:limit], unit)
		if i < 0 {
			return -1
		}
		at := from + i
		if (at == 0 || d.old[at-1] == '\n') && d.boundaryAfter(at+len(unit), unit) {
			return at
		}
		next := strings.IndexByte(d.old[at:limit], '\n')
		if next < 0 {
			return -1
		}
		from = at + next + 1
	}
	return -1
}

// boundaryAfter reports whether a match ending at end is acceptable: units
// ending in '\n' always are, a trailing partial unit must end flush with a
// line of the old text.
func (d *StreamingDiff) boundaryAfter(end int, unit string) bool {
	if strings.HasSuffix(unit, "\n") {
		return true
	}
	return end == len(d.old) || d.old[end] == '\n'
}
