package text

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// RowRange is a half-open range of line numbers.
type RowRange struct {
	Start int
	End   int
}

func (r RowRange) Empty() bool {
	return r.Start >= r.End
}

func (r RowRange) Len() int {
	return r.End - r.Start
}

// LineHunk pairs the old rows a change removed with the new rows that
// replaced them. A pure insertion has empty OldRows; a pure deletion has
// empty NewRows.
type LineHunk struct {
	OldRows RowRange
	NewRows RowRange
}

// LineRangeDiff computes a line-level diff between two texts and returns
// the changed regions as row-range hunks. A deletion directly followed by
// an insertion is reported as a single replacement hunk.
func LineRangeDiff(oldText, newText string) []LineHunk {
	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(chars1, chars2, false)
	lineDiffs := dmp.DiffCharsToLines(diffs, lineArray)

	var hunks []LineHunk
	oldRow, newRow := 0, 0
	for i := 0; i < len(lineDiffs); i++ {
		d := lineDiffs[i]
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			oldRow += n
			newRow += n
		case diffmatchpatch.DiffDelete:
			inserted := 0
			if i+1 < len(lineDiffs) && lineDiffs[i+1].Type == diffmatchpatch.DiffInsert {
				inserted = countLines(lineDiffs[i+1].Text)
				i++
			}
			hunks = append(hunks, LineHunk{
				OldRows: RowRange{Start: oldRow, End: oldRow + n},
				NewRows: RowRange{Start: newRow, End: newRow + inserted},
			})
			oldRow += n
			newRow += inserted
		case diffmatchpatch.DiffInsert:
			hunks = append(hunks, LineHunk{
				OldRows: RowRange{Start: oldRow, End: oldRow},
				NewRows: RowRange{Start: newRow, End: newRow + n},
			})
			newRow += n
		}
	}
	return hunks
}

// countLines counts the lines in a line-mode diff segment. Segments are
// newline terminated except possibly the last one.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
