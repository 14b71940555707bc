package text

import (
	"slices"
	"strings"
)

// LineDiff folds a stream of character operations into line-level
// operations against the same old text. Lines the character diff passed
// through unchanged become keeps; lines touched by an insertion or
// deletion become delete/insert pairs. It can be fed incrementally: each
// call to PushCharOperations consumes the next batch of character
// operations, and LineOperations returns a snapshot that includes a
// provisional operation for the still-open line.
type LineDiff struct {
	ops    []LineOperation
	oldOff int

	// State of the lines currently open on either side.
	oldPartial bool // old line has consumed content
	newPartial bool // new line has emitted content
	lineKept   bool // new line contains kept old bytes
	oldDirty   bool // open old line diverged from the new text
	newDirty   bool // open new line diverged from the old text

	finished bool
}

func NewLineDiff() *LineDiff {
	return &LineDiff{}
}

// PushCharOperations consumes the next character operations of the diff
// against old.
func (ld *LineDiff) PushCharOperations(ops []CharOperation, old string) {
	for _, op := range ops {
		switch op.Kind {
		case CharKeep:
			ld.pushKeep(old[ld.oldOff : ld.oldOff+op.Bytes])
		case CharDelete:
			ld.pushDelete(old[ld.oldOff : ld.oldOff+op.Bytes])
		case CharInsert:
			ld.pushInsert(op.Text)
		}
	}
}

func (ld *LineDiff) pushKeep(seg string) {
	ld.oldOff += len(seg)
	for {
		i := strings.IndexByte(seg, '\n')
		if i < 0 {
			break
		}
		// A newline kept on both sides closes the open lines together.
		if ld.newDirty || ld.oldDirty {
			ld.ops = appendLineOp(ld.ops, LineDelete, 1)
			ld.ops = appendLineOp(ld.ops, LineInsert, 1)
		} else {
			ld.ops = appendLineOp(ld.ops, LineKeep, 1)
		}
		ld.resetLine()
		seg = seg[i+1:]
	}
	if seg != "" {
		ld.lineKept = true
		ld.oldPartial = true
		ld.newPartial = true
	}
}

func (ld *LineDiff) pushDelete(seg string) {
	ld.oldOff += len(seg)
	for {
		i := strings.IndexByte(seg, '\n')
		if i < 0 {
			break
		}
		// The old line ends here without surviving into the new text.
		ld.ops = appendLineOp(ld.ops, LineDelete, 1)
		if ld.lineKept || ld.newPartial {
			// Part of it lives on in the still-open new line.
			ld.newDirty = true
		}
		ld.oldDirty = false
		ld.oldPartial = false
		seg = seg[i+1:]
	}
	if seg != "" {
		ld.oldPartial = true
		ld.oldDirty = true
		ld.newDirty = true
	}
}

func (ld *LineDiff) pushInsert(text string) {
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			break
		}
		ld.ops = appendLineOp(ld.ops, LineInsert, 1)
		if ld.lineKept {
			// Kept bytes of the open old line ended up in this new line,
			// so the old line no longer survives intact.
			ld.oldDirty = true
		}
		ld.lineKept = false
		ld.newPartial = false
		ld.newDirty = false
		text = text[i+1:]
	}
	if text != "" {
		ld.newPartial = true
		ld.newDirty = true
	}
}

func (ld *LineDiff) resetLine() {
	ld.oldPartial = false
	ld.newPartial = false
	ld.lineKept = false
	ld.oldDirty = false
	ld.newDirty = false
}

// LineOperations returns the operations so far, including a provisional
// operation for any line still open. It does not mutate the diff.
func (ld *LineDiff) LineOperations() []LineOperation {
	ops := slices.Clone(ld.ops)
	return ld.appendOpenLine(ops)
}

// Finish closes the diff, committing the operation for the open line.
func (ld *LineDiff) Finish() {
	if ld.finished {
		return
	}
	ld.finished = true
	ld.ops = ld.appendOpenLine(ld.ops)
	ld.resetLine()
}

func (ld *LineDiff) appendOpenLine(ops []LineOperation) []LineOperation {
	if !ld.oldPartial && !ld.newPartial {
		return ops
	}
	if ld.newDirty || ld.oldDirty {
		if ld.oldPartial {
			ops = appendLineOp(ops, LineDelete, 1)
		}
		if ld.newPartial {
			ops = appendLineOp(ops, LineInsert, 1)
		}
		return ops
	}
	if ld.lineKept {
		return appendLineOp(ops, LineKeep, 1)
	}
	return ops
}
