package text

// CharOpKind classifies a CharOperation.
type CharOpKind int

const (
	CharKeep CharOpKind = iota
	CharDelete
	CharInsert
)

func (k CharOpKind) String() string {
	switch k {
	case CharKeep:
		return "keep"
	case CharDelete:
		return "delete"
	case CharInsert:
		return "insert"
	default:
		return "unknown"
	}
}

// CharOperation is one step of a streaming character diff. Keep and Delete
// address the next Bytes bytes of the old text, left to right; Insert
// carries new text. Operations are final once emitted.
type CharOperation struct {
	Kind  CharOpKind
	Bytes int    // Keep, Delete
	Text  string // Insert
}

// appendCharOp appends op to ops, merging it into the previous operation
// when both have the same kind.
func appendCharOp(ops []CharOperation, op CharOperation) []CharOperation {
	if op.Kind == CharInsert && op.Text == "" {
		return ops
	}
	if op.Kind != CharInsert && op.Bytes == 0 {
		return ops
	}
	if n := len(ops); n > 0 && ops[n-1].Kind == op.Kind {
		ops[n-1].Bytes += op.Bytes
		ops[n-1].Text += op.Text
		return ops
	}
	return append(ops, op)
}

// LineOpKind classifies a LineOperation.
type LineOpKind int

const (
	LineKeep LineOpKind = iota
	LineDelete
	LineInsert
)

func (k LineOpKind) String() string {
	switch k {
	case LineKeep:
		return "keep"
	case LineDelete:
		return "delete"
	case LineInsert:
		return "insert"
	default:
		return "unknown"
	}
}

// LineOperation is one step of the line-level projection of a character
// diff: keep Lines old lines, delete Lines old lines, or insert Lines new
// lines.
type LineOperation struct {
	Kind  LineOpKind
	Lines int
}

func appendLineOp(ops []LineOperation, kind LineOpKind, lines int) []LineOperation {
	if lines == 0 {
		return ops
	}
	if n := len(ops); n > 0 && ops[n-1].Kind == kind {
		ops[n-1].Lines += lines
		return ops
	}
	return append(ops, LineOperation{Kind: kind, Lines: lines})
}
