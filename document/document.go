// Package document defines the editable-document surface the generation
// engine works against, plus Buffer, an in-memory implementation with
// version-mapped anchors and undoable transactions.
package document

import "errors"

// ErrInvalidAnchor reports an anchor that can no longer be resolved
// against the document, typically because its contents were replaced
// wholesale.
var ErrInvalidAnchor = errors.New("document: anchor is no longer resolvable")

// Bias determines which side an anchor sticks to when text is inserted
// exactly at its position.
type Bias int

const (
	BiasLeft Bias = iota
	BiasRight
)

// Anchor is a stable position in a document. It records the document
// version it was created at and is mapped through every subsequent edit
// when resolved, so it stays attached to the same logical text as the
// document changes.
type Anchor struct {
	version int
	offset  int
	bias    Bias
}

// TransactionID identifies an undoable group of edits.
type TransactionID int64

// Point is a zero-based row/column position. Column is a byte offset
// within the row.
type Point struct {
	Row    int
	Column int
}

// IndentKind is the character a line is indented with.
type IndentKind int

const (
	IndentSpace IndentKind = iota
	IndentTab
)

// Indent describes a line's leading indentation: Len repetitions of Kind.
type Indent struct {
	Len  int
	Kind IndentKind
}

// Char returns the indent character.
func (in Indent) Char() byte {
	if in.Kind == IndentTab {
		return '\t'
	}
	return ' '
}

// Edit replaces the text between two anchors. A zero-length range is an
// insertion; empty Text is a deletion.
type Edit struct {
	Start Anchor
	End   Anchor
	Text  string
}

// EventKind classifies document events.
type EventKind int

const (
	// EventTransactionUndone fires when a transaction is undone, whether
	// by this engine or by the user.
	EventTransactionUndone EventKind = iota
)

// Event is delivered on subscription channels.
type Event struct {
	Kind        EventKind
	Transaction TransactionID
}

// Document is the mutable text the engine edits through. Implementations
// must be safe for concurrent use.
type Document interface {
	// Snapshot returns an immutable view of the current contents.
	Snapshot() *Snapshot

	// Edit applies a batch of anchor-addressed edits. It reports whether
	// any text actually changed.
	Edit(edits []Edit) (bool, error)

	// StartTransaction opens an edit group. EndTransaction closes it and
	// returns its id, or ok=false when the group was empty.
	StartTransaction()
	EndTransaction() (id TransactionID, ok bool)

	// MergeTransactions folds src into dst so a single undo reverts both.
	MergeTransactions(src, dst TransactionID)

	// FinalizeLastTransaction bars the most recent transaction from being
	// grouped with subsequent edits.
	FinalizeLastTransaction()

	// UndoTransaction reverts a transaction's edits. It reports whether
	// the transaction was known.
	UndoTransaction(id TransactionID) bool

	// ForgetTransaction drops a transaction's undo state without
	// reverting it.
	ForgetTransaction(id TransactionID)

	// Subscribe returns a channel of document events.
	Subscribe() <-chan Event
}
