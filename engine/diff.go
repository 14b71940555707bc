package engine

import "codegen/document"

// AnchorRange is an anchored span of document text.
type AnchorRange struct {
	Start document.Anchor
	End   document.Anchor
}

// DeletedRows records a run of baseline rows that no longer appear in the
// document. Position anchors where the deletion is rendered; Rows is the
// half-open row range of the baseline snapshot that was removed.
type DeletedRows struct {
	Position document.Anchor
	Rows     RowRange
}

// RowRange is a half-open range of rows.
type RowRange struct {
	Start int
	End   int
}

func (r RowRange) Empty() bool {
	return r.Start >= r.End
}

// Diff is the renderable difference between the baseline selection and
// the document's current contents: baseline rows that were removed and
// anchored spans of freshly inserted text.
type Diff struct {
	DeletedRowRanges  []DeletedRows
	InsertedRowRanges []AnchorRange
}

func (d Diff) Empty() bool {
	return len(d.DeletedRowRanges) == 0 && len(d.InsertedRowRanges) == 0
}

// StatusKind is the controller's generation state.
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusPending
	StatusDone
	StatusError
)

func (k StatusKind) String() string {
	switch k {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is the generation state plus the failure message when Kind is
// StatusError.
type Status struct {
	Kind    StatusKind
	Message string
}

// EventKind classifies controller events.
type EventKind int

const (
	// EventFinished fires when a generation stops for any reason:
	// completion, failure, or an explicit stop.
	EventFinished EventKind = iota

	// EventUndone fires when the controller's transaction was undone from
	// outside, abandoning the generation.
	EventUndone
)

// Event is delivered on the controller's event channel.
type Event struct {
	Kind EventKind
}
