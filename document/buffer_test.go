package document

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnchorsTrackEdits(t *testing.T) {
	buf := NewBuffer("hello world")
	snap := buf.Snapshot()

	before := snap.AnchorBefore(5)
	after := snap.AnchorAfter(5)

	// Insert at the anchor position: the left-biased anchor stays put,
	// the right-biased one moves past the insertion.
	changed, err := buf.Edit([]Edit{{Start: before, End: before, Text: ", dear"}})
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "hello, dear world", buf.Text())

	cur := buf.Snapshot()
	require.Equal(t, 5, cur.Resolve(before))
	require.Equal(t, 11, cur.Resolve(after))
}

func TestAnchorInsideReplacedRegion(t *testing.T) {
	buf := NewBuffer("abcdef")
	snap := buf.Snapshot()

	inside := snap.AnchorBefore(3)
	insideRight := snap.AnchorAfter(3)

	_, err := buf.Edit([]Edit{{Start: snap.AnchorBefore(2), End: snap.AnchorAfter(5), Text: "XY"}})
	require.NoError(t, err)
	require.Equal(t, "abXYf", buf.Text())

	cur := buf.Snapshot()
	require.Equal(t, 2, cur.Resolve(inside))
	require.Equal(t, 4, cur.Resolve(insideRight))
}

func TestEditSkipsNoopReplacements(t *testing.T) {
	buf := NewBuffer("abc")
	snap := buf.Snapshot()
	changed, err := buf.Edit([]Edit{{Start: snap.AnchorBefore(0), End: snap.AnchorAfter(3), Text: "abc"}})
	require.NoError(t, err)
	require.False(t, changed)
}

func TestEditRejectsFutureAnchor(t *testing.T) {
	buf := NewBuffer("abc")
	other := NewBuffer("abcdef")
	_, err := other.Edit([]Edit{{Start: other.Snapshot().AnchorBefore(0), End: other.Snapshot().AnchorAfter(1), Text: "x"}})
	require.NoError(t, err)

	// An anchor from a buffer with a longer history is from the future
	// as far as this buffer is concerned.
	a := other.Snapshot().AnchorBefore(0)
	_, err = buf.Edit([]Edit{{Start: a, End: a, Text: "x"}})
	require.ErrorIs(t, err, ErrInvalidAnchor)
}

func TestTransactionUndoRestoresText(t *testing.T) {
	buf := NewBuffer("one two three")
	snap := buf.Snapshot()

	buf.StartTransaction()
	_, err := buf.Edit([]Edit{{Start: snap.AnchorBefore(4), End: snap.AnchorAfter(7), Text: "2"}})
	require.NoError(t, err)
	_, err = buf.Edit([]Edit{{Start: snap.AnchorBefore(8), End: snap.AnchorAfter(13), Text: "3"}})
	require.NoError(t, err)
	id, ok := buf.EndTransaction()
	require.True(t, ok)
	require.Equal(t, "one 2 3", buf.Text())

	require.True(t, buf.UndoTransaction(id))
	require.Equal(t, "one two three", buf.Text())

	// A second undo of the same transaction does nothing.
	require.False(t, buf.UndoTransaction(id))
}

func TestEmptyTransactionIsDiscarded(t *testing.T) {
	buf := NewBuffer("abc")
	buf.StartTransaction()
	_, ok := buf.EndTransaction()
	require.False(t, ok)

	buf.StartTransaction()
	snap := buf.Snapshot()
	changed, err := buf.Edit([]Edit{{Start: snap.AnchorBefore(0), End: snap.AnchorAfter(3), Text: "abc"}})
	require.NoError(t, err)
	require.False(t, changed)
	_, ok = buf.EndTransaction()
	require.False(t, ok)
}

func TestMergeTransactionsUndoesAsOne(t *testing.T) {
	buf := NewBuffer("abc")

	buf.StartTransaction()
	snap := buf.Snapshot()
	_, err := buf.Edit([]Edit{{Start: snap.AnchorAfter(3), End: snap.AnchorBefore(3), Text: "def"}})
	require.NoError(t, err)
	first, ok := buf.EndTransaction()
	require.True(t, ok)

	buf.StartTransaction()
	snap = buf.Snapshot()
	_, err = buf.Edit([]Edit{{Start: snap.AnchorAfter(6), End: snap.AnchorBefore(6), Text: "ghi"}})
	require.NoError(t, err)
	second, ok := buf.EndTransaction()
	require.True(t, ok)
	require.Equal(t, "abcdefghi", buf.Text())

	buf.MergeTransactions(second, first)
	require.True(t, buf.UndoTransaction(first))
	require.Equal(t, "abc", buf.Text())

	// The merged-away transaction no longer exists on its own.
	require.False(t, buf.UndoTransaction(second))
}

func TestForgetTransaction(t *testing.T) {
	buf := NewBuffer("abc")
	buf.StartTransaction()
	snap := buf.Snapshot()
	_, err := buf.Edit([]Edit{{Start: snap.AnchorBefore(0), End: snap.AnchorAfter(0), Text: "x"}})
	require.NoError(t, err)
	id, ok := buf.EndTransaction()
	require.True(t, ok)

	buf.ForgetTransaction(id)
	require.False(t, buf.UndoTransaction(id))
	require.Equal(t, "xabc", buf.Text())
}

func TestUndoRevertsLatestTransaction(t *testing.T) {
	buf := NewBuffer("")

	for _, word := range []string{"one", "two"} {
		buf.StartTransaction()
		snap := buf.Snapshot()
		_, err := buf.Edit([]Edit{{Start: snap.AnchorAfter(snap.Len()), End: snap.AnchorBefore(snap.Len()), Text: word}})
		require.NoError(t, err)
		_, ok := buf.EndTransaction()
		require.True(t, ok)
	}
	require.Equal(t, "onetwo", buf.Text())

	require.True(t, buf.Undo())
	require.Equal(t, "one", buf.Text())
	require.True(t, buf.Undo())
	require.Equal(t, "", buf.Text())
	require.False(t, buf.Undo())
}

func TestUndoEmitsEvent(t *testing.T) {
	buf := NewBuffer("abc")
	events := buf.Subscribe()

	buf.StartTransaction()
	snap := buf.Snapshot()
	_, err := buf.Edit([]Edit{{Start: snap.AnchorBefore(0), End: snap.AnchorAfter(3), Text: "xyz"}})
	require.NoError(t, err)
	id, ok := buf.EndTransaction()
	require.True(t, ok)

	require.True(t, buf.UndoTransaction(id))

	select {
	case ev := <-events:
		require.Equal(t, EventTransactionUndone, ev.Kind)
		require.Equal(t, id, ev.Transaction)
	default:
		t.Fatal("expected an undo event")
	}
}

func TestSnapshotPointConversions(t *testing.T) {
	buf := NewBuffer("first\nsecond\n\nlast")
	snap := buf.Snapshot()

	require.Equal(t, 4, snap.LineCount())
	require.Equal(t, "second", snap.Line(1))
	require.Equal(t, "", snap.Line(2))
	require.Equal(t, "last", snap.Line(3))

	require.Equal(t, Point{Row: 0, Column: 0}, snap.PointForOffset(0))
	require.Equal(t, Point{Row: 0, Column: 5}, snap.PointForOffset(5))
	require.Equal(t, Point{Row: 1, Column: 0}, snap.PointForOffset(6))
	require.Equal(t, Point{Row: 3, Column: 4}, snap.PointForOffset(snap.Len()))

	require.Equal(t, 6, snap.OffsetForPoint(Point{Row: 1, Column: 0}))
	require.Equal(t, 12, snap.OffsetForPoint(Point{Row: 1, Column: 99}))
	require.Equal(t, snap.Len(), snap.OffsetForPoint(Point{Row: 99, Column: 0}))
}

func TestSnapshotIndentForRow(t *testing.T) {
	buf := NewBuffer("none\n    spaces\n\t\ttabs\n")
	snap := buf.Snapshot()

	require.Equal(t, Indent{Len: 0, Kind: IndentSpace}, snap.IndentForRow(0))
	require.Equal(t, Indent{Len: 4, Kind: IndentSpace}, snap.IndentForRow(1))
	require.Equal(t, Indent{Len: 2, Kind: IndentTab}, snap.IndentForRow(2))
	require.Equal(t, byte(' '), Indent{Kind: IndentSpace}.Char())
	require.Equal(t, byte('\t'), Indent{Kind: IndentTab}.Char())
}

func TestSnapshotTextForRangeClamps(t *testing.T) {
	buf := NewBuffer("abcdef")
	snap := buf.Snapshot()
	require.Equal(t, "cd", snap.TextForRange(2, 4))
	require.Equal(t, "abcdef", snap.TextForRange(-5, 99))
	require.Equal(t, "", snap.TextForRange(4, 2))
}

func TestSnapshotIsStableAcrossEdits(t *testing.T) {
	buf := NewBuffer("stable")
	snap := buf.Snapshot()
	_, err := buf.Edit([]Edit{{Start: snap.AnchorBefore(0), End: snap.AnchorAfter(6), Text: "changed"}})
	require.NoError(t, err)
	require.Equal(t, "stable", snap.Text())
	require.Equal(t, "changed", buf.Text())
}
