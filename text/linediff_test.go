package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// lineOpsChunked runs a full streaming diff of new against old, feeding
// the line projector in chunks of the given size, and returns the final
// line operations.
func lineOpsChunked(old, new string, size int) []LineOperation {
	d := NewStreamingDiff(old)
	ld := NewLineDiff()
	for i := 0; i < len(new); i += size {
		end := min(i+size, len(new))
		ld.PushCharOperations(d.PushNew(new[i:end]), old)
	}
	ld.PushCharOperations(d.Finish(), old)
	ld.Finish()
	return ld.LineOperations()
}

// lineUnits counts newline-terminated units plus a trailing partial line.
func lineUnits(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

func TestLineDiffScenarios(t *testing.T) {
	cases := []struct {
		name string
		old  string
		new  string
		want []LineOperation
	}{
		{
			"unchanged",
			"alpha\nbeta\n", "alpha\nbeta\n",
			[]LineOperation{{LineKeep, 2}},
		},
		{
			"modified middle line",
			"alpha\nbeta\ngamma\n", "alpha\nBETA\ngamma\n",
			[]LineOperation{{LineKeep, 1}, {LineInsert, 1}, {LineDelete, 1}, {LineKeep, 1}},
		},
		{
			"deleted line",
			"alpha\nbeta\ngamma\n", "alpha\ngamma\n",
			[]LineOperation{{LineKeep, 1}, {LineDelete, 1}, {LineKeep, 1}},
		},
		{
			"inserted line",
			"alpha\ngamma\n", "alpha\nbeta\ngamma\n",
			[]LineOperation{{LineKeep, 1}, {LineInsert, 1}, {LineKeep, 1}},
		},
		{
			"appended lines",
			"alpha\n", "alpha\nbeta\ngamma",
			[]LineOperation{{LineKeep, 1}, {LineInsert, 2}},
		},
		{
			"everything deleted",
			"alpha\nbeta\n", "",
			[]LineOperation{{LineDelete, 2}},
		},
		{
			"modified trailing line without newline",
			"alpha\nbeta", "alpha\nBETA",
			[]LineOperation{{LineKeep, 1}, {LineDelete, 1}, {LineInsert, 1}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for size := 1; size <= max(1, len(tc.new)); size++ {
				got := lineOpsChunked(tc.old, tc.new, size)
				require.Equalf(t, tc.want, got, "chunk size %d", size)

				// Row accounting must match both sides.
				oldRows, newRows := 0, 0
				for _, op := range got {
					switch op.Kind {
					case LineKeep:
						oldRows += op.Lines
						newRows += op.Lines
					case LineDelete:
						oldRows += op.Lines
					case LineInsert:
						newRows += op.Lines
					}
				}
				require.Equal(t, lineUnits(tc.old), oldRows)
				require.Equal(t, lineUnits(tc.new), newRows)
			}
		})
	}
}

func TestLineDiffSnapshotIsNonMutating(t *testing.T) {
	old := "alpha\nbeta\n"
	ld := NewLineDiff()
	ld.PushCharOperations([]CharOperation{
		{Kind: CharKeep, Bytes: 6},
		{Kind: CharKeep, Bytes: 3},
	}, old)

	// The open line is reported provisionally as kept and merged into
	// the committed keep.
	first := ld.LineOperations()
	require.Equal(t, []LineOperation{{LineKeep, 2}}, first)

	// Taking the snapshot again must not have committed anything.
	require.Equal(t, first, ld.LineOperations())
}

func TestLineDiffProvisionalDirtyLine(t *testing.T) {
	old := "alpha\nbeta\n"
	ld := NewLineDiff()
	ld.PushCharOperations([]CharOperation{
		{Kind: CharKeep, Bytes: 6},
		{Kind: CharInsert, Text: "BE"},
	}, old)

	// An open line with inserted text projects as a replacement.
	require.Equal(t, []LineOperation{{LineKeep, 1}, {LineInsert, 1}}, ld.LineOperations())

	ld.PushCharOperations([]CharOperation{{Kind: CharDelete, Bytes: 4}}, old)
	require.Equal(t, []LineOperation{{LineKeep, 1}, {LineDelete, 1}, {LineInsert, 1}}, ld.LineOperations())
}

func TestLineDiffIncrementalMatchesOneShot(t *testing.T) {
	old := "one\ntwo\nthree\nfour\n"
	new := "one\n2\nthree\nfive\nsix\n"

	oneShot := lineOpsChunked(old, new, len(new))
	for size := 1; size < len(new); size++ {
		require.Equalf(t, oneShot, lineOpsChunked(old, new, size), "chunk size %d", size)
	}
}
