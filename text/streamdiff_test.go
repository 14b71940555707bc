package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// replay reconstructs the new text by applying char operations to old,
// verifying that the operations consume old exactly once, in order.
func replay(t *testing.T, old string, ops []CharOperation) string {
	t.Helper()
	var out strings.Builder
	pos := 0
	for _, op := range ops {
		switch op.Kind {
		case CharKeep:
			require.LessOrEqual(t, pos+op.Bytes, len(old), "keep past end of old text")
			out.WriteString(old[pos : pos+op.Bytes])
			pos += op.Bytes
		case CharDelete:
			require.LessOrEqual(t, pos+op.Bytes, len(old), "delete past end of old text")
			pos += op.Bytes
		case CharInsert:
			out.WriteString(op.Text)
		}
	}
	require.Equal(t, len(old), pos, "operations must consume all of old")
	return out.String()
}

func diffChunked(old, new string, size int) []CharOperation {
	d := NewStreamingDiff(old)
	var ops []CharOperation
	for i := 0; i < len(new); i += size {
		end := min(i+size, len(new))
		ops = append(ops, d.PushNew(new[i:end])...)
	}
	return append(ops, d.Finish()...)
}

func TestStreamingDiffRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		old  string
		new  string
	}{
		{"identical", "alpha\nbeta\ngamma\n", "alpha\nbeta\ngamma\n"},
		{"modified middle line", "alpha\nbeta\ngamma\n", "alpha\nBETA\ngamma\n"},
		{"inserted line", "alpha\ngamma\n", "alpha\nbeta\ngamma\n"},
		{"deleted line", "alpha\nbeta\ngamma\n", "alpha\ngamma\n"},
		{"appended lines", "alpha\n", "alpha\nbeta\ngamma"},
		{"empty old", "", "alpha\nbeta\n"},
		{"empty new", "alpha\nbeta\n", ""},
		{"both empty", "", ""},
		{"no trailing newline", "alpha\nbeta", "alpha\nBETA"},
		{"rewrite everything", "one\ntwo\n", "three\nfour\n"},
		{"multibyte text", "héllo\nwörld\n", "héllo\nwörld!\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for size := 1; size <= max(1, len(tc.new)); size++ {
				ops := diffChunked(tc.old, tc.new, size)
				require.Equalf(t, tc.new, replay(t, tc.old, ops), "chunk size %d", size)
			}
		})
	}
}

func TestStreamingDiffKeepsUnchangedLines(t *testing.T) {
	old := "alpha\nbeta\ngamma\n"
	d := NewStreamingDiff(old)
	ops := d.PushNew(old)
	ops = append(ops, d.Finish()...)
	require.Equal(t, []CharOperation{{Kind: CharKeep, Bytes: len(old)}}, ops)
}

func TestStreamingDiffMatchesAfterSkippedLines(t *testing.T) {
	old := "alpha\nbeta\ngamma\n"
	d := NewStreamingDiff(old)
	ops := d.PushNew("gamma\n")
	ops = append(ops, d.Finish()...)
	// alpha and beta are skipped, gamma matches at a line boundary.
	require.Equal(t, []CharOperation{
		{Kind: CharDelete, Bytes: len("alpha\nbeta\n")},
		{Kind: CharKeep, Bytes: len("gamma\n")},
	}, ops)
}

func TestStreamingDiffOperationsAreFinal(t *testing.T) {
	old := "alpha\nbeta\n"
	d := NewStreamingDiff(old)

	first := d.PushNew("alpha\n")
	require.Equal(t, []CharOperation{{Kind: CharKeep, Bytes: 6}}, first)

	// Later pushes must not revise what was already emitted.
	second := d.PushNew("inserted\n")
	second = append(second, d.PushNew("beta\n")...)
	second = append(second, d.Finish()...)
	require.Equal(t, []CharOperation{{Kind: CharKeep, Bytes: 6}}, first)

	var out strings.Builder
	pos := 0
	for _, op := range append(first, second...) {
		switch op.Kind {
		case CharKeep:
			out.WriteString(old[pos : pos+op.Bytes])
			pos += op.Bytes
		case CharDelete:
			pos += op.Bytes
		case CharInsert:
			out.WriteString(op.Text)
		}
	}
	require.Equal(t, "alpha\ninserted\nbeta\n", out.String())
}
