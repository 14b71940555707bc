package text

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineRangeDiff(t *testing.T) {
	cases := []struct {
		name string
		old  string
		new  string
		want []LineHunk
	}{
		{
			"equal",
			"alpha\nbeta\ngamma\n", "alpha\nbeta\ngamma\n",
			nil,
		},
		{
			"replaced middle line",
			"alpha\nbeta\ngamma\n", "alpha\nBETA\ngamma\n",
			[]LineHunk{{OldRows: RowRange{1, 2}, NewRows: RowRange{1, 2}}},
		},
		{
			"inserted line",
			"alpha\ngamma\n", "alpha\nbeta\ngamma\n",
			[]LineHunk{{OldRows: RowRange{1, 1}, NewRows: RowRange{1, 2}}},
		},
		{
			"deleted line",
			"alpha\nbeta\ngamma\n", "alpha\ngamma\n",
			[]LineHunk{{OldRows: RowRange{1, 2}, NewRows: RowRange{1, 1}}},
		},
		{
			"replaced block of different size",
			"alpha\nbeta\ngamma\ndelta\n", "alpha\nx\ndelta\n",
			[]LineHunk{{OldRows: RowRange{1, 3}, NewRows: RowRange{1, 2}}},
		},
		{
			"everything replaced",
			"one\ntwo\n", "three\nfour\n",
			[]LineHunk{{OldRows: RowRange{0, 2}, NewRows: RowRange{0, 2}}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, LineRangeDiff(tc.old, tc.new))
		})
	}
}

func TestRowRange(t *testing.T) {
	require.True(t, RowRange{3, 3}.Empty())
	require.False(t, RowRange{3, 5}.Empty())
	require.Equal(t, 2, RowRange{3, 5}.Len())
}
