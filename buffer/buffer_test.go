package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChangedSpan(t *testing.T) {
	cases := []struct {
		name    string
		old     []string
		new     []string
		first   int
		lastOld int
		lastNew int
	}{
		{
			"identical",
			[]string{"a", "b", "c"}, []string{"a", "b", "c"},
			3, 3, 3,
		},
		{
			"middle line changed",
			[]string{"a", "b", "c"}, []string{"a", "B", "c"},
			1, 2, 2,
		},
		{
			"line inserted",
			[]string{"a", "c"}, []string{"a", "b", "c"},
			1, 1, 2,
		},
		{
			"line deleted",
			[]string{"a", "b", "c"}, []string{"a", "c"},
			1, 2, 1,
		},
		{
			"appended at end",
			[]string{"a"}, []string{"a", "b"},
			1, 1, 2,
		},
		{
			"everything replaced",
			[]string{"a", "b"}, []string{"x", "y", "z"},
			0, 2, 3,
		},
		{
			"repeated lines trim the prefix first",
			[]string{"a", "a", "a"}, []string{"a", "a"},
			2, 3, 2,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			first, lastOld, lastNew := changedSpan(tc.old, tc.new)
			require.Equal(t, tc.first, first)
			require.Equal(t, tc.lastOld, lastOld)
			require.Equal(t, tc.lastNew, lastNew)
		})
	}
}
