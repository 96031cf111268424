package iter

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestSliceIterator(t *testing.T) {
	it := NewSliceIterator(lo.Times(5, func(i int) int { return i * 2 }))

	var got []int
	for it.Next() {
		got = append(got, it.At())
	}
	require.Equal(t, []int{0, 2, 4, 6, 8}, got)
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())

	require.False(t, it.Next(), "exhausted iterator stays exhausted")
	require.Zero(t, it.At())
}

func TestSliceIteratorEmpty(t *testing.T) {
	it := NewSliceIterator[string](nil)
	require.False(t, it.Next())
	require.NoError(t, it.Err())
}
