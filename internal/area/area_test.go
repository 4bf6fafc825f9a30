package area

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type labelSet map[int]bool

func (s labelSet) Contains(label int) bool { return s[label] }

func TestCountLabels(t *testing.T) {
	labels := []int{1, 1, 2, 2, 1, 1, 1, 2, 2, 2, 2, 2}
	got, err := CountLabels(labels, labelSet{1: true}, 4)
	require.NoError(t, err)
	// the last date has no pixel labelled 1
	assert.Equal(t, []int{2, 3, 0}, got)

	got, err = CountLabels(labels, labelSet{1: true, 2: true}, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4, 4}, got)
}

// Ten labels with four rows per date describe two whole dates; the two
// trailing labels are intentionally dropped, not counted as a third date.
func TestCountLabels_TruncatesPartialBlock(t *testing.T) {
	labels := []int{1, 1, 1, 1, 1, 2, 2, 2, 1, 1}
	got, err := CountLabels(labels, labelSet{1: true}, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 1}, got)
}

func TestCountBelow(t *testing.T) {
	pixels := []float64{0.1, 0.2, 0.3, 0.05, 0.3, 0.3}
	got, err := CountBelow(pixels, 0.2, 2)
	require.NoError(t, err)
	// 0.2 is not below 0.2
	assert.Equal(t, []int{1, 1, 0}, got)
}

func TestCountBelowIn(t *testing.T) {
	pixels := []float64{0.1, 0.2, 0.3, 0.05, 0.3}
	got, err := CountBelowIn(pixels, 0.25, []Range{{0, 3}, {3, 5}})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, got)

	_, err = CountBelowIn(pixels, 0.25, []Range{{3, 6}})
	assert.ErrorIs(t, err, ErrInvalidBlock)
}

func TestBlocks(t *testing.T) {
	got, err := Blocks(10, 4)
	require.NoError(t, err)
	assert.Equal(t, []Range{{0, 4}, {4, 8}}, got)
	assert.Equal(t, 4, got[1].Len())

	got, err = Blocks(3, 4)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Blocks(10, 0)
	assert.ErrorIs(t, err, ErrInvalidBlock)
}

func TestBelow(t *testing.T) {
	assert.Equal(t, []bool{true, false, false}, Below([]float64{0.1, 0.2, 0.3}, 0.2))
}
