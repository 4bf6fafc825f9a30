package sweep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdRange(t *testing.T) {
	tests := []struct {
		name             string
		start, end, step float64
		want             []float64
	}{
		{name: "inclusive end", start: 0.1, end: 0.3, step: 0.1, want: []float64{0.1, 0.2, 0.30000000000000004}},
		{name: "single point", start: 0.5, end: 0.5, step: 0.1, want: []float64{0.5}},
		{name: "end not on grid", start: 0, end: 0.25, step: 0.1, want: []float64{0, 0.1, 0.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ThresholdRange(tt.start, tt.end, tt.step)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got, 1e-12)
		})
	}

	_, err := ThresholdRange(0, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = ThresholdRange(1, 0, 0.1)
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = ThresholdRange(0, 1, 1e-9)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestThresholdRange_KeepsEndAfterAccumulation(t *testing.T) {
	got, err := ThresholdRange(0, 1, 0.01)
	require.NoError(t, err)
	assert.Len(t, got, 101)
	assert.InDelta(t, 1.0, got[100], 1e-12)
}

func TestClassRange(t *testing.T) {
	got, err := ClassRange(1, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, got)

	got, err = ClassRange(3, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, got)

	for _, r := range [][2]int{{0, 3}, {4, 3}, {1, 1}} {
		_, err := ClassRange(r[0], r[1])
		assert.ErrorIs(t, err, ErrInvalidRange, "range %v", r)
	}
}

func TestParseThresholds(t *testing.T) {
	got, err := ParseThresholds("0.1, 0.13")
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = ParseThresholds("0,1,0.5")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, got)

	for _, s := range []string{"0.1", "0,1,2,3", "a,b", ""} {
		_, err := ParseThresholds(s)
		assert.ErrorIs(t, err, ErrInvalidRange, s)
	}
}

func TestParseClasses(t *testing.T) {
	got, err := ParseClasses("2,5")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4, 5}, got)

	_, err = ParseClasses("2")
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = ParseClasses("2,x")
	assert.ErrorIs(t, err, ErrInvalidRange)
}
