package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReflectPad(t *testing.T) {
	got, err := ReflectPad([]float64{1, 2, 3, 4}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 2, 1, 2, 3, 4, 3, 2}, got)

	got, err = ReflectPad([]float64{1, 2, 3}, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, got)

	_, err = ReflectPad([]float64{1, 2}, 2)
	assert.Error(t, err)

	_, err = ReflectPad([]float64{1, 2}, -1)
	assert.Error(t, err)
}

func TestSegmentMax(t *testing.T) {
	data := []float64{0, 0, 1, 0, 5, 0}

	v, ok := SegmentMax(data, 0, 3)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	v, ok = SegmentMax(data, 3, 100)
	require.True(t, ok)
	assert.Equal(t, 5.0, v)

	_, ok = SegmentMax(data, 6, 10)
	assert.False(t, ok)
}

func TestCeilFraction(t *testing.T) {
	assert.Equal(t, 11, CeilFraction(0.1, 101))
	assert.Equal(t, 10, CeilFraction(0.1, 100))
	assert.Equal(t, 1, CeilFraction(0.1, 5))
	assert.Equal(t, 0, CeilFraction(0.1, 0))
}

func TestNonZeroIndices(t *testing.T) {
	assert.Equal(t, []int{1, 3}, NonZeroIndices([]float64{0, 2, 0, -1}))
	assert.Nil(t, NonZeroIndices([]float64{0, 0}))
	assert.True(t, AnyNonZero([]float64{0, 0.5}))
	assert.False(t, AnyNonZero(nil))
}
