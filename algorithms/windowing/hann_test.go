package windowing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHann_Periodic(t *testing.T) {
	h := NewHann(4, false)
	// periodic Hann of size 4: 0, 0.5, 1, 0.5
	coeffs := h.GetCoefficients()
	require.Len(t, coeffs, 4)
	assert.InDelta(t, 0.0, coeffs[0], 1e-12)
	assert.InDelta(t, 0.5, coeffs[1], 1e-12)
	assert.InDelta(t, 1.0, coeffs[2], 1e-12)
	assert.InDelta(t, 0.5, coeffs[3], 1e-12)
}

func TestHann_SymmetricEndpoints(t *testing.T) {
	h := NewHann(5, true)
	coeffs := h.GetCoefficients()
	assert.InDelta(t, 0.0, coeffs[0], 1e-12)
	assert.InDelta(t, 0.0, coeffs[4], 1e-12)
	assert.InDelta(t, 1.0, coeffs[2], 1e-12)
}

func TestHann_ApplyInPlace(t *testing.T) {
	h := NewHann(4, false)
	sig := []float64{2, 2, 2, 2}
	require.NoError(t, h.ApplyInPlace(sig))
	assert.InDelta(t, 1.0, sig[1], 1e-12)

	assert.Error(t, h.ApplyInPlace([]float64{1, 2}))
}

func TestHann_SingleSample(t *testing.T) {
	h := NewHann(1, false)
	assert.False(t, math.IsNaN(h.GetCoefficients()[0]))
}
