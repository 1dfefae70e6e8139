package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Slice helpers shared by the spectral and label code, backed by gonum.

// SegmentMax returns the maximum of data[start:end] with end clamped to
// len(data). An empty or out-of-range segment yields ok == false.
func SegmentMax(data []float64, start, end int) (float64, bool) {
	if start < 0 {
		start = 0
	}
	end = min(end, len(data))
	if start >= end {
		return 0, false
	}
	return floats.Max(data[start:end]), true
}

// AnyNonZero reports whether any element of data is non-zero.
func AnyNonZero(data []float64) bool {
	for _, v := range data {
		if v != 0 {
			return true
		}
	}
	return false
}

// NonZeroIndices returns the ascending indices of non-zero elements.
func NonZeroIndices(data []float64) []int {
	var idx []int
	for i, v := range data {
		if v != 0 {
			idx = append(idx, i)
		}
	}
	return idx
}

// CeilFraction returns ceil(frac * n) computed on integers where possible so
// that e.g. 0.1*100 yields exactly 10 instead of 11 after float rounding.
func CeilFraction(frac float64, n int) int {
	v := frac * float64(n)
	r := math.Round(v)
	if math.Abs(v-r) < 1e-9 {
		return int(r)
	}
	return int(math.Ceil(v))
}

// SumSquares returns the sum of squared elements
func SumSquares(data []float64) float64 {
	return floats.Dot(data, data)
}
