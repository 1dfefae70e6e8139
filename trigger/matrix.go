package trigger

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// CheckAligned returns ErrShapeMismatch unless label has one value per
// column of features.
func CheckAligned(features mat.Matrix, label []float64) error {
	_, cols := features.Dims()
	if len(label) != cols {
		return fmt.Errorf("label has %d frames, features have %d: %w", len(label), cols, ErrShapeMismatch)
	}
	return nil
}

// clampRange clips [start, start+width) to [0, limit)
func clampRange(start, width, limit int) (int, int) {
	start = max(0, min(start, limit))
	end := max(start, min(start+width, limit))
	return start, end
}

func zeroColumns(m *mat.Dense, start, end int) {
	rows, _ := m.Dims()
	for r := range rows {
		for c := start; c < end; c++ {
			m.Set(r, c, 0)
		}
	}
}

func zeroRows(m *mat.Dense, start, end int) {
	_, cols := m.Dims()
	zeros := make([]float64, cols)
	for r := start; r < end; r++ {
		m.SetRow(r, zeros)
	}
}
