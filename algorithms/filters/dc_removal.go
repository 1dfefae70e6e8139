package filters

import (
	"math"
)

// DCRemoval is a one-pole DC blocker:
//
//	y[n] = x[n] - x[n-1] + R * y[n-1]
//
// See Julius O. Smith III, "Introduction to Digital Filters", DC Blocker.
// Recorded clips often carry a small offset that would otherwise land in
// spectrogram bin 0.
type DCRemoval struct {
	poleLocation float64 // R, 0 < R < 1

	x1 float64
	y1 float64
}

// NewDCRemoval creates a filter with R = 0.995
func NewDCRemoval() *DCRemoval {
	return &DCRemoval{poleLocation: 0.995}
}

// NewDCRemovalWithCutoff derives R from a -3dB cutoff using
// R = 1 - 2*pi*fc/fs, clamped into (0, 1).
func NewDCRemovalWithCutoff(sampleRate int, cutoffFreq float64) *DCRemoval {
	dc := NewDCRemoval()
	if sampleRate > 0 && cutoffFreq > 0 {
		r := 1.0 - (2.0 * math.Pi * cutoffFreq / float64(sampleRate))
		dc.poleLocation = math.Min(0.999, math.Max(0.001, r))
	}
	return dc
}

// Process filters a single sample
func (dc *DCRemoval) Process(input float64) float64 {
	output := input - dc.x1 + dc.poleLocation*dc.y1
	dc.x1 = input
	dc.y1 = output
	return output
}

// ProcessBuffer filters a whole buffer into a new slice. State carries over
// between calls, so use a fresh filter per clip.
func (dc *DCRemoval) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))
	for i, sample := range input {
		output[i] = dc.Process(sample)
	}
	return output
}
