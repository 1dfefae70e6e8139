package trigger

import (
	"testing"

	"github.com/RyanBlaney/sonido-trigger/algorithms/spectral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTransformParams(t *testing.T) {
	p, err := DeriveTransformParams(101, 511, 16000)
	require.NoError(t, err)
	assert.Equal(t, 201, p.NFFT)
	assert.Equal(t, 31, p.Hop)
	assert.Equal(t, 101, p.FreqBins())
}

func TestDeriveTransformParams_Invalid(t *testing.T) {
	tests := []struct {
		name                  string
		bins, frames, waveLen int
	}{
		{"zero bins", 0, 200, 16000},
		{"negative frames", 101, -1, 16000},
		{"zero frames", 101, 0, 16000},
		{"hop below one", 101, 200, 199},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeriveTransformParams(tt.bins, tt.frames, tt.waveLen)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestDeriveTransformParams_SpectrogramShape(t *testing.T) {
	tests := []struct {
		bins, frames, waveLen int
	}{
		{101, 200, 16000},
		{101, 100, 16000},
		{64, 50, 8000},
		{33, 250, 4000},
		{101, 511, 16000},
	}

	stft := spectral.NewSTFT()
	for _, tt := range tests {
		p, err := DeriveTransformParams(tt.bins, tt.frames, tt.waveLen)
		require.NoError(t, err)

		signal := make([]float64, tt.waveLen)
		for i := range signal {
			signal[i] = float64(i%17) - 8
		}

		spec, err := stft.PowerSpectrogram(signal, p.NFFT, p.Hop, spectral.SpectrogramOptions{})
		require.NoError(t, err)

		rows, cols := spec.Dims()
		assert.Equal(t, tt.bins, rows)
		assert.Equal(t, 1+(tt.waveLen-1)/p.Hop, cols)
		if tt.waveLen%tt.frames == 0 {
			assert.InDelta(t, tt.frames, cols, 1)
		}
	}
}
