package trigger

import "fmt"

// TransformParams are the STFT parameters for one waveform
type TransformParams struct {
	NFFT int `json:"n_fft" msgpack:"n_fft"`
	Hop  int `json:"hop" msgpack:"hop"`
}

// FreqBins is the number of one-sided frequency bins NFFT produces
func (p TransformParams) FreqBins() int {
	return p.NFFT/2 + 1
}

// DeriveTransformParams returns n_fft = 2*freqBins-1 and
// hop = floor(waveLen/timeFrames).
//
// Fed into a centered, reflect-padded STFT this gives exactly freqBins rows.
// The column count is 1 + (waveLen-1)/hop, which equals timeFrames when
// waveLen is a multiple of timeFrames and drifts above it otherwise.
func DeriveTransformParams(freqBins, timeFrames, waveLen int) (TransformParams, error) {
	if freqBins < 1 {
		return TransformParams{}, fmt.Errorf("frequency bins must be >= 1, got %d: %w", freqBins, ErrInvalidConfiguration)
	}
	if timeFrames < 1 {
		return TransformParams{}, fmt.Errorf("time frames must be >= 1, got %d: %w", timeFrames, ErrInvalidConfiguration)
	}

	hop := waveLen / timeFrames
	if hop < 1 {
		return TransformParams{}, fmt.Errorf("waveform of %d samples is shorter than %d frames (hop < 1): %w",
			waveLen, timeFrames, ErrInvalidConfiguration)
	}

	return TransformParams{
		NFFT: 2*freqBins - 1,
		Hop:  hop,
	}, nil
}
