package spectral

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-trigger/logging"
	"gonum.org/v1/gonum/mat"
)

// MelScale provides HTK mel conversions and mel spectrograms
type MelScale struct {
	stft   *STFT
	logger logging.Logger
}

// MelOptions configures a mel spectrogram. Zero values select the
// torchaudio MelSpectrogram defaults.
type MelOptions struct {
	SampleRate int
	NFFT       int
	Hop        int     // default NFFT/2
	NumMels    int     // default 128
	FMin       float64 // default 0
	FMax       float64 // default SampleRate/2
	Normalized bool
}

// NewMelScale creates a new mel scale converter
func NewMelScale() *MelScale {
	return &MelScale{
		stft: NewSTFT(),
		logger: logging.WithFields(logging.Fields{
			"component": "mel_scale",
		}),
	}
}

// HzToMel converts frequency in Hz to mel scale
func (ms *MelScale) HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func (ms *MelScale) MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// FilterBank builds a numMels x (nFFT/2+1) matrix of triangular filters.
//
// Bin centre frequencies are spaced linearly from 0 to sampleRate/2 and the
// triangles are evaluated continuously (no rounding of edges to bins). A
// filter narrower than the bin spacing can fall between bins and come out
// all zero, as it does in torchaudio.
func (ms *MelScale) FilterBank(numMels, nFFT, sampleRate int, fMin, fMax float64) (*mat.Dense, error) {
	if numMels <= 0 || nFFT <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid filter bank size: mels=%d n_fft=%d sample_rate=%d", numMels, nFFT, sampleRate)
	}
	if fMax <= fMin {
		return nil, fmt.Errorf("invalid frequency range [%g, %g]", fMin, fMax)
	}

	numBins := nFFT/2 + 1
	nyquist := float64(sampleRate / 2)

	binFreqs := make([]float64, numBins)
	for k := range binFreqs {
		if numBins > 1 {
			binFreqs[k] = nyquist * float64(k) / float64(numBins-1)
		}
	}

	lowMel, highMel := ms.HzToMel(fMin), ms.HzToMel(fMax)
	points := make([]float64, numMels+2)
	for i := range points {
		points[i] = ms.MelToHz(lowMel + (highMel-lowMel)*float64(i)/float64(numMels+1))
	}

	bank := mat.NewDense(numMels, numBins, nil)
	for m := range numMels {
		left, center, right := points[m], points[m+1], points[m+2]
		for k, f := range binFreqs {
			rising := (f - left) / (center - left)
			falling := (right - f) / (right - center)
			if w := math.Min(rising, falling); w > 0 {
				bank.Set(m, k, w)
			}
		}
	}

	return bank, nil
}

// MelSpectrogram computes a numMels x frames mel power spectrogram
func (ms *MelScale) MelSpectrogram(signal []float64, opts MelOptions) (*mat.Dense, error) {
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive")
	}
	if opts.NFFT <= 0 {
		return nil, fmt.Errorf("n_fft must be positive")
	}
	if opts.Hop == 0 {
		opts.Hop = opts.NFFT / 2
	}
	if opts.NumMels == 0 {
		opts.NumMels = 128
	}
	if opts.FMax == 0 {
		opts.FMax = float64(opts.SampleRate / 2)
	}

	logger := ms.logger.WithFields(logging.Fields{
		"function":    "MelSpectrogram",
		"sample_rate": opts.SampleRate,
		"n_fft":       opts.NFFT,
		"n_mels":      opts.NumMels,
	})

	power, err := ms.stft.PowerSpectrogram(signal, opts.NFFT, opts.Hop, SpectrogramOptions{Normalized: opts.Normalized})
	if err != nil {
		logger.Error(err, "Failed to compute power spectrogram")
		return nil, err
	}

	bank, err := ms.FilterBank(opts.NumMels, opts.NFFT, opts.SampleRate, opts.FMin, opts.FMax)
	if err != nil {
		logger.Error(err, "Failed to build mel filter bank")
		return nil, err
	}

	_, frames := power.Dims()
	mel := mat.NewDense(opts.NumMels, frames, nil)
	mel.Mul(bank, power)

	logger.Debug("Mel spectrogram computed", logging.Fields{
		"time_frames": frames,
	})

	return mel, nil
}
