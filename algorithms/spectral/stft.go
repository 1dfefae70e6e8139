package spectral

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-trigger/algorithms/common"
	"github.com/RyanBlaney/sonido-trigger/algorithms/windowing"
	"github.com/RyanBlaney/sonido-trigger/logging"
	"gonum.org/v1/gonum/mat"
)

// STFT computes centered, reflect-padded power spectrograms.
//
// Framing follows torch.stft(center=True, pad_mode="reflect"): the signal is
// padded by nFFT/2 on both sides, the window length equals nFFT, and the
// number of frames is 1 + (len+2*(nFFT/2)-nFFT)/hop.
type STFT struct {
	fft    *FFT
	logger logging.Logger
}

// SpectrogramOptions controls optional scaling of the power spectrogram
type SpectrogramOptions struct {
	// Normalized divides the power by the window energy sum(w^2),
	// torchaudio's normalized=True ("window" normalization).
	Normalized bool
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
		logger: logging.WithFields(logging.Fields{
			"component": "stft",
		}),
	}
}

// FrameCount returns the number of centered frames produced for a signal
// of length n.
func FrameCount(n, nFFT, hop int) int {
	pad := nFFT / 2
	return 1 + (n+2*pad-nFFT)/hop
}

// PowerSpectrogram returns a (nFFT/2+1) x frames matrix of |X|^2 values.
// Rows are frequency bins, columns are time frames.
func (s *STFT) PowerSpectrogram(signal []float64, nFFT, hop int, opts SpectrogramOptions) (*mat.Dense, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if nFFT <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if hop <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	logger := s.logger.WithFields(logging.Fields{
		"function":      "PowerSpectrogram",
		"signal_length": len(signal),
		"n_fft":         nFFT,
		"hop":           hop,
	})

	padded, err := common.ReflectPad(signal, nFFT/2)
	if err != nil {
		logger.Error(err, "Failed to pad signal")
		return nil, fmt.Errorf("signal too short for n_fft %d: %w", nFFT, err)
	}

	numFrames := FrameCount(len(signal), nFFT, hop)
	if numFrames <= 0 {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}
	freqBins := nFFT/2 + 1

	window := windowing.NewHann(nFFT, false)
	scale := 1.0
	if opts.Normalized {
		scale = 1.0 / common.SumSquares(window.GetCoefficients())
	}

	out := mat.NewDense(freqBins, numFrames, nil)
	raw := out.RawMatrix()

	jobs := make(chan int, numFrames)
	var wg sync.WaitGroup

	for range s.workerCount(numFrames) {
		wg.Add(1)
		go func() {
			defer wg.Done()

			frame := make([]float64, nFFT)
			for frameIdx := range jobs {
				start := frameIdx * hop
				copy(frame, padded[start:start+nFFT])
				// sizes always match, the error is unreachable
				_ = window.ApplyInPlace(frame)

				spectrum := s.fft.Compute(frame)
				for k := range freqBins {
					re, im := real(spectrum[k]), imag(spectrum[k])
					// each worker owns whole columns, writes never overlap
					raw.Data[k*raw.Stride+frameIdx] = (re*re + im*im) * scale
				}
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)
	wg.Wait()

	logger.Debug("Power spectrogram computed", logging.Fields{
		"freq_bins":   freqBins,
		"time_frames": numFrames,
	})

	return out, nil
}

// workerCount determines the number of workers based on workload
func (s *STFT) workerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}
	if numFrames < 1000 {
		return min(numCPU, 8)
	}
	return numCPU
}
