package trigger

import (
	"fmt"

	"github.com/RyanBlaney/sonido-trigger/algorithms/common"
	"github.com/RyanBlaney/sonido-trigger/logging"
	"gonum.org/v1/gonum/mat"
)

// DefaultReservedFreqFraction is the share of lowest frequency bins that a
// frequency mask may never start in.
const DefaultReservedFreqFraction = 0.1

// Rand is the randomness a Masker draws from. *rand.Rand from math/rand/v2
// satisfies it; pass a seeded one for reproducible masks.
type Rand interface {
	// IntN returns a uniform value in [0, n). n > 0.
	IntN(n int) int
}

// Mask is the pair of bands zeroed by one augmentation, already clamped to
// the matrix bounds. Both ranges are half-open.
type Mask struct {
	TimeStart int `json:"time_start" msgpack:"time_start"`
	TimeEnd   int `json:"time_end" msgpack:"time_end"`
	FreqStart int `json:"freq_start" msgpack:"freq_start"`
	FreqEnd   int `json:"freq_end" msgpack:"freq_end"`
}

// MaskConfig configures a Masker
type MaskConfig struct {
	TimeWidth int // t_l, frames zeroed along time
	FreqWidth int // f_l, bins zeroed along frequency

	// ReservedFreqFraction defaults to DefaultReservedFreqFraction when zero.
	ReservedFreqFraction float64
	Window               WindowMode
}

// MaskResult is the output of one augmentation
type MaskResult struct {
	Features *mat.Dense
	Label    []float64
	Mask     Mask
}

// Masker applies one time mask and one frequency mask per call
type Masker struct {
	cfg    MaskConfig
	logger logging.Logger
}

// NewMasker validates cfg and returns a Masker
func NewMasker(cfg MaskConfig) (*Masker, error) {
	if cfg.TimeWidth < 0 {
		return nil, fmt.Errorf("time mask width must be >= 0, got %d: %w", cfg.TimeWidth, ErrInvalidConfiguration)
	}
	if cfg.FreqWidth < 0 {
		return nil, fmt.Errorf("frequency mask width must be >= 0, got %d: %w", cfg.FreqWidth, ErrInvalidConfiguration)
	}
	if cfg.ReservedFreqFraction == 0 {
		cfg.ReservedFreqFraction = DefaultReservedFreqFraction
	}
	if cfg.ReservedFreqFraction < 0 || cfg.ReservedFreqFraction >= 1 {
		return nil, fmt.Errorf("reserved frequency fraction must be in [0, 1), got %g: %w",
			cfg.ReservedFreqFraction, ErrInvalidConfiguration)
	}

	return &Masker{
		cfg: cfg,
		logger: logging.WithFields(logging.Fields{
			"component":  "masker",
			"time_width": cfg.TimeWidth,
			"freq_width": cfg.FreqWidth,
		}),
	}, nil
}

// Config returns the effective configuration
func (m *Masker) Config() MaskConfig {
	return m.cfg
}

// ReservedTimeFrames marks the frames a time mask may not start at: every
// frame whose resized label is non-zero, plus the timeWidth frames right
// before the first such frame. Later trigger runs get no lead-in buffer.
func ReservedTimeFrames(resized []float64, timeWidth int) []bool {
	reserved := make([]bool, len(resized))

	onsets := common.NonZeroIndices(resized)
	if len(onsets) == 0 {
		return reserved
	}

	first := onsets[0]
	for i := max(0, first-timeWidth); i < first; i++ {
		reserved[i] = true
	}
	for _, i := range onsets {
		reserved[i] = true
	}

	return reserved
}

// LowestFreqStart returns ceil(fraction*bins), the first bin a frequency
// mask may start at.
func LowestFreqStart(bins int, fraction float64) int {
	return common.CeilFraction(fraction, bins)
}

// Apply resamples label onto the columns of features, then returns a masked
// copy of features along with the resized label. features is not modified.
//
// Bands running past the matrix edge are clamped, so a mask starting near
// the end zeroes fewer than TimeWidth frames (or FreqWidth bins).
func (m *Masker) Apply(features mat.Matrix, label []float64, rng Rand) (*MaskResult, error) {
	bins, frames := features.Dims()
	if bins == 0 || frames == 0 {
		return nil, fmt.Errorf("empty feature matrix %dx%d: %w", bins, frames, ErrInvalidConfiguration)
	}
	if rng == nil {
		return nil, fmt.Errorf("nil random source: %w", ErrInvalidConfiguration)
	}

	logger := m.logger.WithFields(logging.Fields{
		"function": "Apply",
		"bins":     bins,
		"frames":   frames,
	})

	if m.cfg.Window == WindowLiteral && LiteralWindowHasGaps(len(label), frames) {
		logger.Warn("Literal resample windows leave gaps, trigger samples may be skipped", logging.Fields{
			"label_length": len(label),
		})
	}

	resized, err := ResampleLabelWithMode(label, frames, m.cfg.Window)
	if err != nil {
		logger.Error(err, "Failed to resample label")
		return nil, err
	}
	if err := CheckAligned(features, resized); err != nil {
		logger.Error(err, "Resampled label does not match feature frames")
		return nil, err
	}

	timeStart, err := m.pickTimeStart(resized, rng)
	if err != nil {
		logger.Error(err, "Failed to place time mask")
		return nil, err
	}

	freqStart, err := m.pickFreqStart(bins, rng)
	if err != nil {
		logger.Error(err, "Failed to place frequency mask")
		return nil, err
	}

	var mask Mask
	mask.TimeStart, mask.TimeEnd = clampRange(timeStart, m.cfg.TimeWidth, frames)
	mask.FreqStart, mask.FreqEnd = clampRange(freqStart, m.cfg.FreqWidth, bins)

	out := mat.DenseCopyOf(features)
	zeroColumns(out, mask.TimeStart, mask.TimeEnd)
	zeroRows(out, mask.FreqStart, mask.FreqEnd)

	logger.Debug("Mask applied", logging.Fields{
		"time_start": mask.TimeStart,
		"time_end":   mask.TimeEnd,
		"freq_start": mask.FreqStart,
		"freq_end":   mask.FreqEnd,
	})

	return &MaskResult{
		Features: out,
		Label:    resized,
		Mask:     mask,
	}, nil
}

func (m *Masker) pickTimeStart(resized []float64, rng Rand) (int, error) {
	reserved := ReservedTimeFrames(resized, m.cfg.TimeWidth)

	candidates := make([]int, 0, len(reserved))
	for i, r := range reserved {
		if !r {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return 0, fmt.Errorf("all %d frames are reserved by the trigger label: %w", len(resized), ErrNoValidMaskPosition)
	}

	return candidates[rng.IntN(len(candidates))], nil
}

func (m *Masker) pickFreqStart(bins int, rng Rand) (int, error) {
	low := LowestFreqStart(bins, m.cfg.ReservedFreqFraction)
	span := bins - low
	if span <= 0 || m.cfg.FreqWidth > span {
		return 0, fmt.Errorf("frequency mask of %d bins does not fit above bin %d of %d: %w",
			m.cfg.FreqWidth, low, bins, ErrInvalidConfiguration)
	}

	return low + rng.IntN(span), nil
}

// ApplyMask is a one-shot helper: mask features with a time band of width
// timeWidth and a frequency band of width freqWidth using the literal
// resampling window.
func ApplyMask(features mat.Matrix, label []float64, timeWidth, freqWidth int, rng Rand) (*mat.Dense, []float64, error) {
	masker, err := NewMasker(MaskConfig{TimeWidth: timeWidth, FreqWidth: freqWidth})
	if err != nil {
		return nil, nil, err
	}

	res, err := masker.Apply(features, label, rng)
	if err != nil {
		return nil, nil, err
	}
	return res.Features, res.Label, nil
}
