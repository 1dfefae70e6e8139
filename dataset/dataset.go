package dataset

import (
	"context"
	"fmt"
	"iter"
	"math/rand/v2"
	"runtime"

	"github.com/RyanBlaney/sonido-trigger/algorithms/common"
	"github.com/RyanBlaney/sonido-trigger/algorithms/filters"
	"github.com/RyanBlaney/sonido-trigger/algorithms/spectral"
	"github.com/RyanBlaney/sonido-trigger/config"
	"github.com/RyanBlaney/sonido-trigger/logging"
	"github.com/RyanBlaney/sonido-trigger/transcode"
	"github.com/RyanBlaney/sonido-trigger/trigger"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// WaveformLoader decodes an audio file to mono samples
type WaveformLoader interface {
	DecodeFile(ctx context.Context, filename string) (*transcode.AudioData, error)
}

// Example is one prepared training example.
//
// In waveform mode Waveform holds the samples and Features is nil. In the
// spectrogram modes Features is bins x frames; Label is the resized label
// when a mask was applied and the full sample-resolution label otherwise.
type Example struct {
	Index      int
	Pair       Pair
	SampleRate int
	Waveform   []float64
	Features   *mat.Dense
	Label      []float64
	Mask       *trigger.Mask
}

// Dataset is a finite, indexed sequence of examples. Examples are built
// lazily and the same index always yields the same example, so iteration
// can be restarted or parallelised freely.
type Dataset struct {
	cfg    *config.PipelineConfig
	pairs  []Pair
	waves  WaveformLoader
	labels LabelLoader
	masker *trigger.Masker
	stft   *spectral.STFT
	mel    *spectral.MelScale
	logger logging.Logger
}

// Option customises a Dataset
type Option func(*Dataset)

// WithWaveformLoader replaces the transcode decoder
func WithWaveformLoader(l WaveformLoader) Option {
	return func(d *Dataset) {
		d.waves = l
	}
}

// WithLabelLoader replaces the extension-based label loader
func WithLabelLoader(l LabelLoader) Option {
	return func(d *Dataset) {
		d.labels = l
	}
}

// New enumerates the configured split and prepares the transforms. When
// the built-in decoder is set to always use ffmpeg, the binary is checked
// up front.
func New(ctx context.Context, cfg *config.PipelineConfig, opts ...Option) (*Dataset, error) {
	if cfg == nil {
		cfg = config.DefaultPipelineConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.WithFields(logging.Fields{
		"component": "dataset",
		"root":      cfg.Root,
		"split":     cfg.Split,
		"mode":      cfg.Mode,
	})

	pairs, err := Enumerate(cfg.Root, cfg.Split, cfg.LabelExtension, cfg.VerifyStems)
	if err != nil {
		logger.Error(err, "Failed to enumerate example files")
		return nil, err
	}

	decoder := transcode.NewDecoder(cfg.DecoderConfig())
	d := &Dataset{
		cfg:    cfg,
		pairs:  pairs,
		waves:  decoder,
		labels: FileLabelLoader{},
		stft:   spectral.NewSTFT(),
		mel:    spectral.NewMelScale(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.waves == decoder {
		if err := decoder.ValidateConfig(); err != nil {
			logger.Error(err, "Invalid decoder configuration")
			return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
		}
		if cfg.Decoder.ForceFFmpeg {
			if err := decoder.CheckFFmpeg(ctx); err != nil {
				logger.Error(err, "Ffmpeg is required but not usable")
				return nil, err
			}
		}
	}

	if cfg.Mask && cfg.Mode != config.ModeWaveform {
		d.masker, err = trigger.NewMasker(cfg.MaskConfig())
		if err != nil {
			logger.Error(err, "Failed to create masker")
			return nil, err
		}
	}

	logger.Info("Dataset ready", logging.Fields{
		"examples": len(pairs),
	})

	return d, nil
}

// Len returns the number of examples
func (d *Dataset) Len() int {
	return len(d.pairs)
}

// Pairs returns a copy of the file pairs in example order
func (d *Dataset) Pairs() []Pair {
	out := make([]Pair, len(d.pairs))
	copy(out, d.pairs)
	return out
}

// Rand returns the random source used for example index. It depends only
// on the configured seed and the index.
func (d *Dataset) Rand(index int) *rand.Rand {
	return rand.New(rand.NewPCG(d.cfg.Seed, uint64(index)))
}

// Example loads and prepares the example at index
func (d *Dataset) Example(ctx context.Context, index int) (*Example, error) {
	if index < 0 || index >= len(d.pairs) {
		return nil, fmt.Errorf("dataset: index %d out of range [0, %d)", index, len(d.pairs))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pair := d.pairs[index]
	ctx = logging.ContextWithFields(ctx, logging.Fields{
		"index": index,
		"data":  pair.Data,
	})
	logger := d.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "Example",
	})

	audio, err := d.waves.DecodeFile(ctx, pair.Data)
	if err != nil {
		logger.Error(err, "Failed to load waveform")
		return nil, err
	}
	label, err := d.labels.LoadLabel(ctx, pair.Label)
	if err != nil {
		logger.Error(err, "Failed to load label")
		return nil, err
	}

	ex := &Example{
		Index:      index,
		Pair:       pair,
		SampleRate: audio.SampleRate,
		Label:      label,
	}

	if pair.Positive() && !common.AnyNonZero(label) {
		logger.Warn("Positive example has an all-zero label")
	}

	samples := audio.PCM
	if d.cfg.RemoveDC {
		samples = d.dcFilter(audio.SampleRate).ProcessBuffer(samples)
	}

	var features *mat.Dense
	switch d.cfg.Mode {
	case config.ModeWaveform:
		ex.Waveform = samples
		return ex, nil

	case config.ModeSpectrogram:
		params, err := trigger.DeriveTransformParams(d.cfg.FrequencyBins, d.cfg.TimeFrames, len(samples))
		if err != nil {
			logger.Error(err, "Failed to derive transform parameters")
			return nil, err
		}
		features, err = d.stft.PowerSpectrogram(samples, params.NFFT, params.Hop, spectral.SpectrogramOptions{})
		if err != nil {
			logger.Error(err, "Failed to compute spectrogram")
			return nil, err
		}
		if rows, _ := features.Dims(); rows != params.FreqBins() {
			err := fmt.Errorf("spectrogram has %d bins, want %d: %w", rows, params.FreqBins(), trigger.ErrShapeMismatch)
			logger.Error(err, "Unexpected spectrogram shape")
			return nil, err
		}

	case config.ModeMel:
		features, err = d.mel.MelSpectrogram(samples, spectral.MelOptions{
			SampleRate: audio.SampleRate,
			NFFT:       d.cfg.MelFFTSize,
			NumMels:    d.cfg.FrequencyBins,
			Normalized: d.cfg.Normalize,
		})
		if err != nil {
			logger.Error(err, "Failed to compute mel spectrogram")
			return nil, err
		}

	default:
		return nil, fmt.Errorf("dataset: unknown mode %q", d.cfg.Mode)
	}

	if d.masker == nil {
		ex.Features = features
		return ex, nil
	}

	res, err := d.masker.Apply(features, label, d.Rand(index))
	if err != nil {
		logger.Error(err, "Failed to mask features")
		return nil, err
	}
	ex.Features = res.Features
	ex.Label = res.Label
	ex.Mask = &res.Mask

	return ex, nil
}

func (d *Dataset) dcFilter(sampleRate int) *filters.DCRemoval {
	if d.cfg.DCCutoffHz > 0 {
		return filters.NewDCRemovalWithCutoff(sampleRate, d.cfg.DCCutoffHz)
	}
	return filters.NewDCRemoval()
}

// All yields every example in order. Iteration stops at the first error,
// which is yielded with a nil example.
func (d *Dataset) All(ctx context.Context) iter.Seq2[*Example, error] {
	return func(yield func(*Example, error) bool) {
		for i := range d.pairs {
			ex, err := d.Example(ctx, i)
			if !yield(ex, err) || err != nil {
				return
			}
		}
	}
}

// Materialize builds every example using up to workers goroutines
// (runtime.NumCPU when workers <= 0). The result is in index order; the
// first failure cancels the remaining work.
func (d *Dataset) Materialize(ctx context.Context, workers int) ([]*Example, error) {
	if workers <= 0 {
		workers = d.cfg.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	out := make([]*Example, len(d.pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range d.pairs {
		g.Go(func() error {
			ex, err := d.Example(gctx, i)
			if err != nil {
				return fmt.Errorf("example %d: %w", i, err)
			}
			out[i] = ex
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.logger.Error(err, "Failed to materialize dataset")
		return nil, err
	}

	d.logger.Debug("Dataset materialized", logging.Fields{
		"examples": len(out),
		"workers":  workers,
	})

	return out, nil
}
