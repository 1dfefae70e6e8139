// Package config loads the example-preparation pipeline configuration from
// defaults, an optional YAML file and TRIGGER_* environment variables.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/RyanBlaney/sonido-trigger/logging"
	"github.com/RyanBlaney/sonido-trigger/transcode"
	"github.com/RyanBlaney/sonido-trigger/trigger"
	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "TRIGGER_"

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Output modes
const (
	ModeWaveform    = "waveform"
	ModeSpectrogram = "spectrogram"
	ModeMel         = "mel"
)

// PipelineConfig configures one dataset split
type PipelineConfig struct {
	Root  string `json:"root" yaml:"root" env:"ROOT, overwrite" validate:"required"`
	Split string `json:"split" yaml:"split" env:"SPLIT, overwrite" validate:"oneof=test train"`

	// Mode selects raw waveforms, power spectrograms or mel spectrograms
	Mode string `json:"mode" yaml:"mode" env:"MODE, overwrite" validate:"oneof=waveform spectrogram mel"`

	FrequencyBins int `json:"frequency_bins" yaml:"frequency_bins" env:"FREQUENCY_BINS, overwrite" validate:"gte=1"`
	TimeFrames    int `json:"time_frames" yaml:"time_frames" env:"TIME_FRAMES, overwrite" validate:"gte=1"`

	Mask                 bool    `json:"mask" yaml:"mask" env:"MASK, overwrite"`
	TimeMaskWidth        int     `json:"time_mask_width" yaml:"time_mask_width" env:"TIME_MASK_WIDTH, overwrite" validate:"gte=0"`
	FreqMaskWidth        int     `json:"freq_mask_width" yaml:"freq_mask_width" env:"FREQ_MASK_WIDTH, overwrite" validate:"gte=0"`
	ReservedFreqFraction float64 `json:"reserved_freq_fraction" yaml:"reserved_freq_fraction" env:"RESERVED_FREQ_FRACTION, overwrite" validate:"gt=0,lt=1"`
	ResampleWindow       string  `json:"resample_window" yaml:"resample_window" env:"RESAMPLE_WINDOW, overwrite" validate:"oneof=literal segment"`

	// Mel mode only
	MelFFTSize int  `json:"mel_fft_size" yaml:"mel_fft_size" env:"MEL_FFT_SIZE, overwrite" validate:"gte=1"`
	Normalize  bool `json:"normalize" yaml:"normalize" env:"NORMALIZE, overwrite"`

	RemoveDC bool `json:"remove_dc" yaml:"remove_dc" env:"REMOVE_DC, overwrite"`
	// DCCutoffHz sets the DC filter's -3dB point; zero keeps the fixed pole
	DCCutoffHz float64 `json:"dc_cutoff_hz" yaml:"dc_cutoff_hz" env:"DC_CUTOFF_HZ, overwrite" validate:"gte=0"`

	VerifyStems    bool   `json:"verify_stems" yaml:"verify_stems" env:"VERIFY_STEMS, overwrite"`
	LabelExtension string `json:"label_extension" yaml:"label_extension" env:"LABEL_EXTENSION, overwrite" validate:"oneof=json msgpack f32"`

	Seed    uint64 `json:"seed" yaml:"seed" env:"SEED, overwrite"`
	Workers int    `json:"workers" yaml:"workers" env:"WORKERS, overwrite" validate:"gte=0"`

	LogLevel string `json:"log_level" yaml:"log_level" env:"LOG_LEVEL, overwrite" validate:"oneof=debug info warn error fatal"`

	Decoder DecoderSettings `json:"decoder" yaml:"decoder" env:", prefix=DECODER_"`
}

// DecoderSettings configures waveform loading
type DecoderSettings struct {
	TargetSampleRate int           `json:"target_sample_rate" yaml:"target_sample_rate" env:"TARGET_SAMPLE_RATE, overwrite" validate:"gte=0"`
	FFmpegPath       string        `json:"ffmpeg_path" yaml:"ffmpeg_path" env:"FFMPEG_PATH, overwrite" validate:"required"`
	FFprobePath      string        `json:"ffprobe_path" yaml:"ffprobe_path" env:"FFPROBE_PATH, overwrite" validate:"required"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout" env:"TIMEOUT, overwrite" validate:"gte=0"`
	ForceFFmpeg      bool          `json:"force_ffmpeg" yaml:"force_ffmpeg" env:"FORCE_FFMPEG, overwrite"`
}

// DefaultPipelineConfig returns the defaults used for keyword-spotting
// training data: 101 bins x 200 frames, masks of 100 frames and 2 bins.
func DefaultPipelineConfig() *PipelineConfig {
	decoder := transcode.DefaultDecoderConfig()
	return &PipelineConfig{
		Root:                 "data",
		Split:                "test",
		Mode:                 ModeMel,
		FrequencyBins:        101,
		TimeFrames:           200,
		Mask:                 true,
		TimeMaskWidth:        100,
		FreqMaskWidth:        2,
		ReservedFreqFraction: trigger.DefaultReservedFreqFraction,
		ResampleWindow:       trigger.WindowLiteral.String(),
		MelFFTSize:           200,
		Normalize:            true,
		LabelExtension:       "json",
		Seed:                 1,
		Workers:              0,
		LogLevel:             "info",
		Decoder: DecoderSettings{
			TargetSampleRate: decoder.TargetSampleRate,
			FFmpegPath:       decoder.FFmpegPath,
			FFprobePath:      decoder.FFprobePath,
			Timeout:          decoder.Timeout,
		},
	}
}

type loadOptions struct {
	lookuper envconfig.Lookuper
}

// Option customises Load
type Option func(*loadOptions)

// WithLookuper replaces the process environment, mainly for tests
func WithLookuper(l envconfig.Lookuper) Option {
	return func(o *loadOptions) {
		o.lookuper = l
	}
}

// Load builds a configuration: defaults, then the YAML file at path (when
// path is non-empty), then TRIGGER_* environment variables, then validation.
func Load(ctx context.Context, path string, opts ...Option) (*PipelineConfig, error) {
	o := loadOptions{lookuper: envconfig.OsLookuper()}
	for _, opt := range opts {
		opt(&o)
	}

	logger := logging.WithFields(logging.Fields{
		"component": "config",
		"function":  "Load",
		"path":      path,
	})

	cfg := DefaultPipelineConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error(err, "Failed to read config file")
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decodeYAML(data, cfg); err != nil {
			logger.Error(err, "Failed to parse config file")
			return nil, err
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, o.lookuper),
	}); err != nil {
		logger.Error(err, "Failed to apply environment overrides")
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error(err, "Configuration failed validation")
		return nil, err
	}

	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	logging.SetLevel(level)

	logger.Debug("Configuration loaded", logging.Fields{
		"root":  cfg.Root,
		"split": cfg.Split,
		"mode":  cfg.Mode,
	})

	return cfg, nil
}

func decodeYAML(data []byte, cfg *PipelineConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("config: parse yaml: %w", err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and that the frequency mask fits above the
// reserved low band.
func (c *PipelineConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.Mask && c.Mode != ModeWaveform {
		low := trigger.LowestFreqStart(c.FrequencyBins, c.ReservedFreqFraction)
		if c.FreqMaskWidth > c.FrequencyBins-low {
			return fmt.Errorf("%w: frequency mask of %d bins does not fit above bin %d of %d",
				ErrInvalidConfig, c.FreqMaskWidth, low, c.FrequencyBins)
		}
		if c.TimeMaskWidth >= c.TimeFrames {
			logging.WithFields(logging.Fields{"component": "config"}).Warn("Time mask covers the whole clip", logging.Fields{
				"time_mask_width": c.TimeMaskWidth,
				"time_frames":     c.TimeFrames,
			})
		}
	}

	return nil
}

// MaskConfig converts the masking settings
func (c *PipelineConfig) MaskConfig() trigger.MaskConfig {
	window, _ := trigger.ParseWindowMode(c.ResampleWindow)
	return trigger.MaskConfig{
		TimeWidth:            c.TimeMaskWidth,
		FreqWidth:            c.FreqMaskWidth,
		ReservedFreqFraction: c.ReservedFreqFraction,
		Window:               window,
	}
}

// DecoderConfig converts the decoder settings
func (c *PipelineConfig) DecoderConfig() *transcode.DecoderConfig {
	return &transcode.DecoderConfig{
		TargetSampleRate: c.Decoder.TargetSampleRate,
		FFmpegPath:       c.Decoder.FFmpegPath,
		FFprobePath:      c.Decoder.FFprobePath,
		Timeout:          c.Decoder.Timeout,
		ForceFFmpeg:      c.Decoder.ForceFFmpeg,
	}
}

// Level parses LogLevel
func (c *PipelineConfig) Level() (logging.Level, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return level, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return level, nil
}
