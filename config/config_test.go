package config

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-trigger/logging"
	"github.com/RyanBlaney/sonido-trigger/trigger"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv() Option {
	return WithLookuper(envconfig.MapLookuper(map[string]string{}))
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(context.Background(), "", noEnv())
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.Root)
	assert.Equal(t, "test", cfg.Split)
	assert.Equal(t, ModeMel, cfg.Mode)
	assert.Equal(t, 101, cfg.FrequencyBins)
	assert.Equal(t, 200, cfg.TimeFrames)
	assert.Equal(t, 100, cfg.TimeMaskWidth)
	assert.Equal(t, 2, cfg.FreqMaskWidth)
	assert.Equal(t, 200, cfg.MelFFTSize)
	assert.True(t, cfg.Mask)
	assert.True(t, cfg.Normalize)
	assert.Equal(t, "literal", cfg.ResampleWindow)
	assert.Equal(t, 30*time.Second, cfg.Decoder.Timeout)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeYAML(t, `
root: /datasets/kws
split: train
mode: spectrogram
frequency_bins: 64
time_frames: 511
mask: false
resample_window: segment
decoder:
  target_sample_rate: 16000
  timeout: 45s
`)

	cfg, err := Load(context.Background(), path, noEnv())
	require.NoError(t, err)

	assert.Equal(t, "/datasets/kws", cfg.Root)
	assert.Equal(t, "train", cfg.Split)
	assert.Equal(t, ModeSpectrogram, cfg.Mode)
	assert.Equal(t, 64, cfg.FrequencyBins)
	assert.Equal(t, 511, cfg.TimeFrames)
	assert.False(t, cfg.Mask)
	assert.Equal(t, 16000, cfg.Decoder.TargetSampleRate)
	assert.Equal(t, 45*time.Second, cfg.Decoder.Timeout)
	// untouched keys keep defaults
	assert.Equal(t, 2, cfg.FreqMaskWidth)
	assert.Equal(t, trigger.WindowSegment, cfg.MaskConfig().Window)
}

func useTestLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := logging.GetGlobalLogger()
	t.Cleanup(func() { logging.SetGlobalLogger(prev) })

	var out bytes.Buffer
	logging.SetGlobalLogger(logging.NewWriterLogger(&out, &out, false))
	return &out
}

func TestLoad_AppliesLogLevel(t *testing.T) {
	out := useTestLogger(t)

	_, err := Load(context.Background(), "", noEnv())
	require.NoError(t, err)
	logging.Debug("before debug level")
	assert.NotContains(t, out.String(), "before debug level")

	env := envconfig.MapLookuper(map[string]string{"TRIGGER_LOG_LEVEL": "debug"})
	_, err = Load(context.Background(), "", WithLookuper(env))
	require.NoError(t, err)
	logging.Debug("after debug level")
	assert.Contains(t, out.String(), "[DEBUG] after debug level")

	env = envconfig.MapLookuper(map[string]string{"TRIGGER_LOG_LEVEL": "fatal"})
	_, err = Load(context.Background(), "", WithLookuper(env))
	require.NoError(t, err)
	logging.Error(errors.New("boom"), "quiet error")
	assert.NotContains(t, out.String(), "quiet error")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeYAML(t, "split: train\ntime_frames: 300\n")

	env := envconfig.MapLookuper(map[string]string{
		"TRIGGER_TIME_FRAMES":            "250",
		"TRIGGER_SEED":                   "99",
		"TRIGGER_LOG_LEVEL":              "debug",
		"TRIGGER_DECODER_FFMPEG_PATH":    "/opt/ffmpeg/bin/ffmpeg",
		"TRIGGER_TIME_MASK_WIDTH":        "20",
		"UNRELATED_TIME_FRAMES_VARIABLE": "1",
	})

	cfg, err := Load(context.Background(), path, WithLookuper(env))
	require.NoError(t, err)

	assert.Equal(t, "train", cfg.Split)
	assert.Equal(t, 250, cfg.TimeFrames)
	assert.Equal(t, uint64(99), cfg.Seed)
	assert.Equal(t, 20, cfg.TimeMaskWidth)
	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, logging.DebugLevel, level)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.DecoderConfig().FFmpegPath)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"), noEnv())
		assert.Error(t, err)
	})

	t.Run("unknown yaml key", func(t *testing.T) {
		_, err := Load(context.Background(), writeYAML(t, "frequencies: 10\n"), noEnv())
		assert.Error(t, err)
	})

	t.Run("bad env value", func(t *testing.T) {
		env := envconfig.MapLookuper(map[string]string{"TRIGGER_TIME_FRAMES": "many"})
		_, err := Load(context.Background(), "", WithLookuper(env))
		assert.Error(t, err)
	})

	t.Run("invalid mode", func(t *testing.T) {
		_, err := Load(context.Background(), writeYAML(t, "mode: mfcc\n"), noEnv())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PipelineConfig)
		wantErr bool
	}{
		{"defaults", func(*PipelineConfig) {}, false},
		{"zero bins", func(c *PipelineConfig) { c.FrequencyBins = 0 }, true},
		{"zero frames", func(c *PipelineConfig) { c.TimeFrames = 0 }, true},
		{"negative time mask", func(c *PipelineConfig) { c.TimeMaskWidth = -1 }, true},
		{"bad split", func(c *PipelineConfig) { c.Split = "validation" }, true},
		{"bad label extension", func(c *PipelineConfig) { c.LabelExtension = "pt" }, true},
		{"reserved fraction of one", func(c *PipelineConfig) { c.ReservedFreqFraction = 1 }, true},
		{"frequency mask too wide", func(c *PipelineConfig) { c.FreqMaskWidth = 91 }, true},
		{"frequency mask at the limit", func(c *PipelineConfig) { c.FreqMaskWidth = 90 }, false},
		{"wide mask ignored without masking", func(c *PipelineConfig) {
			c.FreqMaskWidth = 500
			c.Mask = false
		}, false},
		{"empty root", func(c *PipelineConfig) { c.Root = "" }, true},
		{"fatal log level", func(c *PipelineConfig) { c.LogLevel = "fatal" }, false},
		{"unknown log level", func(c *PipelineConfig) { c.LogLevel = "verbose" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPipelineConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMaskConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()
	mc := cfg.MaskConfig()

	assert.Equal(t, 100, mc.TimeWidth)
	assert.Equal(t, 2, mc.FreqWidth)
	assert.Equal(t, trigger.WindowLiteral, mc.Window)
	assert.InDelta(t, 0.1, mc.ReservedFreqFraction, 1e-12)
}
