package transcode

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-trigger/logging"
)

// AudioData is a decoded mono waveform
type AudioData struct {
	PCM        []float64     `json:"-" msgpack:"pcm"`
	SampleRate int           `json:"sample_rate" msgpack:"sample_rate"`
	Channels   int           `json:"channels" msgpack:"channels"` // always 1 after downmix
	Duration   time.Duration `json:"duration" msgpack:"duration"`
	Source     string        `json:"source,omitempty" msgpack:"source,omitempty"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// TargetSampleRate resamples through ffmpeg when non-zero and different
	// from the file's rate. Zero keeps the source rate.
	TargetSampleRate int           `json:"target_sample_rate" yaml:"target_sample_rate"`
	FFmpegPath       string        `json:"ffmpeg_path" yaml:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path" yaml:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`
	// ForceFFmpeg skips the native WAV reader
	ForceFFmpeg bool `json:"force_ffmpeg" yaml:"force_ffmpeg"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 0,
		FFmpegPath:       "ffmpeg",
		FFprobePath:      "ffprobe",
		Timeout:          30 * time.Second,
	}
}

// AudioMetadata holds detected audio properties from ffprobe
type AudioMetadata struct {
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Codec      string `json:"codec"`
}

// Decoder loads waveforms from disk
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
}

// DecodeFile loads a file as a mono waveform. WAV files are read natively
// unless resampling is requested or the encoding is not integer PCM;
// everything else goes through ffmpeg.
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := d.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filename,
	})

	if !d.config.ForceFFmpeg && strings.EqualFold(filepath.Ext(filename), ".wav") {
		audio, err := d.decodeWAVFile(filename)
		switch {
		case err == nil:
			audio.Source = filename
			if d.config.TargetSampleRate == 0 || d.config.TargetSampleRate == audio.SampleRate {
				logger.Debug("Decoded WAV natively", logging.Fields{
					"samples":     len(audio.PCM),
					"sample_rate": audio.SampleRate,
				})
				return audio, nil
			}
			logger.Debug("Resampling through ffmpeg", logging.Fields{
				"source_rate": audio.SampleRate,
				"target_rate": d.config.TargetSampleRate,
			})
		case errors.Is(err, ErrUnsupportedWAV):
			logger.Debug("WAV encoding not handled natively, using ffmpeg", logging.Fields{
				"reason": err.Error(),
			})
		default:
			logger.Error(err, "Failed to parse WAV file")
			return nil, fmt.Errorf("decode %s: %w", filename, err)
		}
	}

	return d.decodeWithFFmpeg(ctx, filename)
}

func (d *Decoder) decodeWAVFile(filename string) (*AudioData, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	defer f.Close()

	return DecodeWAV(f)
}

func (d *Decoder) decodeWithFFmpeg(ctx context.Context, filename string) (*AudioData, error) {
	logger := d.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "decodeWithFFmpeg",
		"filename": filename,
	})

	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	sampleRate := d.config.TargetSampleRate
	if sampleRate == 0 {
		metadata, err := d.probeAudioFile(ctx, filename)
		if err != nil {
			logger.Error(err, "Failed to probe audio file")
			return nil, err
		}
		sampleRate = metadata.SampleRate
	}

	args := []string{
		"-v", "error",
		"-i", filename,
		"-vn",
		"-f", "f64le",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"pipe:1",
	}

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)
	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			logger.Error(err, "Ffmpeg decode failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
		}
		return nil, fmt.Errorf("ffmpeg decode of %s failed: %w", filename, err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded from %s", filename)
	}

	return &AudioData{
		PCM:        samples,
		SampleRate: sampleRate,
		Channels:   1,
		Duration:   time.Duration(len(samples)) * time.Second / time.Duration(sampleRate),
		Source:     filename,
	}, nil
}

func (d *Decoder) probeAudioFile(ctx context.Context, filename string) (*AudioMetadata, error) {
	cmd := exec.CommandContext(ctx, d.config.FFprobePath,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate,channels,codec_name",
		"-of", "json",
		filename,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe of %s failed: %w", filename, err)
	}
	return parseFFprobeOutput(output)
}

func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
			CodecName  string `json:"codec_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio stream found")
	}

	stream := probe.Streams[0]
	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %q", stream.SampleRate)
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
	}, nil
}

// bytesToFloat64 converts raw float64 little-endian bytes to samples
func bytesToFloat64(data []byte) []float64 {
	data = data[:len(data)-len(data)%8]
	if len(data) == 0 {
		return nil
	}

	samples := make([]float64, len(data)/8)
	for i := range samples {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8 : i*8+8]))
	}
	return samples
}

// ValidateConfig checks the decoder configuration
func (d *Decoder) ValidateConfig() error {
	if d.config.TargetSampleRate < 0 {
		return fmt.Errorf("target sample rate must not be negative: %d", d.config.TargetSampleRate)
	}
	if d.config.FFmpegPath == "" || d.config.FFprobePath == "" {
		return fmt.Errorf("ffmpeg and ffprobe paths must be set")
	}
	return nil
}

// CheckFFmpeg reports whether the configured ffmpeg binary runs
func (d *Decoder) CheckFFmpeg(ctx context.Context) error {
	if err := exec.CommandContext(ctx, d.config.FFmpegPath, "-version").Run(); err != nil {
		return fmt.Errorf("ffmpeg not available at %q: %w", d.config.FFmpegPath, err)
	}
	return nil
}
