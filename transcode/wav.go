package transcode

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/wav"
)

// WAV format tags
const (
	wavFormatPCM        = 0x0001
	wavFormatFloat      = 0x0003
	wavFormatExtensible = 0xFFFE
)

var (
	// ErrInvalidWAV is returned for data that is not a readable RIFF/WAVE
	// container
	ErrInvalidWAV = errors.New("invalid WAV data")

	// ErrUnsupportedWAV is returned for valid containers whose encoding is
	// not 8/16/24/32-bit integer PCM
	ErrUnsupportedWAV = errors.New("unsupported WAV encoding")
)

// DecodeWAV reads an integer PCM WAV stream. Multi-channel audio is
// averaged down to mono and samples are scaled into [-1, 1). Float and
// compressed encodings return ErrUnsupportedWAV so callers can hand the
// file to ffmpeg instead.
func DecodeWAV(r io.ReadSeeker) (*AudioData, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		if err := decoder.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidWAV, err)
		}
		if decoder.NumChans > 0 && decoder.BitDepth > 0 && decoder.BitDepth < 8 {
			return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedWAV, decoder.BitDepth)
		}
		return nil, fmt.Errorf("%w: no playable audio", ErrInvalidWAV)
	}

	if err := checkEncoding(decoder.WavAudioFormat, int(decoder.BitDepth)); err != nil {
		return nil, err
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWAV, err)
	}

	channels := buf.Format.NumChannels
	sampleRate := buf.Format.SampleRate
	if channels < 1 || sampleRate < 1 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrInvalidWAV, channels, sampleRate)
	}

	scale, offset := pcmScale(int(decoder.BitDepth))
	numFrames := len(buf.Data) / channels

	samples := make([]float64, numFrames)
	for i := range numFrames {
		sum := 0.0
		for _, v := range buf.Data[i*channels : (i+1)*channels] {
			sum += (float64(v) - offset) / scale
		}
		samples[i] = sum / float64(channels)
	}

	return &AudioData{
		PCM:        samples,
		SampleRate: sampleRate,
		Channels:   1,
		Duration:   time.Duration(numFrames) * time.Second / time.Duration(sampleRate),
	}, nil
}

func checkEncoding(format uint16, bitDepth int) error {
	if format != wavFormatPCM && format != wavFormatExtensible {
		return fmt.Errorf("%w: format 0x%04x", ErrUnsupportedWAV, format)
	}
	switch bitDepth {
	case 8, 16, 24, 32:
		return nil
	}
	return fmt.Errorf("%w: %d bits per sample", ErrUnsupportedWAV, bitDepth)
}

// pcmScale returns the full-scale divisor and the zero offset for integer
// samples; 8-bit WAV data is unsigned and centred on 128.
func pcmScale(bitDepth int) (scale, offset float64) {
	if bitDepth == 8 {
		return 128, 128
	}
	return float64(int64(1) << (bitDepth - 1)), 0
}
