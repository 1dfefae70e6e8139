package dataset

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// LabelLoader reads a per-sample label sequence
type LabelLoader interface {
	LoadLabel(ctx context.Context, path string) ([]float64, error)
}

// FileLabelLoader picks a decoder from the file extension: .json (flat or
// 1xN nested array), .msgpack (same shapes) or .f32 (raw little-endian
// float32).
type FileLabelLoader struct{}

// LoadLabel implements LabelLoader
func (FileLabelLoader) LoadLabel(ctx context.Context, path string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read label %s: %w", path, err)
	}

	var label []float64
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		label, err = DecodeLabelJSON(data)
	case ".msgpack":
		label, err = DecodeLabelMsgpack(data)
	case ".f32":
		label, err = DecodeLabelF32(data)
	default:
		return nil, fmt.Errorf("dataset: unsupported label format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("dataset: decode label %s: %w", path, err)
	}

	return label, nil
}

// DecodeLabelJSON accepts [v0, v1, ...] or [[v0, v1, ...]]
func DecodeLabelJSON(data []byte) ([]float64, error) {
	var flat []float64
	if err := json.Unmarshal(data, &flat); err == nil {
		return flat, nil
	}

	var nested [][]float64
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, fmt.Errorf("label is neither a flat nor a 1xN array: %w", err)
	}
	return singleRow(nested)
}

// DecodeLabelMsgpack accepts the same shapes as DecodeLabelJSON
func DecodeLabelMsgpack(data []byte) ([]float64, error) {
	var flat []float64
	if err := msgpack.Unmarshal(data, &flat); err == nil {
		return flat, nil
	}

	var nested [][]float64
	if err := msgpack.Unmarshal(data, &nested); err != nil {
		return nil, fmt.Errorf("label is neither a flat nor a 1xN array: %w", err)
	}
	return singleRow(nested)
}

// DecodeLabelF32 reads little-endian float32 values
func DecodeLabelF32(data []byte) ([]float64, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%d bytes is not a whole number of float32 values: %w", len(data), ErrDataIntegrity)
	}

	label := make([]float64, len(data)/4)
	for i := range label {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		label[i] = float64(math.Float32frombits(bits))
	}
	return label, nil
}

func singleRow(rows [][]float64) ([]float64, error) {
	if len(rows) != 1 {
		return nil, fmt.Errorf("expected a 1xN label, got %d rows: %w", len(rows), ErrDataIntegrity)
	}
	return rows[0], nil
}
