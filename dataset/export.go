package dataset

import (
	"fmt"
	"io"

	"github.com/RyanBlaney/sonido-trigger/trigger"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"
)

// shardRecord is the msgpack form of an Example. Features are stored
// row-major with their dimensions.
type shardRecord struct {
	Index      int           `msgpack:"index"`
	Pair       Pair          `msgpack:"pair"`
	SampleRate int           `msgpack:"sample_rate"`
	Waveform   []float64     `msgpack:"waveform,omitempty"`
	Rows       int           `msgpack:"rows"`
	Cols       int           `msgpack:"cols"`
	Features   []float64     `msgpack:"features,omitempty"`
	Label      []float64     `msgpack:"label"`
	Mask       *trigger.Mask `msgpack:"mask,omitempty"`
}

type shardHeader struct {
	Version int `msgpack:"version"`
	Count   int `msgpack:"count"`
}

const (
	shardVersion     = 1
	maxShardPrealloc = 1024
)

// WriteShard writes examples to w as a header followed by one msgpack
// record per example.
func WriteShard(w io.Writer, examples []*Example) error {
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(shardHeader{Version: shardVersion, Count: len(examples)}); err != nil {
		return fmt.Errorf("dataset: write shard header: %w", err)
	}

	for _, ex := range examples {
		rec := shardRecord{
			Index:      ex.Index,
			Pair:       ex.Pair,
			SampleRate: ex.SampleRate,
			Waveform:   ex.Waveform,
			Label:      ex.Label,
			Mask:       ex.Mask,
		}
		if ex.Features != nil {
			rec.Rows, rec.Cols = ex.Features.Dims()
			rec.Features = mat.DenseCopyOf(ex.Features).RawMatrix().Data
		}
		if err := enc.Encode(&rec); err != nil {
			return fmt.Errorf("dataset: write example %d: %w", ex.Index, err)
		}
	}

	return nil
}

// ReadShard reads a shard written by WriteShard
func ReadShard(r io.Reader) ([]*Example, error) {
	dec := msgpack.NewDecoder(r)

	var header shardHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("dataset: read shard header: %w", err)
	}
	if header.Version != shardVersion {
		return nil, fmt.Errorf("dataset: unsupported shard version %d", header.Version)
	}
	if header.Count < 0 {
		return nil, fmt.Errorf("dataset: negative example count %d: %w", header.Count, ErrDataIntegrity)
	}

	// the count is untrusted until the records are actually read
	examples := make([]*Example, 0, min(header.Count, maxShardPrealloc))
	for i := 0; i < header.Count; i++ {
		var rec shardRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("dataset: read example %d of %d: %w", i, header.Count, err)
		}

		ex := &Example{
			Index:      rec.Index,
			Pair:       rec.Pair,
			SampleRate: rec.SampleRate,
			Waveform:   rec.Waveform,
			Label:      rec.Label,
			Mask:       rec.Mask,
		}
		if rec.Rows > 0 && rec.Cols > 0 {
			if len(rec.Features) != rec.Rows*rec.Cols {
				return nil, fmt.Errorf("example %d: %d feature values for a %dx%d matrix: %w",
					rec.Index, len(rec.Features), rec.Rows, rec.Cols, ErrDataIntegrity)
			}
			ex.Features = mat.NewDense(rec.Rows, rec.Cols, rec.Features)
		}
		examples = append(examples, ex)
	}

	return examples, nil
}
