package dataset

import (
	"bytes"
	"context"
	"testing"

	"github.com/RyanBlaney/sonido-trigger/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"
)

func TestShard_RoundTrip(t *testing.T) {
	ds, err := New(context.Background(), testConfig(fixture(t), config.ModeSpectrogram))
	require.NoError(t, err)

	examples, err := ds.Materialize(context.Background(), 2)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteShard(&buf, examples))

	got, err := ReadShard(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(examples))

	for i := range examples {
		assert.Equal(t, examples[i].Index, got[i].Index)
		assert.Equal(t, examples[i].Pair, got[i].Pair)
		assert.Equal(t, examples[i].Label, got[i].Label)
		assert.Equal(t, *examples[i].Mask, *got[i].Mask)
		assert.True(t, mat.Equal(examples[i].Features, got[i].Features))
	}
}

func TestShard_Waveform(t *testing.T) {
	ex := &Example{
		Index:      7,
		Pair:       Pair{Data: "d.wav", Label: "l.json", Category: CategoryPositive},
		SampleRate: 8000,
		Waveform:   []float64{0.1, -0.2},
		Label:      []float64{0, 1},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteShard(&buf, []*Example{ex}))

	got, err := ReadShard(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ex, got[0])
}

func TestReadShard_Errors(t *testing.T) {
	_, err := ReadShard(bytes.NewReader(nil))
	assert.Error(t, err)

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	require.NoError(t, enc.Encode(shardHeader{Version: 99}))
	_, err = ReadShard(&buf)
	assert.Error(t, err)

	buf.Reset()
	require.NoError(t, enc.Encode(shardHeader{Version: shardVersion, Count: 1}))
	require.NoError(t, enc.Encode(shardRecord{Rows: 2, Cols: 2, Features: []float64{1}}))
	_, err = ReadShard(&buf)
	assert.ErrorIs(t, err, ErrDataIntegrity)

	buf.Reset()
	require.NoError(t, enc.Encode(shardHeader{Version: shardVersion, Count: 2}))
	require.NoError(t, enc.Encode(shardRecord{Label: []float64{0}}))
	_, err = ReadShard(&buf)
	assert.Error(t, err, "truncated shard")
}

func TestReadShard_InflatedCount(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	require.NoError(t, enc.Encode(shardHeader{Version: shardVersion, Count: 1 << 62}))
	require.NoError(t, enc.Encode(shardRecord{Index: 0, Label: []float64{0, 1}}))

	var got []*Example
	var err error
	require.NotPanics(t, func() {
		got, err = ReadShard(&buf)
	})
	assert.Error(t, err)
	assert.Nil(t, got)
}
