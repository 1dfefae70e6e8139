package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"verbose", InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultLogger_LevelsAndFields(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewWriterLogger(&out, &errOut, false)

	child := logger.WithFields(Fields{"component": "masker"})
	child.Debug("hidden")
	child.Info("visible", Fields{"frames": 200})
	child.Error(errors.New("boom"), "failed")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "[INFO] visible component=masker frames=200")
	assert.Contains(t, errOut.String(), "[ERROR] failed: boom component=masker")

	// level is shared between parent and child
	logger.SetLevel(DebugLevel)
	child.Debug("now shown")
	assert.Contains(t, out.String(), "[DEBUG] now shown")
}

func TestDefaultLogger_WithContext(t *testing.T) {
	var out bytes.Buffer
	logger := NewWriterLogger(&out, &out, false)

	ctx := ContextWithFields(context.Background(), Fields{"index": 3})
	logger.WithContext(ctx).Info("example")

	assert.Contains(t, out.String(), "index=3")
}

func TestDefaultLogger_FatalCallsExit(t *testing.T) {
	var out bytes.Buffer
	logger := NewWriterLogger(&out, &out, false)
	code := -1
	logger.exit = func(c int) { code = c }

	logger.Fatal(errors.New("bad"), "giving up")

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "[FATAL] giving up: bad")
}

func TestSetGlobalLogger_NilDisables(t *testing.T) {
	prev := GetGlobalLogger()
	t.Cleanup(func() { SetGlobalLogger(prev) })

	SetGlobalLogger(nil)
	_, ok := GetGlobalLogger().(*NoOpLogger)
	assert.True(t, ok)
}
