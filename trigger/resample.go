package trigger

import (
	"fmt"

	"github.com/RyanBlaney/sonido-trigger/algorithms/common"
)

// WindowMode selects how wide each non-final pooling window is.
type WindowMode int

const (
	// WindowLiteral pools label[seg*i : seg*i+frames]. Windows overlap and
	// widen as frames approaches len(label). This is the default.
	WindowLiteral WindowMode = iota

	// WindowSegment pools label[seg*i : seg*(i+1)], a tight partition.
	WindowSegment
)

func (m WindowMode) String() string {
	switch m {
	case WindowLiteral:
		return "literal"
	case WindowSegment:
		return "segment"
	default:
		return "unknown"
	}
}

// ParseWindowMode maps "literal" or "segment" to a WindowMode
func ParseWindowMode(name string) (WindowMode, error) {
	switch name {
	case "literal", "":
		return WindowLiteral, nil
	case "segment":
		return WindowSegment, nil
	default:
		return WindowLiteral, fmt.Errorf("unknown resample window %q: %w", name, ErrInvalidConfiguration)
	}
}

// LiteralWindowHasGaps reports whether WindowLiteral would skip samples for
// a label of n samples pooled into frames outputs. That happens when the
// segment stride exceeds the window width.
func LiteralWindowHasGaps(n, frames int) bool {
	if frames < 1 {
		return false
	}
	return n/frames > frames
}

// ResampleLabel max-pools label down to frames values using WindowLiteral.
func ResampleLabel(label []float64, frames int) ([]float64, error) {
	return ResampleLabelWithMode(label, frames, WindowLiteral)
}

// ResampleLabelWithMode max-pools label down to frames values.
//
// The segment length is floor(len(label)/frames), computed once. Output i
// starts at segment*i; the last output always covers everything from its
// start to the end of the label, so trailing samples left over by the
// integer division are never dropped.
func ResampleLabelWithMode(label []float64, frames int, mode WindowMode) ([]float64, error) {
	if frames < 1 {
		return nil, fmt.Errorf("frames must be >= 1, got %d: %w", frames, ErrInvalidConfiguration)
	}
	if len(label) == 0 {
		return nil, fmt.Errorf("empty label: %w", ErrInvalidConfiguration)
	}

	segment := len(label) / frames
	if mode == WindowSegment && segment < 1 {
		return nil, fmt.Errorf("label of %d samples cannot be partitioned into %d frames: %w",
			len(label), frames, ErrInvalidConfiguration)
	}

	out := make([]float64, frames)
	for i := range frames {
		start := segment * i

		end := len(label)
		if i != frames-1 {
			switch mode {
			case WindowSegment:
				end = start + segment
			default:
				end = start + frames
			}
		}

		v, ok := common.SegmentMax(label, start, end)
		if !ok {
			// start < len(label) holds for every i, so this cannot happen
			return nil, fmt.Errorf("empty pooling window [%d, %d) for frame %d: %w", start, end, i, ErrShapeMismatch)
		}
		out[i] = v
	}

	return out, nil
}
