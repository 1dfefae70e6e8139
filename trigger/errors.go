package trigger

import "errors"

var (
	// ErrInvalidConfiguration is returned for non-positive dimensions, a hop
	// below one sample, or mask widths that cannot be placed.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNoValidMaskPosition is returned when every time frame is reserved.
	ErrNoValidMaskPosition = errors.New("no valid mask position")

	// ErrShapeMismatch is returned when a label and a feature matrix disagree
	// on the number of time frames.
	ErrShapeMismatch = errors.New("shape mismatch")
)
