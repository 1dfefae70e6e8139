package common

import "fmt"

// ReflectPad pads signal on both sides by mirroring around the edge samples
// without repeating them (numpy/torch "reflect" mode):
//
//	[a b c d], pad 2 -> [c b a b c d c b]
//
// pad must be smaller than len(signal).
func ReflectPad(signal []float64, pad int) ([]float64, error) {
	if pad < 0 {
		return nil, fmt.Errorf("negative pad: %d", pad)
	}
	if pad == 0 {
		out := make([]float64, len(signal))
		copy(out, signal)
		return out, nil
	}
	n := len(signal)
	if pad >= n {
		return nil, fmt.Errorf("reflect pad %d requires a signal longer than the pad, got %d samples", pad, n)
	}

	out := make([]float64, n+2*pad)
	for i := range pad {
		out[pad-1-i] = signal[i+1]
		out[pad+n+i] = signal[n-2-i]
	}
	copy(out[pad:], signal)
	return out, nil
}
