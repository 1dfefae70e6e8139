// Package trigger aligns sample-resolution trigger labels with time-frequency
// feature matrices and applies label-aware masking augmentation.
//
// The three building blocks are:
//
//   - DeriveTransformParams picks n_fft and hop so that a centered STFT of a
//     waveform yields the requested number of frequency bins and roughly the
//     requested number of frames.
//   - ResampleLabel max-pools a per-sample label down to one value per frame
//     so that no trigger event disappears.
//   - Masker zeroes one random time band and one random frequency band while
//     keeping trigger frames, the frames just before the first trigger, and
//     the lowest 10% of frequency bins intact.
//
// Feature matrices are gonum *mat.Dense values with frequency bins as rows
// and time frames as columns.
package trigger
