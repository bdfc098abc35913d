// Package resample converts planar PCM buffers between sample rates using
// band-limited interpolation.
//
// The conversion preserves channel count and runs the whole buffer through
// a high-quality polyphase resampler, so downsampling does not alias and
// upsampling stays within ordinary interpolation error. Resampling a buffer
// to its own rate is the identity transform and allocates nothing.
package resample

import (
	"errors"
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/demixkit/demix/pkg/audio/pcm"
)

// ErrInvalidRate is returned when the target sample rate is not positive.
var ErrInvalidRate = errors.New("resample: invalid target rate")

// Buffer resamples buf to targetRate. When the buffer is already at the
// target rate it is returned unchanged. The output length is exactly
// round(n * targetRate / sourceRate) samples per channel.
func Buffer(buf *pcm.Buffer, targetRate int) (*pcm.Buffer, error) {
	if targetRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRate, targetRate)
	}
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if buf.SampleRate == targetRate {
		return buf, nil
	}

	channels := buf.Channels()
	frames := buf.Len()
	expected := int(math.Round(float64(frames) * float64(targetRate) / float64(buf.SampleRate)))

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(buf.SampleRate),
		OutputRate: float64(targetRate),
		Channels:   channels,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resample: create resampler: %w", err)
	}

	// Interleave to float64 frames, the engine's native layout.
	input := make([]float64, frames*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			input[i*channels+ch] = float64(buf.Samples[ch][i])
		}
	}

	output := make([]float64, 0, expected*channels)
	processed, err := r.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample: process: %w", err)
	}
	output = append(output, processed...)

	// Drain the filter tail: feed zero frames until the expected number of
	// output frames has been produced. The zero input cannot inject signal;
	// it only pushes the polyphase filter's internal delay line through.
	flush := make([]float64, 1024*channels)
	for i := 0; len(output) < expected*channels && i < 64; i++ {
		processed, err = r.Process(flush)
		if err != nil {
			return nil, fmt.Errorf("resample: flush: %w", err)
		}
		output = append(output, processed...)
	}

	out := pcm.New(channels, expected, targetRate)
	for i := 0; i < expected; i++ {
		base := i * channels
		if base+channels > len(output) {
			break // remaining frames stay zero
		}
		for ch := 0; ch < channels; ch++ {
			out.Samples[ch][i] = float32(output[base+ch])
		}
	}
	return out, nil
}
