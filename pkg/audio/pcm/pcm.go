package pcm

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidBuffer is returned when a buffer's channels have inconsistent
// lengths, or when it has no channels or no samples.
var ErrInvalidBuffer = errors.New("pcm: invalid buffer")

// Buffer is planar multichannel PCM audio: one sample slice per channel,
// all of equal length. Sample values are not truncated to [-1, 1].
type Buffer struct {
	// SampleRate is the sample rate in Hz.
	SampleRate int

	// Samples holds one slice per channel.
	Samples [][]float32
}

// New allocates a zeroed buffer with the given channel count, length in
// samples per channel, and sample rate.
func New(channels, length, sampleRate int) *Buffer {
	samples := make([][]float32, channels)
	for i := range samples {
		samples[i] = make([]float32, length)
	}
	return &Buffer{SampleRate: sampleRate, Samples: samples}
}

// Channels returns the number of channels.
func (b *Buffer) Channels() int {
	return len(b.Samples)
}

// Len returns the number of samples per channel.
func (b *Buffer) Len() int {
	if len(b.Samples) == 0 {
		return 0
	}
	return len(b.Samples[0])
}

// Duration returns the buffer's play time at its sample rate.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Len()) * time.Second / time.Duration(b.SampleRate)
}

// Validate checks the buffer invariants: at least one channel, at least one
// sample, a positive sample rate, and identical length across channels.
// Violations are reported as errors wrapping [ErrInvalidBuffer].
func (b *Buffer) Validate() error {
	if len(b.Samples) == 0 {
		return fmt.Errorf("%w: no channels", ErrInvalidBuffer)
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidBuffer, b.SampleRate)
	}
	n := len(b.Samples[0])
	if n == 0 {
		return fmt.Errorf("%w: empty channel", ErrInvalidBuffer)
	}
	for ch, s := range b.Samples {
		if len(s) != n {
			return fmt.Errorf("%w: channel 0 has %d samples, channel %d has %d",
				ErrInvalidBuffer, n, ch, len(s))
		}
	}
	return nil
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{SampleRate: b.SampleRate, Samples: make([][]float32, len(b.Samples))}
	for i, s := range b.Samples {
		out.Samples[i] = append([]float32(nil), s...)
	}
	return out
}

// Mono returns an average down-mix of all channels. For a single-channel
// buffer the channel is copied.
func (b *Buffer) Mono() []float32 {
	n := b.Len()
	out := make([]float32, n)
	if len(b.Samples) == 0 {
		return out
	}
	if len(b.Samples) == 1 {
		copy(out, b.Samples[0])
		return out
	}
	scale := 1.0 / float32(len(b.Samples))
	for _, ch := range b.Samples {
		for i, s := range ch {
			out[i] += s * scale
		}
	}
	return out
}

// WithChannels adapts the buffer to the given channel count: a mono buffer
// is duplicated up, a multichannel buffer is averaged down to mono. Any
// other conversion is rejected. A buffer that already matches is returned
// unchanged.
func (b *Buffer) WithChannels(channels int) (*Buffer, error) {
	switch {
	case channels <= 0:
		return nil, fmt.Errorf("%w: target channels %d", ErrInvalidBuffer, channels)
	case channels == b.Channels():
		return b, nil
	case b.Channels() == 1:
		out := &Buffer{SampleRate: b.SampleRate, Samples: make([][]float32, channels)}
		for i := range out.Samples {
			out.Samples[i] = append([]float32(nil), b.Samples[0]...)
		}
		return out, nil
	case channels == 1:
		return &Buffer{SampleRate: b.SampleRate, Samples: [][]float32{b.Mono()}}, nil
	default:
		return nil, fmt.Errorf("%w: cannot convert %d channels to %d",
			ErrInvalidBuffer, b.Channels(), channels)
	}
}
