// Package pcm provides the planar floating-point audio buffer shared by
// every stage of the separation pipeline.
//
// A [Buffer] holds one float32 sample slice per channel, all of equal
// length, plus the sample rate. Samples are not clamped to [-1, 1]: model
// output may legitimately exceed full scale and is only brought into range
// when a buffer is encoded to disk.
//
// Key types:
//   - Buffer: planar multichannel PCM audio
//   - ErrInvalidBuffer: returned when channel lengths disagree
//
// Example usage:
//
//	buf := pcm.New(2, 44100, 44100) // 1 second of stereo silence
//	mono := buf.Mono()              // average down-mix
//	d := buf.Duration()             // 1s
package pcm
