// Package segment splits long PCM buffers into fixed-length overlapping
// chunks for bounded-memory inference, and reconstructs continuous
// waveforms from per-chunk model output with a triangular cross-fade.
//
// Chunk offsets advance by chunkLen−overlap. The final chunk is zero-padded
// up to the fixed chunk length, with the pad size recorded so reconstruction
// can discard the padded samples. Chunks are produced as a lazy, restartable
// iter.Seq in ascending offset order.
package segment

import (
	"errors"
	"fmt"
	"iter"

	"github.com/demixkit/demix/pkg/audio/pcm"
)

// ErrInvalidSegmenting is returned for chunk/overlap lengths that violate
// 0 <= overlap < chunkLen.
var ErrInvalidSegmenting = errors.New("segment: invalid chunk/overlap length")

// Chunk is a fixed-length slice of a buffer handed to inference.
type Chunk struct {
	// Index is the chunk's position in the sequence, starting at 0.
	Index int

	// Start is the chunk's offset into the source buffer, in samples.
	Start int

	// Length is the fixed chunk length including padding.
	Length int

	// Pad is the number of trailing zero samples appended to reach Length.
	// Zero for all chunks except possibly the last.
	Pad int

	// Samples is planar channel data of exactly Length samples per channel.
	Samples [][]float32
}

// Count returns the number of chunks Split will produce for a buffer of
// total samples.
func Count(total, chunkLen, overlap int) int {
	if total <= chunkLen {
		return 1
	}
	stride := chunkLen - overlap
	return 1 + (total-chunkLen+stride-1)/stride
}

// Split divides buf into overlapping chunks of chunkLen samples whose
// offsets ascend by chunkLen−overlap. It returns a restartable sequence and
// the total chunk count. A buffer shorter than chunkLen yields a single
// padded chunk.
func Split(buf *pcm.Buffer, chunkLen, overlap int) (iter.Seq[Chunk], int, error) {
	if chunkLen <= 0 || overlap < 0 || overlap >= chunkLen {
		return nil, 0, fmt.Errorf("%w: chunkLen=%d overlap=%d", ErrInvalidSegmenting, chunkLen, overlap)
	}
	if err := buf.Validate(); err != nil {
		return nil, 0, err
	}

	total := buf.Len()
	channels := buf.Channels()
	stride := chunkLen - overlap
	count := Count(total, chunkLen, overlap)

	seq := func(yield func(Chunk) bool) {
		for index, start := 0, 0; ; index, start = index+1, start+stride {
			end := start + chunkLen
			pad := 0
			if end > total {
				pad = end - total
			}

			samples := make([][]float32, channels)
			for ch := range samples {
				samples[ch] = make([]float32, chunkLen)
				copy(samples[ch], buf.Samples[ch][start:min(end, total)])
			}

			if !yield(Chunk{Index: index, Start: start, Length: chunkLen, Pad: pad, Samples: samples}) {
				return
			}
			if end >= total {
				return
			}
		}
	}
	return seq, count, nil
}
