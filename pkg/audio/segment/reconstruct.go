package segment

import (
	"fmt"
)

// Reconstructor merges per-chunk stem output back into continuous per-stem
// waveforms of exactly the source length.
//
// Each chunk contribution is weighted with a linear cross-fade: the first
// overlap samples ramp up (except for the chunk at offset 0) and the last
// overlap samples ramp down (except for a chunk reaching the buffer end).
// Contributions and their weights are accumulated separately and divided on
// read-out, so overlapping chunks always sum back to the signal's original
// gain regardless of how many chunks cover a position. Regions covered by a
// single chunk come out unweighted.
type Reconstructor struct {
	stems    int
	channels int
	total    int
	overlap  int

	acc    [][][]float64 // stem -> channel -> weighted sample sum
	weight []float64     // per-position weight sum (identical across stems)
}

// NewReconstructor creates a reconstructor for the given stem count,
// channel count, source length in samples, and overlap length.
func NewReconstructor(stems, channels, total, overlap int) *Reconstructor {
	acc := make([][][]float64, stems)
	for s := range acc {
		acc[s] = make([][]float64, channels)
		for ch := range acc[s] {
			acc[s][ch] = make([]float64, total)
		}
	}
	return &Reconstructor{
		stems:    stems,
		channels: channels,
		total:    total,
		overlap:  overlap,
		acc:      acc,
		weight:   make([]float64, total),
	}
}

// Add accumulates one chunk's stem output, shaped stems x channels x
// chunk.Length. Padded samples on the final chunk are discarded. Chunks may
// be added in any order; reconstruction depends only on offsets.
func (r *Reconstructor) Add(c Chunk, out [][][]float32) error {
	if len(out) != r.stems {
		return fmt.Errorf("segment: chunk %d: %d stems, want %d", c.Index, len(out), r.stems)
	}
	valid := c.Length - c.Pad
	if c.Start+valid > r.total {
		return fmt.Errorf("segment: chunk %d: offset %d + %d samples exceeds total %d",
			c.Index, c.Start, valid, r.total)
	}
	for s, stem := range out {
		if len(stem) != r.channels {
			return fmt.Errorf("segment: chunk %d stem %d: %d channels, want %d",
				c.Index, s, len(stem), r.channels)
		}
		for ch, data := range stem {
			if len(data) < valid {
				return fmt.Errorf("segment: chunk %d stem %d channel %d: %d samples, want >= %d",
					c.Index, s, ch, len(data), valid)
			}
		}
	}

	rampUp := c.Start > 0
	rampDown := c.Start+c.Length < r.total

	for j := 0; j < valid; j++ {
		w := 1.0
		if rampUp && j < r.overlap {
			w *= float64(j) / float64(r.overlap)
		}
		if rampDown && j >= c.Length-r.overlap {
			w *= float64(c.Length-j) / float64(r.overlap)
		}
		pos := c.Start + j
		r.weight[pos] += w
		for s := range r.acc {
			for ch := range r.acc[s] {
				r.acc[s][ch][pos] += w * float64(out[s][ch][j])
			}
		}
	}
	return nil
}

// Stem returns the reconstructed waveform for one stem, normalized by the
// accumulated weights. The result always has exactly the source length per
// channel. Stem may be called repeatedly and never mutates the accumulator.
func (r *Reconstructor) Stem(s int) [][]float32 {
	out := make([][]float32, r.channels)
	for ch := range out {
		out[ch] = make([]float32, r.total)
		for i := 0; i < r.total; i++ {
			if w := r.weight[i]; w > 0 {
				out[ch][i] = float32(r.acc[s][ch][i] / w)
			}
		}
	}
	return out
}

// Stems returns all reconstructed stem waveforms.
func (r *Reconstructor) Stems() [][][]float32 {
	out := make([][][]float32, r.stems)
	for s := range out {
		out[s] = r.Stem(s)
	}
	return out
}
