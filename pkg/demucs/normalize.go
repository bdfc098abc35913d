package demucs

import "math"

// statsEpsilon is the standard deviation floor guarding division for
// near-silent chunks.
const statsEpsilon = 1e-8

// stats holds a chunk's normalization scalars.
type stats struct {
	mean float64
	std  float64
}

// computeStats returns mean and standard deviation over every sample of the
// chunk, all channels pooled. The deviation is floored at statsEpsilon.
func computeStats(chunk [][]float32) stats {
	n := 0
	var sum float64
	for _, ch := range chunk {
		n += len(ch)
		for _, s := range ch {
			sum += float64(s)
		}
	}
	if n == 0 {
		return stats{mean: 0, std: statsEpsilon}
	}
	mean := sum / float64(n)

	var sq float64
	for _, ch := range chunk {
		for _, s := range ch {
			d := float64(s) - mean
			sq += d * d
		}
	}
	std := statsEpsilon
	if n > 1 {
		std = math.Max(math.Sqrt(sq/float64(n-1)), statsEpsilon)
	}
	return stats{mean: mean, std: std}
}

// normalize recenters and rescales the chunk in place to zero mean and unit
// variance under st.
func normalize(chunk [][]float32, st stats) {
	for _, ch := range chunk {
		for i, s := range ch {
			ch[i] = float32((float64(s) - st.mean) / st.std)
		}
	}
}

// denormalize reverses normalize on every stem of a model output in place.
// All stems share the chunk's stats since the network saw one normalized mix.
func denormalize(stems [][][]float32, st stats) {
	for _, stem := range stems {
		for _, ch := range stem {
			for i, s := range ch {
				ch[i] = float32(float64(s)*st.std + st.mean)
			}
		}
	}
}
