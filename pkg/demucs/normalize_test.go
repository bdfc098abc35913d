package demucs

import (
	"math"
	"testing"
)

func TestNormalizeRoundTrip(t *testing.T) {
	chunk := [][]float32{
		{0.5, -0.25, 0.75, 0.1, -0.9},
		{0.2, 0.3, -0.4, 0.0, 0.6},
	}
	orig := make([][]float32, len(chunk))
	for ch := range chunk {
		orig[ch] = append([]float32(nil), chunk[ch]...)
	}

	st := computeStats(chunk)
	normalize(chunk, st)

	// Normalized data has zero mean and unit variance.
	var sum float64
	n := 0
	for _, ch := range chunk {
		for _, s := range ch {
			sum += float64(s)
			n++
		}
	}
	if mean := sum / float64(n); math.Abs(mean) > 1e-6 {
		t.Errorf("normalized mean = %g, want ~0", mean)
	}

	stems := [][][]float32{chunk}
	denormalize(stems, st)
	for ch := range orig {
		for i := range orig[ch] {
			if diff := math.Abs(float64(chunk[ch][i] - orig[ch][i])); diff > 1e-6 {
				t.Errorf("round trip sample [%d][%d] off by %g", ch, i, diff)
			}
		}
	}
}

func TestComputeStatsSilence(t *testing.T) {
	chunk := [][]float32{make([]float32, 100), make([]float32, 100)}
	st := computeStats(chunk)
	if st.mean != 0 {
		t.Errorf("mean = %g, want 0", st.mean)
	}
	if st.std != statsEpsilon {
		t.Errorf("std = %g, want epsilon floor %g", st.std, statsEpsilon)
	}
	// Dividing by the floored deviation must not blow up.
	normalize(chunk, st)
	for _, ch := range chunk {
		for i, s := range ch {
			if s != 0 {
				t.Fatalf("normalized silence sample %d = %g", i, s)
			}
		}
	}
}

func TestPostProcessPreservesShape(t *testing.T) {
	for _, stem := range []string{"drums", "bass", "other", "vocals", "guitar", "piano", "instrumental"} {
		samples := [][]float32{make([]float32, 4000), make([]float32, 4000)}
		for ch := range samples {
			for i := range samples[ch] {
				samples[ch][i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 44100))
			}
		}
		postProcessStem(stem, samples, 44100)
		if len(samples) != 2 || len(samples[0]) != 4000 || len(samples[1]) != 4000 {
			t.Errorf("stem %s: post-processing changed the buffer shape", stem)
		}
	}
}

func TestPostProcessDrumsUntouchedByFilters(t *testing.T) {
	// Drums keep their full band: with no near-clipping samples the click
	// repair never triggers either, so the waveform is unchanged.
	samples := [][]float32{make([]float32, 2000)}
	for i := range samples[0] {
		samples[0][i] = 0.5 * float32(math.Sin(2*math.Pi*100*float64(i)/44100))
	}
	orig := append([]float32(nil), samples[0]...)
	postProcessStem("drums", samples, 44100)
	for i := range orig {
		if samples[0][i] != orig[i] {
			t.Fatalf("drums sample %d changed", i)
		}
	}
}

func TestHighPassBlocksDC(t *testing.T) {
	rate := 44100
	samples := make([]float32, 8000)
	for i := range samples {
		samples[i] = 0.4
	}
	highPass(samples, rate, 80)

	// The one-pole response to a constant decays geometrically, so the
	// tail of the buffer should sit at zero.
	var tail float64
	for _, s := range samples[len(samples)/2:] {
		tail += math.Abs(float64(s))
	}
	if avg := tail / float64(len(samples)/2); avg > 1e-3 {
		t.Errorf("DC residue after high-pass: avg |sample| = %g", avg)
	}
}

func TestRemoveClicksRepairsSpike(t *testing.T) {
	rate := 44100
	samples := [][]float32{make([]float32, 2000)}
	for i := range samples[0] {
		samples[0][i] = 0.1 * float32(math.Sin(2*math.Pi*50*float64(i)/float64(rate)))
	}
	samples[0][1000] = 0.99
	removeClicks(samples, rate)
	if abs32(samples[0][1000]) > 0.2 {
		t.Errorf("spike survived click removal: %g", samples[0][1000])
	}
}
