package demucs

import "math"

// postProcessStem applies the per-stem cleanup filters to a reconstructed
// waveform in place. Each stem type gets the band shaping that suits it;
// drums pass through untouched to keep their full bandwidth.
func postProcessStem(stem string, samples [][]float32, sampleRate int) {
	switch stem {
	case "other", "instrumental":
		for _, ch := range samples {
			highPass(ch, sampleRate, 80)
			noiseReduce(ch, sampleRate)
		}
	case "bass":
		for _, ch := range samples {
			lowPass(ch, sampleRate, 400)
		}
	case "vocals":
		for _, ch := range samples {
			bandPass(ch, sampleRate, 300, 3400)
		}
	case "guitar":
		for _, ch := range samples {
			bandPass(ch, sampleRate, 80, 8000)
		}
	case "piano":
		for _, ch := range samples {
			bandPass(ch, sampleRate, 80, 15000)
		}
	}
	removeClicks(samples, sampleRate)
}

// highPass applies a one-pole high-pass filter in place.
func highPass(samples []float32, sampleRate int, cutoff float64) {
	rc := 1.0 / (2 * math.Pi * cutoff)
	dt := 1.0 / float64(sampleRate)
	alpha := float32(rc / (rc + dt))

	var prevIn, prevOut float32
	for i, in := range samples {
		out := alpha * (prevOut + in - prevIn)
		samples[i] = out
		prevIn, prevOut = in, out
	}
}

// lowPass applies a one-pole low-pass filter in place.
func lowPass(samples []float32, sampleRate int, cutoff float64) {
	rc := 1.0 / (2 * math.Pi * cutoff)
	dt := 1.0 / float64(sampleRate)
	alpha := float32(dt / (rc + dt))

	var prev float32
	for i, in := range samples {
		prev += alpha * (in - prev)
		samples[i] = prev
	}
}

// bandPass keeps the [lowCut, highCut] band by chaining the two one-pole
// filters.
func bandPass(samples []float32, sampleRate int, lowCut, highCut float64) {
	highPass(samples, sampleRate, lowCut)
	lowPass(samples, sampleRate, highCut)
}

// noiseReduce blends the signal with a 10 ms moving average, keeping 70% of
// the original.
func noiseReduce(samples []float32, sampleRate int) {
	window := sampleRate / 100
	if window < 2 || len(samples) < window*2 {
		return
	}

	smoothed := make([]float32, len(samples))
	copy(smoothed, samples)
	for i := window; i < len(samples)-window; i++ {
		var sum float32
		for _, s := range samples[i-window : i+window] {
			sum += s
		}
		smoothed[i] = sum / float32(window*2)
	}
	for i := range samples {
		samples[i] = samples[i]*0.7 + smoothed[i]*0.3
	}
}

// removeClicks detects isolated near-clipping samples that stick out of
// their 1 ms neighborhood and replaces them with the neighborhood average.
func removeClicks(samples [][]float32, sampleRate int) {
	const threshold = 0.9
	window := sampleRate / 1000
	if window < 1 {
		return
	}

	for _, ch := range samples {
		if len(ch) <= window*2 {
			continue
		}
		for i := window; i < len(ch)-window; i++ {
			cur := abs32(ch[i])
			if cur <= threshold {
				continue
			}
			var prevSum, nextSum float32
			for _, s := range ch[i-window : i] {
				prevSum += abs32(s)
			}
			for _, s := range ch[i+1 : i+window+1] {
				nextSum += abs32(s)
			}
			prevAvg := prevSum / float32(window)
			nextAvg := nextSum / float32(window)

			if cur > prevAvg*3 || cur > nextAvg*3 {
				ch[i] = (prevAvg + nextAvg) / 2 * sign32(ch[i])
			}
		}
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func sign32(v float32) float32 {
	if v < 0 {
		return -1
	}
	return 1
}
