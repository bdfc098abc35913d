package analysis

import (
	"math"

	"github.com/demixkit/demix/pkg/audio/pcm"
)

const (
	// defaultBPM is reported when the signal carries no usable pulse.
	defaultBPM = 120.0

	minBPM = 60.0
	maxBPM = 200.0
)

// DetectBPM estimates the tempo of buf in beats per minute.
//
// Multichannel input is averaged down to mono first. The estimate is clamped
// to [60, 200]; silence, very short input and signals without distinct
// envelope peaks report the 120 BPM default rather than an error.
func DetectBPM(buf *pcm.Buffer) (float64, error) {
	if err := buf.Validate(); err != nil {
		return 0, err
	}
	samples := buf.Mono()
	if len(samples) == 0 {
		return defaultBPM, nil
	}

	// Smoothed amplitude envelope over a 100 ms moving average.
	window := buf.SampleRate / 10
	window = max(1, min(window, len(samples)/4))
	if len(samples) < window*2 {
		return defaultBPM, nil
	}
	envelope := smoothedEnvelope(samples, window)

	peaks := findPeaks(envelope, window/4)
	if len(peaks) < 2 {
		return defaultBPM, nil
	}

	var sum float64
	n := 0
	for i := 1; i < len(peaks); i++ {
		if d := peaks[i] - peaks[i-1]; d > 0 {
			sum += float64(d)
			n++
		}
	}
	if n == 0 {
		return defaultBPM, nil
	}

	// The smoothed envelope has one value per input sample, so the mean
	// peak spacing is directly a period in samples.
	period := sum / float64(n)
	bpm := float64(buf.SampleRate) / period * 60.0
	return math.Min(math.Max(bpm, minBPM), maxBPM), nil
}

// smoothedEnvelope rectifies the signal and applies a running-sum moving
// average of the given window, producing len(samples)-window+1 values.
func smoothedEnvelope(samples []float32, window int) []float64 {
	out := make([]float64, len(samples)-window+1)
	var run float64
	for i, s := range samples {
		run += math.Abs(float64(s))
		if i >= window {
			run -= math.Abs(float64(samples[i-window]))
		}
		if i >= window-1 {
			out[i-window+1] = run / float64(window)
		}
	}
	return out
}

// findPeaks returns indices that exceed 30% of the global maximum and are
// strict local maxima over a neighborhood of size window on each side.
func findPeaks(signal []float64, window int) []int {
	if len(signal) == 0 {
		return nil
	}
	var peak float64
	for _, v := range signal {
		if v > peak {
			peak = v
		}
	}
	if peak <= 0 {
		return nil
	}
	threshold := peak * 0.3
	w := max(1, min(window, len(signal)/4))

	var peaks []int
	last := -w // enforce minimum spacing between accepted peaks
	for i := w; i < len(signal)-w; i++ {
		cur := signal[i]
		if cur <= threshold || i-last < w {
			continue
		}
		isPeak := true
		for k := i - w; k <= i+w && isPeak; k++ {
			if k != i && signal[k] >= cur {
				isPeak = false
			}
		}
		if isPeak {
			peaks = append(peaks, i)
			last = i
		}
	}
	return peaks
}
