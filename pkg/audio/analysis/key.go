package analysis

import (
	"fmt"
	"math"

	"github.com/demixkit/demix/pkg/audio/pcm"
)

const (
	chromaWindow = 4096
	chromaHop    = 2048

	// Pitch range considered for the chromagram. Bins outside carry mostly
	// rumble and noise that bias the profile match.
	chromaMinHz = 55.0
	chromaMaxHz = 2000.0
)

var pitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Krumhansl-Schmuckler key profiles: perceived pitch-class stability within
// a major and a minor key, root first.
var (
	majorProfile = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// DetectKey estimates the musical key of buf, returning strings such as
// "C major" or "A minor". Input too short for a single analysis window, or
// effectively silent, reports "C major".
func DetectKey(buf *pcm.Buffer) (string, error) {
	if err := buf.Validate(); err != nil {
		return "", err
	}
	chroma := chromagram(buf.Mono(), buf.SampleRate)

	var total float64
	for _, c := range chroma {
		total += c
	}
	if total <= 0 {
		return "C major", nil
	}

	bestKey, bestScore := "C major", math.Inf(-1)
	for root := range 12 {
		if score := profileMatch(chroma, majorProfile, root); score > bestScore {
			bestScore = score
			bestKey = fmt.Sprintf("%s major", pitchClasses[root])
		}
		if score := profileMatch(chroma, minorProfile, root); score > bestScore {
			bestScore = score
			bestKey = fmt.Sprintf("%s minor", pitchClasses[root])
		}
	}
	return bestKey, nil
}

// chromagram accumulates spectral energy into 12 pitch classes across
// Hann-windowed FFT frames.
func chromagram(samples []float32, sampleRate int) [12]float64 {
	var chroma [12]float64
	if len(samples) < chromaWindow {
		return chroma
	}

	hann := make([]float64, chromaWindow)
	for i := range hann {
		hann[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(chromaWindow-1))
	}

	re := make([]float64, chromaWindow)
	im := make([]float64, chromaWindow)
	binHz := float64(sampleRate) / float64(chromaWindow)

	for start := 0; start+chromaWindow <= len(samples); start += chromaHop {
		for i := range re {
			re[i] = float64(samples[start+i]) * hann[i]
			im[i] = 0
		}
		fft(re, im)

		for bin := 1; bin < chromaWindow/2; bin++ {
			freq := float64(bin) * binHz
			if freq < chromaMinHz || freq > chromaMaxHz {
				continue
			}
			// MIDI note number; pitch class 0 is C.
			midi := 69 + 12*math.Log2(freq/440.0)
			pc := ((int(math.Round(midi)) % 12) + 12) % 12
			chroma[pc] += re[bin]*re[bin] + im[bin]*im[bin]
		}
	}
	return chroma
}

// profileMatch computes the Pearson correlation between the chroma vector
// and the profile rotated so its root lands on the given pitch class.
func profileMatch(chroma [12]float64, profile [12]float64, root int) float64 {
	var meanC, meanP float64
	for i := range 12 {
		meanC += chroma[i]
		meanP += profile[i]
	}
	meanC /= 12
	meanP /= 12

	var num, varC, varP float64
	for i := range 12 {
		dc := chroma[i] - meanC
		dp := profile[(i-root+12)%12] - meanP
		num += dc * dp
		varC += dc * dc
		varP += dp * dp
	}
	if varC == 0 || varP == 0 {
		return math.Inf(-1)
	}
	return num / math.Sqrt(varC*varP)
}
