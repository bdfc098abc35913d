// Package analysis estimates musical properties of decoded PCM audio.
//
// # Tempo
//
// [DetectBPM] tracks the amplitude envelope, smooths it with a short moving
// average and measures the spacing of envelope peaks. The estimate is clamped
// to the 60-200 BPM range; material without a usable pulse reports 120.
//
// # Key
//
// [DetectKey] computes a chromagram from windowed FFT frames and correlates
// the accumulated pitch-class energy against the Krumhansl-Schmuckler key
// profiles, picking the best of the 24 major and minor keys.
package analysis
