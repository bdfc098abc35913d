package resample

import (
	"errors"
	"math"
	"testing"

	"github.com/demixkit/demix/pkg/audio/pcm"
)

func sine(channels, frames, rate int, freq float64) *pcm.Buffer {
	buf := pcm.New(channels, frames, rate)
	for ch := range channels {
		for i := range frames {
			buf.Samples[ch][i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
		}
	}
	return buf
}

func TestIdentity(t *testing.T) {
	buf := sine(2, 44100, 44100, 440)
	out, err := Buffer(buf, 44100)
	if err != nil {
		t.Fatalf("Buffer: %v", err)
	}
	if out != buf {
		t.Error("same-rate resample should return the input buffer unchanged")
	}
}

func TestInvalidRate(t *testing.T) {
	buf := sine(1, 100, 44100, 440)
	for _, rate := range []int{0, -1, -44100} {
		if _, err := Buffer(buf, rate); !errors.Is(err, ErrInvalidRate) {
			t.Errorf("rate %d: err = %v, want ErrInvalidRate", rate, err)
		}
	}
}

func TestInvalidBuffer(t *testing.T) {
	ragged := &pcm.Buffer{SampleRate: 44100, Samples: [][]float32{{0, 0}, {0}}}
	if _, err := Buffer(ragged, 48000); !errors.Is(err, pcm.ErrInvalidBuffer) {
		t.Errorf("err = %v, want ErrInvalidBuffer", err)
	}
}

func TestOutputShape(t *testing.T) {
	tests := []struct {
		name         string
		srcRate, dst int
		frames       int
	}{
		{"downsample 48k to 44.1k", 48000, 44100, 48000},
		{"upsample 22.05k to 44.1k", 22050, 44100, 22050},
		{"upsample 44.1k to 48k", 44100, 48000, 44100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := sine(2, tt.frames, tt.srcRate, 440)
			out, err := Buffer(buf, tt.dst)
			if err != nil {
				t.Fatalf("Buffer: %v", err)
			}
			want := int(math.Round(float64(tt.frames) * float64(tt.dst) / float64(tt.srcRate)))
			if out.Len() != want {
				t.Errorf("output frames = %d, want %d", out.Len(), want)
			}
			if out.Channels() != 2 {
				t.Errorf("channels = %d, want 2", out.Channels())
			}
			if out.SampleRate != tt.dst {
				t.Errorf("rate = %d, want %d", out.SampleRate, tt.dst)
			}
		})
	}
}
