package pcm

import (
	"errors"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	b := New(2, 100, 44100)
	if b.Channels() != 2 {
		t.Fatalf("channels = %d, want 2", b.Channels())
	}
	if b.Len() != 100 {
		t.Fatalf("len = %d, want 100", b.Len())
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDuration(t *testing.T) {
	b := New(2, 44100, 44100)
	if d := b.Duration(); d != time.Second {
		t.Errorf("duration = %v, want 1s", d)
	}
	b = New(1, 22050, 44100)
	if d := b.Duration(); d != 500*time.Millisecond {
		t.Errorf("duration = %v, want 500ms", d)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		buf  *Buffer
	}{
		{"no channels", &Buffer{SampleRate: 44100}},
		{"empty channel", &Buffer{SampleRate: 44100, Samples: [][]float32{{}}}},
		{"zero rate", &Buffer{Samples: [][]float32{{0}}}},
		{"ragged", &Buffer{SampleRate: 44100, Samples: [][]float32{{0, 0}, {0}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.buf.Validate()
			if !errors.Is(err, ErrInvalidBuffer) {
				t.Errorf("Validate = %v, want ErrInvalidBuffer", err)
			}
		})
	}
}

func TestMono(t *testing.T) {
	b := &Buffer{
		SampleRate: 44100,
		Samples: [][]float32{
			{1, 0, -1},
			{0, 1, -1},
		},
	}
	mono := b.Mono()
	want := []float32{0.5, 0.5, -1}
	for i := range want {
		if mono[i] != want[i] {
			t.Errorf("mono[%d] = %f, want %f", i, mono[i], want[i])
		}
	}
}

func TestWithChannels(t *testing.T) {
	mono := &Buffer{SampleRate: 44100, Samples: [][]float32{{1, 2, 3}}}

	stereo, err := mono.WithChannels(2)
	if err != nil {
		t.Fatalf("up-mix: %v", err)
	}
	if stereo.Channels() != 2 {
		t.Fatalf("channels = %d, want 2", stereo.Channels())
	}
	for ch := range 2 {
		for i, want := range []float32{1, 2, 3} {
			if stereo.Samples[ch][i] != want {
				t.Errorf("ch %d sample %d = %f, want %f", ch, i, stereo.Samples[ch][i], want)
			}
		}
	}

	back, err := stereo.WithChannels(1)
	if err != nil {
		t.Fatalf("down-mix: %v", err)
	}
	for i, want := range []float32{1, 2, 3} {
		if back.Samples[0][i] != want {
			t.Errorf("mono sample %d = %f, want %f", i, back.Samples[0][i], want)
		}
	}

	same, err := stereo.WithChannels(2)
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	if same != stereo {
		t.Error("identity conversion should return the same buffer")
	}

	if _, err := stereo.WithChannels(0); !errors.Is(err, ErrInvalidBuffer) {
		t.Errorf("zero channels: err = %v, want ErrInvalidBuffer", err)
	}
}

func TestClone(t *testing.T) {
	b := &Buffer{SampleRate: 44100, Samples: [][]float32{{1, 2}, {3, 4}}}
	c := b.Clone()
	c.Samples[0][0] = 9
	if b.Samples[0][0] != 1 {
		t.Error("Clone shares storage with the original")
	}
}
