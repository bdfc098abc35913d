package decode

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"

	"github.com/demixkit/demix/pkg/audio/pcm"
)

// decodeWAV decodes a RIFF/WAVE file into a planar buffer. Integer PCM is
// scaled to [-1, 1] by the declared bit depth.
func decodeWAV(f *os.File) (*pcm.Buffer, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid wav header", ErrCorruptStream)
	}

	ib, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStream, err)
	}

	channels := ib.Format.NumChannels
	if channels <= 0 || len(ib.Data) == 0 {
		return nil, fmt.Errorf("%w: empty wav data", ErrCorruptStream)
	}

	depth := int(d.BitDepth)
	if depth == 0 {
		depth = ib.SourceBitDepth
	}
	scale := float32(1.0)
	switch depth {
	case 8:
		scale = 1 << 7
	case 16:
		scale = 1 << 15
	case 24:
		scale = 1 << 23
	case 32:
		scale = 1 << 31
	default:
		return nil, fmt.Errorf("%w: wav bit depth %d", ErrUnsupportedFormat, depth)
	}

	frames := len(ib.Data) / channels
	buf := pcm.New(channels, frames, int(d.SampleRate))
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			buf.Samples[ch][i] = float32(ib.Data[i*channels+ch]) / scale
		}
	}
	return buf, nil
}
