package decode

import (
	"fmt"
	"os"

	"github.com/jfreymuth/oggvorbis"

	"github.com/demixkit/demix/pkg/audio/pcm"
)

// decodeOGG decodes an Ogg/Vorbis stream into a planar buffer.
func decodeOGG(f *os.File) (*pcm.Buffer, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}

	data, format, err := oggvorbis.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStream, err)
	}

	channels := format.Channels
	if channels <= 0 || len(data) == 0 {
		return nil, fmt.Errorf("%w: empty vorbis stream", ErrCorruptStream)
	}

	frames := len(data) / channels
	buf := pcm.New(channels, frames, format.SampleRate)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			buf.Samples[ch][i] = data[i*channels+ch]
		}
	}
	return buf, nil
}
