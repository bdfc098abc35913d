package decode

import (
	"fmt"
	"io"
	"os"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/demixkit/demix/pkg/audio/pcm"
)

// decodeMP3 decodes an MPEG audio stream. The decoder always yields 16-bit
// stereo interleaved frames at the stream's native rate, including for
// variable bit-rate streams where frame sizes differ packet to packet.
func decodeMP3(f *os.File) (*pcm.Buffer, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}

	d, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStream, err)
	}

	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStream, err)
	}

	// 2 channels x int16.
	frames := len(raw) / 4
	if frames == 0 {
		return nil, fmt.Errorf("%w: no decodable mp3 frames", ErrCorruptStream)
	}

	buf := pcm.New(2, frames, d.SampleRate())
	for i := 0; i < frames; i++ {
		l := int16(raw[i*4]) | int16(raw[i*4+1])<<8
		r := int16(raw[i*4+2]) | int16(raw[i*4+3])<<8
		buf.Samples[0][i] = float32(l) / 32768
		buf.Samples[1][i] = float32(r) / 32768
	}
	return buf, nil
}
