package decode

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"

	"github.com/demixkit/demix/pkg/audio/pcm"
)

// decodeFLAC decodes a native FLAC stream frame by frame.
func decodeFLAC(f *os.File) (*pcm.Buffer, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}

	stream, err := flac.New(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStream, err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	scale := float32(int64(1) << (stream.Info.BitsPerSample - 1))

	buf := &pcm.Buffer{
		SampleRate: int(stream.Info.SampleRate),
		Samples:    make([][]float32, channels),
	}
	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: %v", ErrCorruptStream, err)
		}
		if len(frame.Subframes) != channels {
			return nil, fmt.Errorf("%w: frame has %d subframes, stream declares %d channels",
				ErrCorruptStream, len(frame.Subframes), channels)
		}
		for ch, sub := range frame.Subframes {
			for _, s := range sub.Samples {
				buf.Samples[ch] = append(buf.Samples[ch], float32(s)/scale)
			}
		}
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: no decodable flac frames", ErrCorruptStream)
	}
	return buf, nil
}
