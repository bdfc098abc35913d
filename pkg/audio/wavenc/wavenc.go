// Package wavenc writes planar PCM buffers to RIFF/WAVE files.
//
// Stems are written losslessly as integer PCM with an explicit sample rate,
// channel count, and bit depth. Output is atomic: data is written to a
// temporary file in the destination directory and renamed into place only
// after the encoder flushes successfully, so a failed request never leaves
// a half-written stem behind.
package wavenc

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/demixkit/demix/pkg/audio/pcm"
)

// Options configures encoding. The zero value selects 16-bit output.
type Options struct {
	// BitDepth is the output sample depth. Supported: 16 and 24.
	// 0 means 16.
	BitDepth int
}

func (o *Options) depth() int {
	if o == nil || o.BitDepth == 0 {
		return 16
	}
	return o.BitDepth
}

// Write encodes buf as integer PCM WAV at path. Samples outside [-1, 1]
// are clamped at this point only; the buffer itself is left untouched.
func Write(buf *pcm.Buffer, path string, opts *Options) error {
	if err := buf.Validate(); err != nil {
		return err
	}
	depth := opts.depth()
	if depth != 16 && depth != 24 {
		return fmt.Errorf("wavenc: unsupported bit depth %d", depth)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("wavenc: create temp: %w", err)
	}
	tmpName := tmp.Name()

	if err := encode(tmp, buf, depth); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("wavenc: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("wavenc: rename: %w", err)
	}
	return nil
}

func encode(f *os.File, buf *pcm.Buffer, depth int) error {
	channels := buf.Channels()
	frames := buf.Len()

	limit := (int(1) << (depth - 1)) - 1
	scale := float32(int(1) << (depth - 1))

	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			v := int(buf.Samples[ch][i] * scale)
			if v > limit {
				v = limit
			} else if v < -limit-1 {
				v = -limit - 1
			}
			data[i*channels+ch] = v
		}
	}

	enc := wav.NewEncoder(f, buf.SampleRate, depth, channels, 1)
	err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: buf.SampleRate},
		SourceBitDepth: depth,
		Data:           data,
	})
	if err != nil {
		enc.Close()
		return fmt.Errorf("wavenc: write: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wavenc: flush: %w", err)
	}
	return nil
}
