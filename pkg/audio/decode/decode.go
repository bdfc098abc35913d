// Package decode turns encoded audio files into planar PCM buffers.
//
// Supported containers: WAV, MP3, OGG/Vorbis, and FLAC. The container is
// detected from the file's magic bytes, with the file extension as a
// fallback for headerless MP3 streams. Decoders tolerate variable bit-rate
// streams and never assume a fixed packet size.
//
// Errors:
//   - ErrUnsupportedFormat: the container or codec is not recognized
//   - ErrCorruptStream: the container was recognized but parsing failed
//   - plain I/O errors (wrapping the os error) for read failures
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/demixkit/demix/pkg/audio/pcm"
)

var (
	// ErrUnsupportedFormat is returned when the input is not a recognized
	// audio container.
	ErrUnsupportedFormat = errors.New("decode: unsupported format")

	// ErrCorruptStream is returned when a recognized container fails to
	// parse mid-file.
	ErrCorruptStream = errors.New("decode: corrupt stream")
)

// Format identifies a supported audio container.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatOGG  Format = "ogg"
	FormatFLAC Format = "flac"
)

// File decodes the audio file at path into a planar PCM buffer. The
// returned buffer preserves the source's channel count and sample rate;
// samples are normalized to nominal full scale [-1, 1].
func File(path string) (*pcm.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode: open %s: %w", path, err)
	}
	defer f.Close()

	format, err := sniff(f, path)
	if err != nil {
		return nil, err
	}

	var buf *pcm.Buffer
	switch format {
	case FormatWAV:
		buf, err = decodeWAV(f)
	case FormatMP3:
		buf, err = decodeMP3(f)
	case FormatOGG:
		buf, err = decodeOGG(f)
	case FormatFLAC:
		buf, err = decodeFLAC(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode: %s: %w", path, err)
	}
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("%w: decoder produced %v", ErrCorruptStream, err)
	}
	return buf, nil
}

// sniff identifies the container from magic bytes, falling back to the file
// extension. The reader is rewound to the start afterwards.
func sniff(f *os.File, path string) (Format, error) {
	var magic [12]byte
	n, err := f.ReadAt(magic[:], 0)
	if err != nil && n < 4 {
		return "", fmt.Errorf("%w: file too short", ErrUnsupportedFormat)
	}

	switch {
	case bytes.Equal(magic[0:4], []byte("RIFF")) && bytes.Equal(magic[8:12], []byte("WAVE")):
		return FormatWAV, nil
	case bytes.Equal(magic[0:4], []byte("OggS")):
		return FormatOGG, nil
	case bytes.Equal(magic[0:4], []byte("fLaC")):
		return FormatFLAC, nil
	case bytes.Equal(magic[0:3], []byte("ID3")):
		return FormatMP3, nil
	case magic[0] == 0xFF && magic[1]&0xE0 == 0xE0:
		// Raw MPEG audio frame sync.
		return FormatMP3, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return FormatWAV, nil
	case ".mp3":
		return FormatMP3, nil
	case ".ogg", ".oga":
		return FormatOGG, nil
	case ".flac":
		return FormatFLAC, nil
	}
	return "", fmt.Errorf("%w: unrecognized container in %s", ErrUnsupportedFormat, filepath.Base(path))
}
