package demucs

import (
	"fmt"
	"slices"
)

// Segment defaults for the hybrid transformer family: ten-second chunks
// with one second of overlap at 44.1 kHz.
const (
	defaultSegmentSamples = 10 * 44100
	defaultOverlapSamples = 44100
)

// builtin holds the tensor contracts of the supported pretrained networks.
var builtin = []Config{
	{
		Name:           "htdemucs",
		SampleRate:     44100,
		Channels:       2,
		Sources:        []string{"drums", "bass", "other", "vocals"},
		SegmentSamples: defaultSegmentSamples,
		OverlapSamples: defaultOverlapSamples,
		InputName:      "mix",
		OutputName:     "stems",
	},
	{
		Name:           "htdemucs_ft",
		SampleRate:     44100,
		Channels:       2,
		Sources:        []string{"drums", "bass", "other", "vocals"},
		SegmentSamples: defaultSegmentSamples,
		OverlapSamples: defaultOverlapSamples,
		InputName:      "mix",
		OutputName:     "stems",
	},
	{
		Name:           "htdemucs_6s",
		SampleRate:     44100,
		Channels:       2,
		Sources:        []string{"drums", "bass", "other", "vocals", "guitar", "piano"},
		SegmentSamples: defaultSegmentSamples,
		OverlapSamples: defaultOverlapSamples,
		InputName:      "mix",
		OutputName:     "stems",
	},
}

// Configs returns the builtin model configs in a stable order.
func Configs() []Config {
	return slices.Clone(builtin)
}

// LookupConfig returns the builtin config for name.
func LookupConfig(name string) (Config, error) {
	for _, c := range builtin {
		if c.Name == name {
			return c, nil
		}
	}
	return Config{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
}

// Validate reports whether the config can drive a separation.
func (c Config) Validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: empty name", ErrUnknownModel)
	case c.SampleRate <= 0:
		return fmt.Errorf("demucs: config %s: sample rate %d", c.Name, c.SampleRate)
	case c.Channels <= 0:
		return fmt.Errorf("demucs: config %s: channels %d", c.Name, c.Channels)
	case len(c.Sources) == 0:
		return fmt.Errorf("demucs: config %s: no sources", c.Name)
	case c.SegmentSamples <= 0 || c.OverlapSamples < 0 || c.OverlapSamples >= c.SegmentSamples:
		return fmt.Errorf("demucs: config %s: segment %d overlap %d", c.Name, c.SegmentSamples, c.OverlapSamples)
	}
	return nil
}
