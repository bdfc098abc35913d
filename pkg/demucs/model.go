package demucs

import "context"

// Device names an execution backend for inference.
type Device string

const (
	// DeviceAuto picks the best available backend at load time:
	// CUDA, then CoreML, then CPU.
	DeviceAuto Device = "auto"

	DeviceCPU    Device = "cpu"
	DeviceCUDA   Device = "cuda"
	DeviceCoreML Device = "coreml"
)

// Config describes a separation network's fixed tensor contract.
type Config struct {
	// Name identifies the model, e.g. "htdemucs".
	Name string `yaml:"name"`

	// SampleRate is the fixed rate the network was trained at.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the channel count the network expects.
	Channels int `yaml:"channels"`

	// Sources lists the stem labels in the network's output order.
	Sources []string `yaml:"sources"`

	// SegmentSamples is the fixed chunk length per forward pass.
	SegmentSamples int `yaml:"segment_samples"`

	// OverlapSamples is the overlap between consecutive chunks.
	OverlapSamples int `yaml:"overlap_samples"`

	// InputName and OutputName are the graph's tensor bindings.
	InputName  string `yaml:"input_name"`
	OutputName string `yaml:"output_name"`
}

// Model is a loaded separation network pinned to one execution device.
//
// Implementations must serialize forward passes internally: Apply may be
// called from any number of goroutines and never corrupts a concurrent
// call's tensors.
type Model interface {
	// Config returns the model's tensor contract.
	Config() Config

	// Apply runs one forward pass on a chunk shaped channels x
	// SegmentSamples and returns stems shaped sources x channels x
	// SegmentSamples. Failures wrap ErrInference.
	Apply(ctx context.Context, chunk [][]float32) ([][][]float32, error)

	// Close releases the model's device resources. Safe to call twice.
	Close() error
}
