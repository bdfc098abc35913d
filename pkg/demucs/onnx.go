package demucs

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortLibPathEnv overrides the ONNX Runtime shared library location. When
// unset the runtime's platform default name is used.
const ortLibPathEnv = "ONNXRUNTIME_LIB_PATH"

// ortInitOnce initializes the ONNX Runtime environment exactly once per
// process. The error is kept so later loads surface the same failure.
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func initRuntime() error {
	ortInitOnce.Do(func() {
		if path := os.Getenv(ortLibPathEnv); path != "" {
			ort.SetSharedLibraryPath(path)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// ONNXModel runs a separation network through ONNX Runtime. The input and
// output tensors are allocated once at load time and reused for every
// forward pass, so Apply is serialized with a mutex.
type ONNXModel struct {
	cfg    Config
	device Device

	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32] // [1, channels, segment]
	output  *ort.Tensor[float32] // [1, sources, channels, segment]
}

// LoadONNX loads the network at path with the given tensor contract and
// pins it to a device. DeviceAuto probes CUDA, then CoreML, then falls back
// to CPU. Failures wrap ErrModelLoad.
func LoadONNX(path string, cfg Config, device Device) (*ONNXModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	if err := initRuntime(); err != nil {
		return nil, fmt.Errorf("%w: initialize runtime: %w", ErrModelLoad, err)
	}

	opts, resolved, err := sessionOptions(device)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	defer opts.Destroy()

	channels := int64(cfg.Channels)
	segment := int64(cfg.SegmentSamples)
	sources := int64(len(cfg.Sources))

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, channels, segment))
	if err != nil {
		return nil, fmt.Errorf("%w: create input tensor: %w", ErrModelLoad, err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, sources, channels, segment))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("%w: create output tensor: %w", ErrModelLoad, err)
	}

	session, err := ort.NewAdvancedSession(path,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.Value{input}, []ort.Value{output}, opts)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("%w: create session: %w", ErrModelLoad, err)
	}

	return &ONNXModel{
		cfg:     cfg,
		device:  resolved,
		session: session,
		input:   input,
		output:  output,
	}, nil
}

// sessionOptions builds session options for the requested device and
// reports the device actually selected.
func sessionOptions(device Device) (*ort.SessionOptions, Device, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, "", fmt.Errorf("create session options: %w", err)
	}

	tryCUDA := func() bool {
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return false
		}
		defer cuda.Destroy()
		return opts.AppendExecutionProviderCUDA(cuda) == nil
	}
	tryCoreML := func() bool {
		return opts.AppendExecutionProviderCoreML(0) == nil
	}

	switch device {
	case DeviceCPU, "":
		return opts, DeviceCPU, nil
	case DeviceCUDA:
		if !tryCUDA() {
			opts.Destroy()
			return nil, "", fmt.Errorf("CUDA provider unavailable")
		}
		return opts, DeviceCUDA, nil
	case DeviceCoreML:
		if !tryCoreML() {
			opts.Destroy()
			return nil, "", fmt.Errorf("CoreML provider unavailable")
		}
		return opts, DeviceCoreML, nil
	case DeviceAuto:
		if tryCUDA() {
			return opts, DeviceCUDA, nil
		}
		if tryCoreML() {
			return opts, DeviceCoreML, nil
		}
		return opts, DeviceCPU, nil
	default:
		opts.Destroy()
		return nil, "", fmt.Errorf("unknown device %q", device)
	}
}

// Config returns the model's tensor contract.
func (m *ONNXModel) Config() Config { return m.cfg }

// Device returns the execution device selected at load time.
func (m *ONNXModel) Device() Device { return m.device }

// Apply runs one forward pass. The chunk must be shaped channels x
// SegmentSamples. Concurrent calls are serialized on the shared tensors.
func (m *ONNXModel) Apply(ctx context.Context, chunk [][]float32) ([][][]float32, error) {
	if len(chunk) != m.cfg.Channels {
		return nil, fmt.Errorf("%w: %d channels, want %d", ErrInference, len(chunk), m.cfg.Channels)
	}
	for ch, data := range chunk {
		if len(data) != m.cfg.SegmentSamples {
			return nil, fmt.Errorf("%w: channel %d has %d samples, want %d",
				ErrInference, ch, len(data), m.cfg.SegmentSamples)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, fmt.Errorf("%w: model closed", ErrInference)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	segment := m.cfg.SegmentSamples
	in := m.input.GetData()
	for ch, data := range chunk {
		copy(in[ch*segment:(ch+1)*segment], data)
	}

	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}

	out := m.output.GetData()
	stems := make([][][]float32, len(m.cfg.Sources))
	for s := range stems {
		stems[s] = make([][]float32, m.cfg.Channels)
		for ch := range stems[s] {
			base := (s*m.cfg.Channels + ch) * segment
			stems[s][ch] = append([]float32(nil), out[base:base+segment]...)
		}
	}
	return stems, nil
}

// Close releases the session and tensors. Safe to call multiple times.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	if m.input != nil {
		m.input.Destroy()
		m.input = nil
	}
	if m.output != nil {
		m.output.Destroy()
		m.output = nil
	}
	return nil
}
