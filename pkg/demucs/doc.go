// Package demucs separates a mixed music recording into instrument stems
// with a pretrained hybrid transformer source-separation network.
//
// The pipeline decodes the input file, resamples it to the model's fixed
// rate, splits it into fixed-length overlapping chunks, normalizes each
// chunk, runs the network, reverses the normalization and merges the chunk
// outputs back into continuous per-stem waveforms with a triangular
// overlap-add, then writes one WAV file per stem.
//
// A [Model] is loaded once per process and shared across separation
// requests; forward passes are serialized internally so concurrent requests
// never compete for the execution device. Everything around the forward
// pass runs independently per request.
//
// Basic use:
//
//	model, err := demucs.LoadONNX("htdemucs.onnx", cfg, demucs.DeviceAuto)
//	if err != nil { ... }
//	defer model.Close()
//
//	sep := demucs.NewSeparator(model)
//	stems, err := sep.Separate(ctx, "song.flac", "out/", nil)
package demucs
