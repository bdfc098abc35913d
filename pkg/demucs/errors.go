package demucs

import "errors"

var (
	// ErrModelLoad indicates the network weights could not be read or
	// deserialized. It is fatal: no separation can run without a model.
	ErrModelLoad = errors.New("demucs: model load failed")

	// ErrInference indicates a forward pass failed. It aborts the current
	// separation request; the shared model stays usable for later requests.
	ErrInference = errors.New("demucs: inference failed")

	// ErrUnknownModel is returned for a model name with no builtin config.
	ErrUnknownModel = errors.New("demucs: unknown model")
)
