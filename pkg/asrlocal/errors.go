package asrlocal

import "errors"

var (
	// ErrTimeout is returned when a call exceeds its supplied deadline.
	// It corresponds to spec.md §7's InferenceTimeout.
	ErrTimeout = errors.New("asrlocal: inference deadline exceeded")

	// ErrModelNotAvailable is returned when a model cannot be loaded.
	ErrModelNotAvailable = errors.New("asrlocal: model not available")

	// ErrNoModel is returned when no default model has been configured.
	ErrNoModel = errors.New("asrlocal: no default model configured")
)
