package models

import (
	"errors"
	"fmt"
)

var (
	ErrModelLoad        = errors.New("model load failed")
	ErrInference        = errors.New("inference failed")
	ErrBadRequest       = errors.New("bad request")
	ErrNotRegistered    = errors.New("no processor registered with the gateway")
	ErrUnknownModelSize = errors.New("unknown model size")

	ErrIncompatibleVersion = errors.New("incompatible protocol version")
)

// ModelLoadError is returned when a model handle can't be constructed. The cache slot is
// left empty so a later call retries construction.
type ModelLoadError struct {
	Model string
	Err   error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Model, e.Err)
}

func (e *ModelLoadError) Unwrap() []error {
	return []error{ErrModelLoad, e.Err}
}

func NewModelLoadError(model string, err error) error {
	return &ModelLoadError{Model: model, Err: err}
}

// InferenceError is returned when a loaded model fails on a sentence.
type InferenceError struct {
	Model string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s failed to analyze sentence: %v", e.Model, e.Err)
}

func (e *InferenceError) Unwrap() []error {
	return []error{ErrInference, e.Err}
}

func NewInferenceError(model string, err error) error {
	return &InferenceError{Model: model, Err: err}
}
