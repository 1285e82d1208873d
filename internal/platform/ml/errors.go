package ml

import "errors"

// Errors returned by the encoding and inference pipeline. Callers match them
// with errors.Is; every returned error wraps exactly one of these.
var (
	ErrInvalidInputShape = errors.New("invalid input shape")
	ErrSchemaMismatch    = errors.New("schema mismatch")
	ErrInference         = errors.New("inference failed")
	ErrEmptyInput        = errors.New("empty input")

	// ErrInferenceTimeout wraps ErrInference. A stalled model or embedding
	// call is an infrastructure fault the caller may retry.
	ErrInferenceTimeout error = &timeoutError{}
)

type timeoutError struct{}

func (*timeoutError) Error() string { return "inference timed out" }

func (*timeoutError) Unwrap() error { return ErrInference }
