package types

import "errors"

// Domain errors shared across packages
var (
	// ErrInputNotFound is returned when the document to analyze does not exist
	ErrInputNotFound = errors.New("input not found")
	// ErrBinaryInput is returned when the document does not look like text
	ErrBinaryInput = errors.New("input is not a text file")
	// ErrConfiguration is returned for invalid settings, before any engine call
	ErrConfiguration = errors.New("invalid configuration")
	// ErrEngineFailure is returned when the recognition engine fails on a chunk
	ErrEngineFailure = errors.New("entity engine failed")
	// ErrInvalidSpan is returned when the engine reports offsets outside its input
	ErrInvalidSpan = errors.New("invalid entity span")
)
