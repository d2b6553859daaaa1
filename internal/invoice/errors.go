package invoice

import "errors"

// Per-file failure taxonomy. Every error raised inside the single-file
// pipeline wraps one of these sentinels so the processor boundary can match
// with errors.Is and record a terminal failed result instead of propagating.
var (
	// ErrSizeExceeded marks a file larger than the configured maximum.
	ErrSizeExceeded = errors.New("file size exceeds maximum")

	// ErrProcessingTimeout marks expiry of the inner model-call bound or
	// the outer per-file bound.
	ErrProcessingTimeout = errors.New("processing timeout")

	// ErrInvalidModelResponse marks model output the parser could not
	// recover a single field from.
	ErrInvalidModelResponse = errors.New("invalid model response")

	// ErrModelUnavailable marks a model backend that cannot be reached.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrFileSystem marks a file that disappeared or became unreadable.
	ErrFileSystem = errors.New("filesystem error")

	// ErrValidation marks an unsupported or malformed input file.
	ErrValidation = errors.New("validation error")
)
