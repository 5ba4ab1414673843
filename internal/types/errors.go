package types

import "errors"

// Typed conditions the HTTP boundary translates to status codes. The core
// never retries these on its own; retry-with-fresh-revision is the
// caller's responsibility.
var (
	ErrNotFound               = errors.New("resource not found")
	ErrValidation             = errors.New("validation failed")
	ErrRevisionConflict       = errors.New("day revision conflict")
	ErrVersionConflict        = errors.New("route version conflict")
	ErrPlaceNotFound          = errors.New("place not found in day")
	ErrInsufficientCandidates = errors.New("insufficient POI candidates")
)
