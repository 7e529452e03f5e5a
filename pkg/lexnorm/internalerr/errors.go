package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidGroup     = errors.New("invalid token group")
	ErrNoWhitespace     = errors.New("no whitespace to split on")
	ErrIndexGap         = errors.New("token index sequence has a gap")
	ErrStoreUnavailable = errors.New("store unavailable")
)
