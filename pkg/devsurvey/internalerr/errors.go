package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingColumn = errors.New("missing required column")
	ErrUnknownColumn = errors.New("unknown column")
	ErrEmptyInput    = errors.New("empty input")
)
