package repository

import "errors"

// Sentinel kinds for result store errors.
var (
	ErrClosed    = errors.New("store closed")
	ErrNoOutput  = errors.New("output path is required")
	ErrMalformed = errors.New("malformed record")
)
