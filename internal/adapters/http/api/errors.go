package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrServe = errors.New("http serve failed")
	ErrNoRun = errors.New("no run in progress")
)
