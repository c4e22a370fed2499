package testutil

import "errors"

// Common test errors
var (
	ErrConnectionRefused = errors.New("connection refused")
	ErrTestFailure       = errors.New("test failure")
)
