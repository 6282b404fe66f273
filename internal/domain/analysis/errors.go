package analysis

import "errors"

var (
	// ErrNotFound is returned when a session does not exist or belongs to another user.
	ErrNotFound = errors.New("analysis not found")
	// ErrInvalidInput marks request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotReady is returned when an export is requested before the analysis completed.
	ErrNotReady = errors.New("analysis not completed")
)
