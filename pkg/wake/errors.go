package wake

import "errors"

var (
	// ErrInterrupted is the cancellation cause raised by an explicit interrupt
	ErrInterrupted = errors.New("interrupted")

	// ErrTimeout is the cancellation cause raised when an execution deadline expires
	ErrTimeout = errors.New("timed out")
)
