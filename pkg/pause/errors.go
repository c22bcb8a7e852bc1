package pause

import "errors"

var (
	// ErrNotPaused is returned when resuming a gate that has no open pause
	ErrNotPaused = errors.New("session is not paused")

	// ErrAlreadyPaused is returned when opening a pause while another is open
	ErrAlreadyPaused = errors.New("session is already paused")

	// ErrInvalidResponse is returned when a response does not fit the pause kind
	ErrInvalidResponse = errors.New("invalid pause response")
)
