package session

import (
	"errors"
	"fmt"

	"github.com/harun/codelet/pkg/pause"
)

var (
	// ErrNotFound is returned for unknown session ids
	ErrNotFound = errors.New("session not found")

	// ErrValidation is wrapped by every ValidationError
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when a status change is not a defined edge
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrSessionLimit is returned when the registry is full
	ErrSessionLimit = errors.New("maximum sessions reached")

	// ErrClosed is returned when operating on a destroyed session
	ErrClosed = errors.New("session closed")

	// ErrNotPaused is returned by Resume on a session that is not paused
	ErrNotPaused = pause.ErrNotPaused

	// ErrAlreadyPaused is returned when a tool opens a second pause
	ErrAlreadyPaused = pause.ErrAlreadyPaused
)

// ValidationError reports an invalid control operation argument. Prior state
// is left unchanged.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func validationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
