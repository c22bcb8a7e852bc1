package facade

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is wrapped by every parameter validation failure
	ErrValidation = errors.New("validation failed")

	// ErrUnknownProvider is returned for providers outside the supported set
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrFacadeNotFound is returned when no facade is registered for a key
	ErrFacadeNotFound = errors.New("facade not found")

	// ErrDuplicateFacade is returned when registering an existing key
	ErrDuplicateFacade = errors.New("facade already registered")

	// ErrNotFlat is returned for definitions using nested or union schemas
	ErrNotFlat = errors.New("definition is not a flat schema")

	// ErrUnsupportedParams is returned by a backend handed params of another family
	ErrUnsupportedParams = errors.New("unsupported params")
)

// ValidationError reports invalid tool arguments
type ValidationError struct {
	Tool    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Tool, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func validationError(tool, format string, args ...interface{}) error {
	return &ValidationError{Tool: tool, Message: fmt.Sprintf(format, args...)}
}
