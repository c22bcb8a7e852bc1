package toolexecutor

import (
	"errors"
	"fmt"
)

var (
	// ErrToolNotFound is returned when no tool is registered under a name
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolNotAllowed is returned when a session policy blocks a tool
	ErrToolNotAllowed = errors.New("tool not allowed by policy")

	// ErrDuplicateTool is returned when registering a name twice
	ErrDuplicateTool = errors.New("tool already registered")
)

// ToolExecutionError is a tool failure that carries the output the tool
// produced before it failed.
type ToolExecutionError struct {
	Tool   string
	Output string
	Err    error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}
