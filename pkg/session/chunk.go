package session

import (
	"time"

	"github.com/harun/codelet/pkg/toolexecutor"
)

// ChunkKind classifies a session output chunk
type ChunkKind string

const (
	ChunkText         ChunkKind = "text"
	ChunkToolCall     ChunkKind = "tool_call"
	ChunkToolOutput   ChunkKind = "tool_output"
	ChunkToolResult   ChunkKind = "tool_result"
	ChunkStatus       ChunkKind = "status"
	ChunkDone         ChunkKind = "done"
	ChunkUserInput    ChunkKind = "user_input"
	ChunkWatcherInput ChunkKind = "watcher_input"
	ChunkError        ChunkKind = "error"

	// ChunkPendingInjection carries an interjection held for manual review
	ChunkPendingInjection ChunkKind = "pending_injection"
)

// Chunk is one unit of session output
type Chunk struct {
	SessionID     string    `json:"session_id"`
	CorrelationID string    `json:"correlation_id"`
	Seq           uint64    `json:"seq"`
	Kind          ChunkKind `json:"kind"`
	Text          string    `json:"text,omitempty"`
	IsStderr      bool      `json:"is_stderr,omitempty"`
	Tool          string    `json:"tool,omitempty"`
	ToolCallID    string    `json:"tool_call_id,omitempty"`
	Status        Status    `json:"status,omitempty"`
	Urgent        bool      `json:"urgent,omitempty"`
	Timestamp     time.Time `json:"timestamp"`

	// ObservedCorrelationIDs links a watcher's output to the parent chunks it evaluated
	ObservedCorrelationIDs []string `json:"observed_correlation_ids,omitempty"`
}

// Breakpoint reports whether a watcher should evaluate what it has observed
func (c Chunk) Breakpoint() bool {
	return c.Kind == ChunkDone || c.Kind == ChunkToolResult
}

// TerminalEvent ends one tool call for an observer
type TerminalEvent struct {
	Tool       string               `json:"tool"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
	Kind       toolexecutor.Outcome `json:"kind"`
	Output     string               `json:"output"`
	Truncated  bool                 `json:"truncated,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// Observer receives live output of an attached session. Calls for one
// session are serialized and must not block for long.
type Observer interface {
	OnChunk(sessionID string, chunk Chunk)
	OnTerminal(sessionID string, event TerminalEvent)
}

// ObserverFuncs adapts functions to Observer; nil fields are skipped
type ObserverFuncs struct {
	Chunk    func(sessionID string, chunk Chunk)
	Terminal func(sessionID string, event TerminalEvent)
}

func (o ObserverFuncs) OnChunk(sessionID string, chunk Chunk) {
	if o.Chunk != nil {
		o.Chunk(sessionID, chunk)
	}
}

func (o ObserverFuncs) OnTerminal(sessionID string, event TerminalEvent) {
	if o.Terminal != nil {
		o.Terminal(sessionID, event)
	}
}
