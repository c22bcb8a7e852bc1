package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterjection(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     *Interjection
	}{
		{
			name:     "urgent",
			response: "[INTERJECT]\nurgent: true\ncontent: Stop, that deletes prod\n[/INTERJECT]",
			want:     &Interjection{Urgent: true, Content: "Stop, that deletes prod"},
		},
		{
			name:     "surrounding text and multiline content",
			response: "Thinking...\n[INTERJECT]\nurgent: false\ncontent: First line\nsecond line\n[/INTERJECT]\nbye",
			want:     &Interjection{Urgent: false, Content: "First line\nsecond line"},
		},
		{
			name:     "content before urgent",
			response: "[INTERJECT]\ncontent: check tests\nurgent: false\n[/INTERJECT]",
			want:     &Interjection{Urgent: false, Content: "check tests"},
		},
		{name: "continue", response: "[CONTINUE]\nall good\n[/CONTINUE]"},
		{name: "no block", response: "nothing to add"},
		{name: "missing end marker", response: "[INTERJECT]\nurgent: true\ncontent: x"},
		{name: "uppercase field", response: "[INTERJECT]\nUrgent: true\ncontent: x\n[/INTERJECT]"},
		{name: "invalid urgent", response: "[INTERJECT]\nurgent: yes\ncontent: x\n[/INTERJECT]"},
		{name: "missing urgent", response: "[INTERJECT]\ncontent: x\n[/INTERJECT]"},
		{name: "empty content", response: "[INTERJECT]\nurgent: true\ncontent:   \n[/INTERJECT]"},
		{name: "lowercase marker", response: "[interject]\nurgent: true\ncontent: x\n[/interject]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseInterjection(tt.response))
		})
	}
}

func TestFormatWatcherInput(t *testing.T) {
	role, err := NewRole("security-auditor", nil, "supervisor")
	require.NoError(t, err)
	assert.Equal(t,
		"[WATCHER: security-auditor | Authority: Supervisor | Session: xyz789] Stop now",
		FormatWatcherInput(role, "xyz789", "Stop now"))
}

func TestFormatEvaluationPrompt(t *testing.T) {
	desc := "Looks for risky shell commands"
	role, err := NewRole("auditor", &desc, "peer")
	require.NoError(t, err)

	prompt := FormatEvaluationPrompt(role, []Chunk{
		{Kind: ChunkText, Text: "Running cleanup\n"},
		{Kind: ChunkToolCall, Tool: "Bash", ToolCallID: "call-1"},
		{Kind: ChunkToolResult, ToolCallID: "call-1", Text: "removed"},
		{Kind: ChunkStatus, Status: StatusRunning},
	})

	assert.Contains(t, prompt, "You are a watcher session with role: auditor\n")
	assert.Contains(t, prompt, "Role description: Looks for risky shell commands\n")
	assert.Contains(t, prompt, "Authority level: peer - As a Peer")
	assert.Contains(t, prompt, "Running cleanup\n[Tool Call]: Bash (call-1)\n[Tool Result]: call-1\nremoved\n")
	assert.Contains(t, prompt, "[INTERJECT]\nurgent: true\ncontent: Your message here\n[/INTERJECT]")
}
