package session

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	interjectStart = "[INTERJECT]"
	interjectEnd   = "[/INTERJECT]"
	continueStart  = "[CONTINUE]"
	continueEnd    = "[/CONTINUE]"
)

// Interjection is a watcher's parsed request to message its parent
type Interjection struct {
	Urgent  bool
	Content string
}

// ParseInterjection extracts an [INTERJECT] block from a watcher response.
// It returns nil for [CONTINUE] responses and for malformed blocks: markers
// must be exact, field names lowercase, urgent exactly true or false and
// content non-empty. Content may span several lines.
func ParseInterjection(response string) *Interjection {
	if strings.Contains(response, continueStart) && strings.Contains(response, continueEnd) {
		return nil
	}

	start := strings.Index(response, interjectStart)
	if start < 0 {
		return nil
	}
	rest := response[start+len(interjectStart):]
	end := strings.Index(rest, interjectEnd)
	if end < 0 {
		return nil
	}
	lines := strings.Split(rest[:end], "\n")

	urgent, ok := parseUrgent(lines)
	if !ok {
		return nil
	}

	contentIdx := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "content:") {
			contentIdx = i
			break
		}
	}
	if contentIdx < 0 {
		return nil
	}

	parts := []string{strings.TrimLeft(strings.TrimPrefix(strings.TrimSpace(lines[contentIdx]), "content:"), " \t")}
	for _, line := range lines[contentIdx+1:] {
		if strings.HasPrefix(strings.TrimSpace(line), "urgent:") {
			break
		}
		parts = append(parts, line)
	}

	content := strings.TrimSpace(strings.Join(parts, "\n"))
	if content == "" {
		log.Warn().Msg("Empty content in interjection block")
		return nil
	}
	return &Interjection{Urgent: urgent, Content: content}
}

func parseUrgent(lines []string) (bool, bool) {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "urgent:") {
			continue
		}
		switch strings.TrimSpace(strings.TrimPrefix(trimmed, "urgent:")) {
		case "true":
			return true, true
		case "false":
			return false, true
		default:
			log.Warn().Str("line", trimmed).Msg("Invalid urgent value in interjection block")
			return false, false
		}
	}
	log.Warn().Msg("Missing urgent field in interjection block")
	return false, false
}

// FormatWatcherInput prefixes a watcher message with its origin
func FormatWatcherInput(role *Role, watcherID, message string) string {
	return fmt.Sprintf("[WATCHER: %s | Authority: %s | Session: %s] %s",
		role.Name, role.Authority.DisplayName(), watcherID, message)
}

// FormatEvaluationPrompt builds the prompt a watcher evaluates at a breakpoint
func FormatEvaluationPrompt(role *Role, observed []Chunk) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a watcher session with role: %s\n", role.Name)
	if role.Description != nil && *role.Description != "" {
		fmt.Fprintf(&b, "Role description: %s\n", *role.Description)
	}
	authorityContext := "As a Peer, your interjections are suggestions that the parent session may consider."
	if role.Authority == AuthoritySupervisor {
		authorityContext = "As a Supervisor, your interjections carry authority and should be followed by the parent session."
	}
	fmt.Fprintf(&b, "Authority level: %s - %s\n\n", role.Authority, authorityContext)

	b.WriteString("=== PARENT SESSION OBSERVATIONS ===\n\n")
	for _, c := range observed {
		switch c.Kind {
		case ChunkText:
			b.WriteString(c.Text)
		case ChunkToolCall:
			fmt.Fprintf(&b, "[Tool Call]: %s (%s)\n", c.Tool, c.ToolCallID)
		case ChunkToolResult:
			fmt.Fprintf(&b, "[Tool Result]: %s\n%s\n", c.ToolCallID, c.Text)
		}
	}
	b.WriteString("\n=== END OBSERVATIONS ===\n\n")

	b.WriteString("Based on these observations, evaluate whether you need to interject.\n\n")
	b.WriteString("RESPONSE FORMAT (required):\n")
	b.WriteString("If you need to inject a message to the parent session, respond with:\n")
	b.WriteString("[INTERJECT]\nurgent: true\ncontent: Your message here\n[/INTERJECT]\n\n")
	b.WriteString("Set 'urgent: true' to interrupt the parent mid-stream (for critical issues).\n")
	b.WriteString("Set 'urgent: false' to wait until the parent's current turn completes.\n\n")
	b.WriteString("If no interjection is needed, respond with:\n")
	b.WriteString("[CONTINUE]\nYour reasoning here (optional)\n[/CONTINUE]\n\n")
	b.WriteString("Important: Use EXACT markers [INTERJECT], [/INTERJECT], [CONTINUE], [/CONTINUE].\n")
	b.WriteString("Field names must be lowercase: 'urgent:' and 'content:'.\n")

	return b.String()
}
