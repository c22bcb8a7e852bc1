package toolexecutor

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
)

// ToolPolicy defines which tools a session can use. Entries are tool names or
// glob patterns such as "web_*".
type ToolPolicy struct {
	Allow []string `json:"allow" mapstructure:"allow"` // empty allows every tool
	Deny  []string `json:"deny" mapstructure:"deny"`   // overrides allow
}

// IsToolAllowed checks if a tool is allowed by the policy
func (tp *ToolPolicy) IsToolAllowed(toolName string) bool {
	if tp == nil {
		return true
	}

	for _, denied := range tp.Deny {
		if matchTool(denied, toolName) {
			return false
		}
	}

	if len(tp.Allow) == 0 {
		return true
	}
	for _, allowed := range tp.Allow {
		if matchTool(allowed, toolName) {
			return true
		}
	}

	return false
}

// Validate rejects malformed patterns
func (tp *ToolPolicy) Validate() error {
	if tp == nil {
		return nil
	}

	for _, list := range [][]string{tp.Allow, tp.Deny} {
		for _, pattern := range list {
			if pattern == "" {
				return fmt.Errorf("policy pattern cannot be empty")
			}
			if !doublestar.ValidatePattern(pattern) {
				return fmt.Errorf("invalid policy pattern %q", pattern)
			}
		}
	}

	if containsWildcard(tp.Deny) && len(tp.Allow) > 0 {
		log.Warn().Msg("Policy denies every tool - allow list has no effect")
	}

	return nil
}

// Filter returns the names the policy allows, preserving order
func (tp *ToolPolicy) Filter(names []string) []string {
	if tp == nil {
		return names
	}

	filtered := make([]string, 0, len(names))
	for _, name := range names {
		if tp.IsToolAllowed(name) {
			filtered = append(filtered, name)
		}
	}
	return filtered
}

func matchTool(pattern, name string) bool {
	if pattern == "*" || pattern == name {
		return true
	}
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

func containsWildcard(list []string) bool {
	for _, p := range list {
		if p == "*" {
			return true
		}
	}
	return false
}
